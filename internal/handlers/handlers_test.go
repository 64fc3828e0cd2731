package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/config"
	"github.com/Renarion/AI-for-mock-interview/internal/middleware"
	"github.com/Renarion/AI-for-mock-interview/internal/models"
	"github.com/Renarion/AI-for-mock-interview/internal/services"
	"github.com/Renarion/AI-for-mock-interview/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

const testWebhookSecret = "whsec_test"

type testServer struct {
	app      *fiber.App
	users    *services.MemoryUserStore
	sessions *services.SessionStore
}

func statisticsTasks(n int) []models.Task {
	tasks := make([]models.Task, 0, n)
	for i := 1; i <= n; i++ {
		tasks = append(tasks, models.Task{
			ID:              int64(i),
			Question:        "Что такое p-value?",
			ReferenceAnswer: "Вероятность получить такие же или более экстремальные данные при верной нулевой гипотезе",
			CompanyTier:     models.CompanyTier1,
			ExperienceLevel: models.LevelJunior,
			Specialization:  models.SpecializationProductAnalyst,
			Topic:           "statistics",
		})
	}
	return tasks
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Environment:       "development",
		FrontendURL:       "http://localhost:3000",
		DodoWebhookSecret: testWebhookSecret,
		PlanProductIDs: map[string]string{
			"3_questions":  "pdt_3",
			"6_questions":  "pdt_6",
			"12_questions": "pdt_12",
			"24_questions": "pdt_24",
		},
	}

	tokens, err := auth.NewTokenManager("test-secret", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("Failed to create token manager: %v", err)
	}

	users := services.NewMemoryUserStore()
	ledger := services.NewEntitlementService(users)
	selector := services.NewTaskSelector(services.NewMemoryTaskRepository(statisticsTasks(5)), rand.New(rand.NewPCG(3, 4)))
	sessions := services.NewSessionStore(time.Hour)
	feedback := services.NewGuardedFeedback(services.NewMockFeedbackGenerator(), time.Second, time.Second, 0, 1)
	interviews := services.NewInterviewService(ledger, selector, sessions, feedback, services.NewReportAggregator(feedback), nil, 20)
	payments := services.NewPaymentService(cfg, users, ledger, services.NewMemoryPaymentStore(), nil)

	authHandler := NewLocalAuthHandler(services.NewUserService(users, tokens, ledger))
	interviewHandler := NewInterviewHandler(interviews)
	paymentHandler := NewPaymentHandler(payments)
	webhookHandler := NewWebhookHandler(payments)

	app := fiber.New()
	api := app.Group("/api")
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)
	api.Post("/auth/refresh", authHandler.Refresh)
	api.Post("/payments/webhook", webhookHandler.HandleDodoWebhook)
	api.Get("/payments/plans", paymentHandler.ListPlans)
	api.Get("/interview/specializations", interviewHandler.Specializations)
	api.Get("/interview/topics", interviewHandler.Topics)

	protected := api.Group("", middleware.LocalAuthMiddleware(tokens))
	protected.Get("/auth/me", authHandler.Me)
	protected.Post("/payments/checkout", paymentHandler.CreateCheckout)
	protected.Post("/payments/mock/:id/complete", paymentHandler.CompleteMockPayment)
	protected.Post("/interview/start", interviewHandler.Start)
	protected.Get("/interview/session/:id", interviewHandler.GetSession)
	protected.Get("/interview/session/:id/task", interviewHandler.CurrentTask)
	protected.Post("/interview/session/:id/answer", interviewHandler.SubmitAnswer)
	protected.Post("/interview/session/:id/finish", interviewHandler.Finish)
	protected.Get("/interview/session/:id/report.html", interviewHandler.ReportHTML)

	return &testServer{app: app, users: users, sessions: sessions}
}

// do sends a request and decodes a JSON response body into a map
func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}

	result := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("Failed to decode response of %s %s: %v", method, path, err)
		}
	}
	return resp, result
}

// register creates an account and returns its access token
func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()

	resp, body := s.do(t, "POST", "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "secret123",
		"name":     "Test Candidate",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected 201 from register, got %d: %v", resp.StatusCode, body)
	}
	tokens, _ := body["tokens"].(map[string]any)
	token, _ := tokens["access_token"].(string)
	if token == "" {
		t.Fatalf("Register returned no access token: %v", body)
	}
	return token
}

var statisticsStart = map[string]string{
	"specialization":   models.SpecializationProductAnalyst,
	"experience_level": models.LevelJunior,
	"company_tier":     models.CompanyTier1,
	"topic":            "statistics",
}

func TestDictionaryEndpoints(t *testing.T) {
	server := setupTestServer(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/interview/specializations", len(models.Specializations)},
		{"/api/interview/topics", len(models.Topics)},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			resp, err := server.app.Test(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			if resp.StatusCode != fiber.StatusOK {
				t.Fatalf("Expected 200, got %d", resp.StatusCode)
			}

			var items []models.DictionaryItem
			if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if len(items) != tt.want {
				t.Errorf("Expected %d items, got %d", tt.want, len(items))
			}
		})
	}
}

func TestAuthFlow(t *testing.T) {
	server := setupTestServer(t)
	token := server.register(t, "flow@example.com")

	resp, body := server.do(t, "GET", "/api/auth/me", token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200 from me, got %d", resp.StatusCode)
	}
	status, _ := body["status"].(map[string]any)
	if status["has_trial_credit"] != true {
		t.Errorf("Expected trial credit on a new account, got %v", status)
	}

	resp, body = server.do(t, "POST", "/api/auth/register", "", map[string]string{
		"email":    "flow@example.com",
		"password": "secret123",
	})
	if resp.StatusCode != fiber.StatusConflict || body["code"] != "email_taken" {
		t.Errorf("Expected 409 email_taken, got %d %v", resp.StatusCode, body)
	}

	resp, body = server.do(t, "POST", "/api/auth/login", "", map[string]string{
		"email":    "flow@example.com",
		"password": "wrong-password1",
	})
	if resp.StatusCode != fiber.StatusUnauthorized || body["code"] != "invalid_credentials" {
		t.Errorf("Expected 401 invalid_credentials, got %d %v", resp.StatusCode, body)
	}

	resp, body = server.do(t, "POST", "/api/auth/login", "", map[string]string{
		"email":    "flow@example.com",
		"password": "secret123",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200 from login, got %d", resp.StatusCode)
	}
	tokens, _ := body["tokens"].(map[string]any)
	refresh, _ := tokens["refresh_token"].(string)

	resp, body = server.do(t, "POST", "/api/auth/refresh", "", map[string]string{"refresh_token": refresh})
	if resp.StatusCode != fiber.StatusOK || body["access_token"] == "" {
		t.Errorf("Expected a new token pair, got %d %v", resp.StatusCode, body)
	}
}

func TestRegisterValidation(t *testing.T) {
	server := setupTestServer(t)

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"bad email", map[string]string{"email": "not-an-email", "password": "secret123"}, "email"},
		{"weak password", map[string]string{"email": "weak@example.com", "password": "short"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := server.do(t, "POST", "/api/auth/register", "", tt.body)
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", resp.StatusCode)
			}
			if body["code"] != "validation_error" || body["field"] != tt.field {
				t.Errorf("Expected validation_error on %s, got %v", tt.field, body)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	server := setupTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := server.do(t, "POST", "/api/interview/start", tt.token, statisticsStart)
			if resp.StatusCode != fiber.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", resp.StatusCode)
			}
			if body["code"] != "unauthorized" {
				t.Errorf("Expected unauthorized code, got %v", body["code"])
			}
		})
	}
}

func TestInterviewFlow(t *testing.T) {
	server := setupTestServer(t)
	token := server.register(t, "interview@example.com")

	resp, body := server.do(t, "POST", "/api/interview/start", token, statisticsStart)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected 201 from start, got %d: %v", resp.StatusCode, body)
	}
	sessionID, _ := body["session_id"].(string)
	// Only the trial credit is available
	if body["total_tasks"] != float64(1) {
		t.Fatalf("Expected 1 task for a trial account, got %v", body["total_tasks"])
	}
	base := "/api/interview/session/" + sessionID

	resp, body = server.do(t, "GET", base+"/report.html", token, nil)
	if resp.StatusCode != fiber.StatusConflict || body["code"] != "invalid_state" {
		t.Errorf("Expected 409 before finish, got %d %v", resp.StatusCode, body)
	}

	resp, body = server.do(t, "GET", base+"/task", token, nil)
	if resp.StatusCode != fiber.StatusOK || body["can_continue"] != true {
		t.Fatalf("Expected a current task, got %d %v", resp.StatusCode, body)
	}
	task, _ := body["task"].(map[string]any)
	taskID := int64(task["task_id"].(float64))

	resp, body = server.do(t, "POST", base+"/answer", token, map[string]any{
		"task_id": taskID + 100,
		"answer":  "p-value это вероятность",
	})
	if resp.StatusCode != fiber.StatusConflict || body["code"] != "mismatch" {
		t.Errorf("Expected 409 mismatch for a wrong task, got %d %v", resp.StatusCode, body)
	}

	resp, body = server.do(t, "POST", base+"/answer", token, map[string]any{
		"task_id":            taskID,
		"answer":             "p-value это вероятность получить такие же или более экстремальные данные при верной нулевой гипотезе",
		"time_spent_seconds": 240,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200 from answer, got %d: %v", resp.StatusCode, body)
	}
	if body["credit_source"] != string(models.CreditSourceTrial) {
		t.Errorf("Expected trial credit to be consumed, got %v", body["credit_source"])
	}
	if body["can_continue"] != false {
		t.Errorf("Expected no more tasks, got %v", body["can_continue"])
	}

	resp, body = server.do(t, "POST", base+"/finish", token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200 from finish, got %d: %v", resp.StatusCode, body)
	}
	feedbacks, _ := body["task_feedbacks"].([]any)
	if len(feedbacks) != 1 {
		t.Errorf("Expected 1 task feedback in the report, got %d", len(feedbacks))
	}

	req := httptest.NewRequest("GET", base+"/report.html", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	htmlResp, err := server.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if htmlResp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200 from report.html, got %d", htmlResp.StatusCode)
	}
	if ct := htmlResp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected text/html, got %s", ct)
	}
	page, _ := io.ReadAll(htmlResp.Body)
	if !bytes.Contains(page, []byte("<h1>Отчёт по интервью</h1>")) {
		t.Errorf("Expected the report heading in the page")
	}

	resp, body = server.do(t, "GET", base, token, nil)
	if resp.StatusCode != fiber.StatusOK || body["status"] != string(models.SessionCompleted) {
		t.Errorf("Expected completed session, got %d %v", resp.StatusCode, body["status"])
	}

	// The trial is spent and no packages were bought
	resp, body = server.do(t, "POST", "/api/interview/start", token, statisticsStart)
	if resp.StatusCode != fiber.StatusPaymentRequired || body["code"] != "insufficient_entitlement" {
		t.Errorf("Expected 402 without credits, got %d %v", resp.StatusCode, body)
	}
}

func TestInterviewErrorMapping(t *testing.T) {
	server := setupTestServer(t)
	owner := server.register(t, "owner@example.com")
	other := server.register(t, "other@example.com")

	_, body := server.do(t, "POST", "/api/interview/start", owner, statisticsStart)
	sessionID, _ := body["session_id"].(string)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"unknown session", "GET", "/api/interview/session/missing", owner, nil, fiber.StatusNotFound, "not_found"},
		{"foreign session", "GET", "/api/interview/session/" + sessionID, other, nil, fiber.StatusForbidden, "forbidden"},
		{"foreign finish", "POST", "/api/interview/session/" + sessionID + "/finish", other, nil, fiber.StatusForbidden, "forbidden"},
		{"missing task id", "POST", "/api/interview/session/" + sessionID + "/answer", owner, map[string]any{"answer": "x"}, fiber.StatusBadRequest, "bad_request"},
		{"unknown topic", "POST", "/api/interview/start", owner, map[string]string{
			"specialization":   models.SpecializationProductAnalyst,
			"experience_level": models.LevelJunior,
			"company_tier":     models.CompanyTier1,
			"topic":            "astrology",
		}, fiber.StatusBadRequest, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := server.do(t, tt.method, tt.path, tt.token, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("Expected %d, got %d: %v", tt.status, resp.StatusCode, body)
			}
			if body["code"] != tt.code {
				t.Errorf("Expected code %s, got %v", tt.code, body["code"])
			}
		})
	}
}

func TestMockCheckoutFlow(t *testing.T) {
	server := setupTestServer(t)
	token := server.register(t, "buyer@example.com")

	resp, body := server.do(t, "GET", "/api/payments/plans", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200 from plans, got %d", resp.StatusCode)
	}
	if plans, _ := body["plans"].([]any); len(plans) != 4 {
		t.Errorf("Expected 4 plans, got %d", len(plans))
	}

	resp, body = server.do(t, "POST", "/api/payments/checkout", token, map[string]string{"plan_id": "gold"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400 for unknown plan, got %d", resp.StatusCode)
	}

	resp, body = server.do(t, "POST", "/api/payments/checkout", token, map[string]string{"plan_id": "3_questions"})
	if resp.StatusCode != fiber.StatusOK || body["mock"] != true {
		t.Fatalf("Expected a mock checkout, got %d %v", resp.StatusCode, body)
	}
	paymentID, _ := body["payment_id"].(string)

	resp, body = server.do(t, "POST", "/api/payments/mock/"+paymentID+"/complete", token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200 from mock completion, got %d: %v", resp.StatusCode, body)
	}
	if body["paid_credits"] != float64(3) || body["questions_left"] != float64(4) {
		t.Errorf("Expected 3 paid credits and 4 available, got %v", body)
	}

	resp, body = server.do(t, "POST", "/api/interview/start", token, statisticsStart)
	if resp.StatusCode != fiber.StatusCreated || body["total_tasks"] != float64(3) {
		t.Errorf("Expected a full 3-task session after purchase, got %d %v", resp.StatusCode, body["total_tasks"])
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		deps   map[string]Pinger
		status int
		want   string
	}{
		{"all ok", map[string]Pinger{"mongodb": stubPinger{}, "redis": nil}, fiber.StatusOK, "healthy"},
		{"redis down", map[string]Pinger{"mongodb": stubPinger{}, "redis": stubPinger{err: errors.New("connection refused")}}, fiber.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/health", NewHealthHandler(services.NewSessionStore(time.Hour), tt.deps).Handle)

			resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, resp.StatusCode)
			}

			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if body["status"] != tt.want {
				t.Errorf("Expected status %s, got %v", tt.want, body["status"])
			}
			checks, _ := body["checks"].(map[string]any)
			if checks["redis"] == "ok" && tt.want == "degraded" {
				t.Errorf("Expected redis to be reported unhealthy")
			}
		})
	}
}

func TestReportToMarkdownEscapesCandidateText(t *testing.T) {
	report := &models.FinalReport{
		SessionID:    "s1",
		OverallScore: 64,
		TaskFeedbacks: []models.TaskFeedback{{
			TaskID:   1,
			Question: "Что такое | SQL JOIN?",
			Answer:   "<script>alert(1)</script> **bold**",
			Score:    64,
		}},
		OverallStrengths: []string{"structure"},
	}

	page, err := renderReportHTML(report)
	if err != nil {
		t.Fatalf("renderReportHTML failed: %v", err)
	}
	if bytes.Contains(page, []byte("<script>")) {
		t.Errorf("Candidate HTML must not reach the page")
	}
	if bytes.Contains(page, []byte("<strong>bold</strong>")) {
		t.Errorf("Candidate markdown must be rendered literally")
	}
	if !bytes.Contains(page, []byte("<table>")) {
		t.Errorf("Expected the questions table")
	}
}
