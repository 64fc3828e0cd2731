package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Renarion/AI-for-mock-interview/internal/config"
)

// NewFeedbackGenerator picks the generator implementation once, from config.
// Providers without an API key fall back to the offline mock.
func NewFeedbackGenerator(cfg *config.Config) FeedbackGenerator {
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey != "" {
			log.Printf("🤖 [FEEDBACK] Using Anthropic generator (%s)", cfg.AnthropicModel)
			return NewAnthropicFeedbackGenerator(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.AnthropicModel)
		}
		log.Println("⚠️  [FEEDBACK] ANTHROPIC_API_KEY not set, using mock generator")
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			log.Printf("🤖 [FEEDBACK] Using OpenAI-compatible generator (%s)", cfg.OpenAIModel)
			return NewOpenAIFeedbackGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		}
		log.Println("⚠️  [FEEDBACK] OPENAI_API_KEY not set, using mock generator")
	case "mock":
	default:
		log.Printf("⚠️  [FEEDBACK] Unknown LLM_PROVIDER %q, using mock generator", cfg.LLMProvider)
	}
	return NewMockFeedbackGenerator()
}

// OpenAIFeedbackGenerator talks to any OpenAI-compatible /chat/completions endpoint
type OpenAIFeedbackGenerator struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAIFeedbackGenerator(apiKey, baseURL, model string) *OpenAIFeedbackGenerator {
	return &OpenAIFeedbackGenerator{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		// Request deadlines come from the caller's context
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (g *OpenAIFeedbackGenerator) Name() string { return "openai" }

func (g *OpenAIFeedbackGenerator) ScoreAnswer(ctx context.Context, req ScoreRequest) (*AnswerEvaluation, error) {
	content, err := g.complete(ctx, AnswerReviewSystemPrompt, buildAnswerPrompt(req))
	if err != nil {
		return nil, err
	}
	var eval AnswerEvaluation
	if err := json.Unmarshal([]byte(content), &eval); err != nil {
		return nil, fmt.Errorf("failed to parse evaluation: %w", err)
	}
	return &eval, nil
}

func (g *OpenAIFeedbackGenerator) BuildReport(ctx context.Context, req ReportRequest) (*ReportSummary, error) {
	content, err := g.complete(ctx, ReportSystemPrompt, buildReportPrompt(req))
	if err != nil {
		return nil, err
	}
	var summary ReportSummary
	if err := json.Unmarshal([]byte(content), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &summary, nil
}

func (g *OpenAIFeedbackGenerator) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model": g.model,
		"messages": []map[string]interface{}{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"stream":          false,
		"temperature":     0.7,
		"response_format": map[string]interface{}{"type": "json_object"},
	}

	reqBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	body, err := doLLMRequest(g.client, httpReq)
	if err != nil {
		return "", err
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}
	if len(apiResponse.Choices) == 0 {
		return "", fmt.Errorf("no choices in API response")
	}
	return apiResponse.Choices[0].Message.Content, nil
}

// AnthropicFeedbackGenerator calls the Anthropic messages API and pulls the
// JSON object out of the text reply
type AnthropicFeedbackGenerator struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

const anthropicVersion = "2023-06-01"

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

func NewAnthropicFeedbackGenerator(apiKey, baseURL, model string) *AnthropicFeedbackGenerator {
	return &AnthropicFeedbackGenerator{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (g *AnthropicFeedbackGenerator) Name() string { return "anthropic" }

func (g *AnthropicFeedbackGenerator) ScoreAnswer(ctx context.Context, req ScoreRequest) (*AnswerEvaluation, error) {
	content, err := g.complete(ctx, AnswerReviewSystemPrompt, buildAnswerPrompt(req))
	if err != nil {
		return nil, err
	}
	var eval AnswerEvaluation
	if err := json.Unmarshal([]byte(content), &eval); err != nil {
		return nil, fmt.Errorf("failed to parse evaluation: %w", err)
	}
	return &eval, nil
}

func (g *AnthropicFeedbackGenerator) BuildReport(ctx context.Context, req ReportRequest) (*ReportSummary, error) {
	content, err := g.complete(ctx, ReportSystemPrompt, buildReportPrompt(req))
	if err != nil {
		return nil, err
	}
	var summary ReportSummary
	if err := json.Unmarshal([]byte(content), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &summary, nil
}

func (g *AnthropicFeedbackGenerator) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model":      g.model,
		"max_tokens": 2000,
		"system":     systemPrompt,
		"messages": []map[string]interface{}{
			{"role": "user", "content": userPrompt},
		},
	}

	reqBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	body, err := doLLMRequest(g.client, httpReq)
	if err != nil {
		return "", err
	}

	var apiResponse struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}

	var text strings.Builder
	for _, block := range apiResponse.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	match := jsonObjectPattern.FindString(text.String())
	if match == "" {
		return "", fmt.Errorf("no JSON object in model response")
	}
	return match, nil
}

// doLLMRequest sends the request and returns the body of a 200 response
func doLLMRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️  [FEEDBACK] API error: status %d (response length: %d bytes)", resp.StatusCode, len(body))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(body), 300))
	}
	return body, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// MockFeedbackGenerator grades answers offline by length so the whole flow
// can run without an API key
type MockFeedbackGenerator struct{}

func NewMockFeedbackGenerator() *MockFeedbackGenerator {
	return &MockFeedbackGenerator{}
}

func (g *MockFeedbackGenerator) Name() string { return "mock" }

func (g *MockFeedbackGenerator) ScoreAnswer(ctx context.Context, req ScoreRequest) (*AnswerEvaluation, error) {
	words := len(strings.Fields(req.Answer))
	score := 20 + words
	if score > 90 {
		score = 90
	}

	eval := &AnswerEvaluation{
		Score:            &score,
		Strengths:        []string{"Ответ дан по существу вопроса"},
		Improvements:     []string{"Добавьте пример из практики"},
		DetailedFeedback: fmt.Sprintf("Автоматическая оценка без модели: ответ содержит %d слов.", words),
	}
	if words < 10 {
		eval.Strengths = []string{}
		eval.Improvements = append(eval.Improvements, "Раскройте ответ подробнее")
	}
	return eval, nil
}

func (g *MockFeedbackGenerator) BuildReport(ctx context.Context, req ReportRequest) (*ReportSummary, error) {
	score := meanScore(req.Feedbacks)
	return &ReportSummary{
		OverallScore:         &score,
		OverallStrengths:     []string{"Вы ответили на все вопросы интервью"},
		AreasToImprove:       []string{"Структурируйте ответы: тезис, аргументы, пример"},
		StudyRecommendations: []string{"Повторите темы, по которым оценка ниже 60"},
		MotivationalMessage:  "Регулярная практика быстро даёт результат. Продолжайте!",
	}, nil
}
