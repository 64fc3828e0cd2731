package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/models"
)

// scriptedGenerator returns canned results and counts calls
type scriptedGenerator struct {
	mu          sync.Mutex
	score       int
	scoreErr    error
	reportErr   error
	delay       time.Duration
	scoreCalls  int
	reportCalls int
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) ScoreAnswer(ctx context.Context, req ScoreRequest) (*AnswerEvaluation, error) {
	g.mu.Lock()
	g.scoreCalls++
	g.mu.Unlock()

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.scoreErr != nil {
		return nil, g.scoreErr
	}
	score := g.score
	return &AnswerEvaluation{
		Score:            &score,
		Strengths:        []string{"clear"},
		Improvements:     []string{"add examples"},
		DetailedFeedback: "ok",
	}, nil
}

func (g *scriptedGenerator) BuildReport(ctx context.Context, req ReportRequest) (*ReportSummary, error) {
	g.mu.Lock()
	g.reportCalls++
	g.mu.Unlock()

	if g.reportErr != nil {
		return nil, g.reportErr
	}
	score := 77
	return &ReportSummary{
		OverallScore:         &score,
		OverallStrengths:     []string{"consistent"},
		AreasToImprove:       []string{"depth"},
		StudyRecommendations: []string{"practice"},
		MotivationalMessage:  "keep going",
	}, nil
}

func (g *scriptedGenerator) calls() (score, report int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scoreCalls, g.reportCalls
}

// recordingSink collects audit records
type recordingSink struct {
	mu      sync.Mutex
	records []*models.LLMAnswer
}

func (s *recordingSink) Emit(record *models.LLMAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var (
	errGeneratorDown = errors.New("provider unavailable")
	userSeq          atomic.Int64
)

func catalogTask(id int64, tier, level, spec, topic string) models.Task {
	return models.Task{
		ID:              id,
		Question:        "question " + topic,
		ReferenceAnswer: "reference",
		CompanyTier:     tier,
		ExperienceLevel: level,
		Specialization:  spec,
		Topic:           topic,
	}
}

func newTestUser(t *testing.T, store *MemoryUserStore, trial bool, paid int) string {
	t.Helper()
	user := &models.User{
		Email:          fmt.Sprintf("user%d@example.com", userSeq.Add(1)),
		HasTrialCredit: trial,
		PaidCredits:    paid,
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user.UserID()
}

type interviewFixture struct {
	service   *InterviewService
	users     *MemoryUserStore
	ledger    *EntitlementService
	store     *SessionStore
	generator *scriptedGenerator
	audit     *recordingSink
}

func newInterviewFixture(t *testing.T, tasks []models.Task) *interviewFixture {
	t.Helper()

	users := NewMemoryUserStore()
	ledger := NewEntitlementService(users)
	selector := NewTaskSelector(NewMemoryTaskRepository(tasks), rand.New(rand.NewPCG(1, 2)))
	store := NewSessionStore(time.Hour)
	generator := &scriptedGenerator{score: 80}
	guarded := NewGuardedFeedback(generator, time.Second, time.Second, 0, 1)
	audit := &recordingSink{}

	return &interviewFixture{
		service:   NewInterviewService(ledger, selector, store, guarded, NewReportAggregator(guarded), audit, 20),
		users:     users,
		ledger:    ledger,
		store:     store,
		generator: generator,
		audit:     audit,
	}
}

var statisticsCriteria = models.SelectionCriteria{
	Specialization:  models.SpecializationProductAnalyst,
	ExperienceLevel: models.LevelJunior,
	CompanyTier:     models.CompanyTier1,
	Topic:           "statistics",
}
