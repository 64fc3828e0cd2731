package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/models"

	"golang.org/x/time/rate"
)

// ScoreRequest is everything a generator needs to grade one answer
type ScoreRequest struct {
	TaskID          int64
	Question        string
	ReferenceAnswer string
	Answer          string
	Topic           string
}

// AnswerEvaluation is a generator's verdict on one answer. Score is a
// pointer so a missing field can be told apart from an explicit zero.
type AnswerEvaluation struct {
	Score            *int     `json:"score"`
	Strengths        []string `json:"strengths"`
	Improvements     []string `json:"improvements"`
	DetailedFeedback string   `json:"detailed_feedback"`
}

// ReportRequest carries the graded answers of a session plus its selection
type ReportRequest struct {
	SessionID string
	Feedbacks []models.TaskFeedback
	Criteria  models.SelectionCriteria
}

// ReportSummary is a generator's session-level verdict
type ReportSummary struct {
	OverallScore         *int     `json:"overall_score"`
	OverallStrengths     []string `json:"overall_strengths"`
	AreasToImprove       []string `json:"areas_to_improve"`
	StudyRecommendations []string `json:"study_recommendations"`
	MotivationalMessage  string   `json:"motivational_message"`
}

// FeedbackGenerator produces natural-language feedback. Implementations may
// fail or hang; callers go through GuardedFeedback.
type FeedbackGenerator interface {
	Name() string
	ScoreAnswer(ctx context.Context, req ScoreRequest) (*AnswerEvaluation, error)
	BuildReport(ctx context.Context, req ReportRequest) (*ReportSummary, error)
}

// defaultScore is used when a generator omits the score field
const defaultScore = 50

const (
	degradedImprovement = "Произошла ошибка при генерации фидбека"
	degradedCommentary  = "Не удалось автоматически оценить ответ. Ответ сохранён, попробуйте пройти вопрос ещё раз позже."
)

// Evaluation is the outcome of grading one answer. Feedback is always
// usable; Degraded marks the fallback record and Cause says why.
type Evaluation struct {
	Feedback models.TaskFeedback
	Degraded bool
	Cause    error
}

// GuardedFeedback bounds every generator call with a timeout and a shared
// rate limit, and never lets a generator failure escape as an error.
type GuardedFeedback struct {
	generator     FeedbackGenerator
	limiter       *rate.Limiter
	answerTimeout time.Duration
	reportTimeout time.Duration
}

// NewGuardedFeedback wraps a generator. ratePerSecond <= 0 disables pacing.
func NewGuardedFeedback(generator FeedbackGenerator, answerTimeout, reportTimeout time.Duration, ratePerSecond float64, burst int) *GuardedFeedback {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &GuardedFeedback{
		generator:     generator,
		limiter:       rate.NewLimiter(limit, burst),
		answerTimeout: answerTimeout,
		reportTimeout: reportTimeout,
	}
}

// Name returns the wrapped generator's name
func (g *GuardedFeedback) Name() string {
	return g.generator.Name()
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Evaluate grades one answer, falling back to a zero-score record on any
// generator error, timeout or panic.
func (g *GuardedFeedback) Evaluate(ctx context.Context, req ScoreRequest) Evaluation {
	ctx, cancel := withOptionalTimeout(ctx, g.answerTimeout)
	defer cancel()

	start := time.Now()
	eval, err := g.scoreAnswer(ctx, req)
	GetMetrics().RecordFeedbackLatency("answer", time.Since(start).Seconds())

	if err != nil {
		GetMetrics().RecordFeedbackDegraded("answer")
		log.Printf("⚠️  [FEEDBACK] %s failed to score task %d: %v", g.generator.Name(), req.TaskID, err)
		return Evaluation{
			Feedback: DegradedFeedback(req),
			Degraded: true,
			Cause:    err,
		}
	}

	score := defaultScore
	if eval.Score != nil {
		score = clampScore(*eval.Score)
	}

	return Evaluation{
		Feedback: models.TaskFeedback{
			TaskID:           req.TaskID,
			Question:         req.Question,
			Answer:           req.Answer,
			Score:            score,
			Strengths:        nonNil(eval.Strengths),
			Improvements:     nonNil(eval.Improvements),
			DetailedFeedback: eval.DetailedFeedback,
		},
	}
}

type scoreOutcome struct {
	eval *AnswerEvaluation
	err  error
}

type reportOutcome struct {
	summary *ReportSummary
	err     error
}

// scoreAnswer runs the generator in its own goroutine so a call that ignores
// ctx is abandoned at the deadline instead of holding the caller.
func (g *GuardedFeedback) scoreAnswer(ctx context.Context, req ScoreRequest) (*AnswerEvaluation, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	done := make(chan scoreOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- scoreOutcome{err: fmt.Errorf("generator panic: %v", r)}
			}
		}()
		eval, err := g.generator.ScoreAnswer(ctx, req)
		if err == nil && eval == nil {
			err = fmt.Errorf("generator returned no evaluation")
		}
		done <- scoreOutcome{eval: eval, err: err}
	}()

	select {
	case out := <-done:
		return out.eval, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Summarize asks the generator for a session report under the report timeout.
// Scores in a successful summary are clamped to 0..100.
func (g *GuardedFeedback) Summarize(ctx context.Context, req ReportRequest) (*ReportSummary, error) {
	ctx, cancel := withOptionalTimeout(ctx, g.reportTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		GetMetrics().RecordFeedbackLatency("report", time.Since(start).Seconds())
	}()

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	done := make(chan reportOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reportOutcome{err: fmt.Errorf("generator panic: %v", r)}
			}
		}()
		summary, err := g.generator.BuildReport(ctx, req)
		done <- reportOutcome{summary: summary, err: err}
	}()

	var out reportOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if out.err != nil {
		return nil, out.err
	}
	if out.summary == nil {
		return nil, fmt.Errorf("generator returned no report")
	}
	if out.summary.OverallScore != nil {
		clamped := clampScore(*out.summary.OverallScore)
		out.summary.OverallScore = &clamped
	}
	return out.summary, nil
}

// DegradedFeedback is the record stored when an answer could not be graded
func DegradedFeedback(req ScoreRequest) models.TaskFeedback {
	return models.TaskFeedback{
		TaskID:           req.TaskID,
		Question:         req.Question,
		Answer:           req.Answer,
		Score:            0,
		Strengths:        []string{},
		Improvements:     []string{degradedImprovement},
		DetailedFeedback: degradedCommentary,
		Degraded:         true,
	}
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
