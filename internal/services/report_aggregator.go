package services

import (
	"context"
	"log"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/models"
)

// Fixed texts of the fallback report
var (
	fallbackStrengths       = []string{"Вы прошли интервью до конца!"}
	fallbackAreas           = []string{"Попробуйте пройти ещё раз для лучшего результата"}
	fallbackRecommendations = []string{"Продолжайте практиковаться"}
)

const fallbackMotivation = "Не удалось сформировать подробный отчёт. Но главное, что вы практикуетесь, и это уже отлично!"

// ReportAggregator folds per-task feedback into a final report
type ReportAggregator struct {
	feedback *GuardedFeedback
}

// NewReportAggregator creates an aggregator; feedback may be nil to always use the fallback
func NewReportAggregator(feedback *GuardedFeedback) *ReportAggregator {
	return &ReportAggregator{feedback: feedback}
}

// Aggregate never fails: a generator error, timeout or empty feedback list
// yields the deterministic fallback report.
func (a *ReportAggregator) Aggregate(ctx context.Context, sessionID string, feedbacks []models.TaskFeedback, criteria models.SelectionCriteria, completedAt time.Time) models.FinalReport {
	report := models.FinalReport{
		SessionID:     sessionID,
		TaskFeedbacks: make([]models.TaskFeedback, len(feedbacks)),
		CompletedAt:   completedAt,
	}
	for i, fb := range feedbacks {
		report.TaskFeedbacks[i] = fb.Clone()
	}

	if len(feedbacks) == 0 || a.feedback == nil {
		applyFallback(&report)
		return report
	}

	summary, err := a.feedback.Summarize(ctx, ReportRequest{
		SessionID: sessionID,
		Feedbacks: report.TaskFeedbacks,
		Criteria:  criteria,
	})
	if err != nil {
		GetMetrics().RecordFeedbackDegraded("report")
		log.Printf("⚠️  [REPORT] Report generation failed for session %s, using fallback: %v", sessionID, err)
		applyFallback(&report)
		return report
	}

	report.OverallScore = meanScore(feedbacks)
	if summary.OverallScore != nil {
		report.OverallScore = *summary.OverallScore
	}
	report.OverallStrengths = nonNil(summary.OverallStrengths)
	report.AreasToImprove = nonNil(summary.AreasToImprove)
	report.StudyRecommendations = nonNil(summary.StudyRecommendations)
	report.MotivationalMessage = summary.MotivationalMessage
	return report
}

func applyFallback(report *models.FinalReport) {
	report.OverallScore = meanScore(report.TaskFeedbacks)
	report.OverallStrengths = append([]string(nil), fallbackStrengths...)
	report.AreasToImprove = append([]string(nil), fallbackAreas...)
	report.StudyRecommendations = append([]string(nil), fallbackRecommendations...)
	report.MotivationalMessage = fallbackMotivation
	report.Degraded = true
}

// meanScore is floor(mean(score)), 0 for an empty list
func meanScore(feedbacks []models.TaskFeedback) int {
	if len(feedbacks) == 0 {
		return 0
	}
	sum := 0
	for _, fb := range feedbacks {
		sum += fb.Score
	}
	return sum / len(feedbacks)
}
