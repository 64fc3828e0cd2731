package services

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Renarion/AI-for-mock-interview/internal/logging"
	"github.com/Renarion/AI-for-mock-interview/internal/models"

	"github.com/google/uuid"
)

// MaxAnswerLength is the longest accepted answer, in characters
const MaxAnswerLength = 3000

// StartResult is returned when an interview begins
type StartResult struct {
	SessionID        string            `json:"session_id"`
	Tasks            []models.TaskView `json:"tasks"`
	TotalTasks       int               `json:"total_tasks"`
	TimeLimitMinutes int               `json:"time_limit_minutes"`
}

// SessionSnapshot is a read-only view of a session
type SessionSnapshot struct {
	SessionID      string                   `json:"session_id"`
	Status         models.SessionStatus     `json:"status"`
	Selection      models.SelectionCriteria `json:"selection"`
	CurrentTask    *models.TaskView         `json:"current_task"`
	CompletedTasks int                      `json:"completed_tasks"`
	RemainingTasks int                      `json:"remaining_tasks"`
	TotalTasks     int                      `json:"total_tasks"`
	CanContinue    bool                     `json:"can_continue"`
	Feedbacks      []models.TaskFeedback    `json:"feedbacks"`
	StartedAt      time.Time                `json:"started_at"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
	Report         *models.FinalReport      `json:"report,omitempty"`
}

// SubmitAnswerInput is one candidate answer
type SubmitAnswerInput struct {
	TaskID           int64
	Answer           string
	TimeSpentSeconds *int
}

// SubmitResult is the outcome of an accepted answer
type SubmitResult struct {
	Feedback       models.TaskFeedback `json:"feedback"`
	Degraded       bool                `json:"degraded"`
	CreditSource   models.CreditSource `json:"credit_source"`
	CanContinue    bool                `json:"can_continue"`
	CompletedTasks int                 `json:"completed_tasks"`
	RemainingTasks int                 `json:"remaining_tasks"`
}

// InterviewService drives interview sessions through their lifecycle and
// charges one credit per accepted answer.
type InterviewService struct {
	ledger     *EntitlementService
	selector   *TaskSelector
	store      *SessionStore
	feedback   *GuardedFeedback
	aggregator *ReportAggregator
	audit      AuditSink

	timeLimitMinutes int
	now              func() time.Time
}

// NewInterviewService wires the session core. audit may be nil.
func NewInterviewService(
	ledger *EntitlementService,
	selector *TaskSelector,
	store *SessionStore,
	feedback *GuardedFeedback,
	aggregator *ReportAggregator,
	audit AuditSink,
	timeLimitMinutes int,
) *InterviewService {
	if timeLimitMinutes <= 0 {
		timeLimitMinutes = 20
	}
	return &InterviewService{
		ledger:           ledger,
		selector:         selector,
		store:            store,
		feedback:         feedback,
		aggregator:       aggregator,
		audit:            audit,
		timeLimitMinutes: timeLimitMinutes,
		now:              time.Now,
	}
}

func (s *InterviewService) taskView(session *models.Session, index int) models.TaskView {
	task := session.Tasks[index]
	return models.TaskView{
		TaskID:           task.TaskID,
		Question:         task.Question,
		TaskNumber:       index + 1,
		TotalTasks:       len(session.Tasks),
		TimeLimitMinutes: s.timeLimitMinutes,
	}
}

// StartSession selects tasks and opens a new session. The task count never
// exceeds the user's available credits.
func (s *InterviewService) StartSession(ctx context.Context, userID string, criteria models.SelectionCriteria) (*StartResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	available, err := s.ledger.AvailableCredits(ctx, userID)
	if err != nil {
		return nil, err
	}
	if available <= 0 {
		return nil, newError(KindInsufficientEntitlement, "no credits available")
	}

	tasks, err := s.selector.Select(ctx, criteria)
	if err != nil {
		return nil, err
	}

	effective := min(MaxTasksPerSession, available, len(tasks))
	tasks = tasks[:effective]

	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Criteria:  criteria,
		Tasks:     make([]models.SessionTask, len(tasks)),
		Answers:   []models.AnswerRecord{},
		Feedbacks: []models.TaskFeedback{},
		Status:    models.SessionActive,
		StartedAt: s.now(),
	}
	for i, t := range tasks {
		session.Tasks[i] = models.SessionTask{
			TaskID:          t.ID,
			Question:        t.Question,
			ReferenceAnswer: t.ReferenceAnswer,
			Topic:           t.Topic,
		}
	}

	if err := s.store.Create(session); err != nil {
		return nil, err
	}

	result := &StartResult{
		SessionID:        session.ID,
		Tasks:            make([]models.TaskView, len(session.Tasks)),
		TotalTasks:       len(session.Tasks),
		TimeLimitMinutes: s.timeLimitMinutes,
	}
	for i := range session.Tasks {
		result.Tasks[i] = s.taskView(session, i)
	}

	GetMetrics().RecordSessionStarted()
	logging.WithSession(session.ID, userID).Info("interview session started",
		"tasks", len(session.Tasks),
		"available_credits", available,
		"topic", criteria.Topic,
	)
	return result, nil
}

func checkOwner(session *models.Session, userID string) error {
	if session.UserID != userID {
		return newError(KindForbidden, "session %s belongs to another user", session.ID)
	}
	return nil
}

func (s *InterviewService) load(userID, sessionID string) (*models.Session, error) {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return nil, newError(KindNotFound, "session %s not found", sessionID)
	}
	if err := checkOwner(session, userID); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession returns a snapshot of the session
func (s *InterviewService) GetSession(ctx context.Context, userID, sessionID string) (*SessionSnapshot, error) {
	session, err := s.load(userID, sessionID)
	if err != nil {
		return nil, err
	}

	canContinue, completed, remaining := session.CanContinue()
	snapshot := &SessionSnapshot{
		SessionID:      session.ID,
		Status:         session.Status,
		Selection:      session.Criteria,
		CompletedTasks: completed,
		RemainingTasks: remaining,
		TotalTasks:     len(session.Tasks),
		CanContinue:    canContinue,
		Feedbacks:      session.Feedbacks,
		StartedAt:      session.StartedAt,
		CompletedAt:    session.CompletedAt,
		Report:         session.Report,
	}
	if _, ok := session.CurrentTask(); ok {
		view := s.taskView(session, session.Cursor)
		snapshot.CurrentTask = &view
	}
	return snapshot, nil
}

// GetCurrentTask returns the live task, or nil when none remains
func (s *InterviewService) GetCurrentTask(ctx context.Context, userID, sessionID string) (*models.TaskView, error) {
	session, err := s.load(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := session.CurrentTask(); !ok {
		return nil, nil
	}
	view := s.taskView(session, session.Cursor)
	return &view, nil
}

// CanContinue reports whether another answer may be submitted
func (s *InterviewService) CanContinue(ctx context.Context, userID, sessionID string) (bool, int, int, error) {
	session, err := s.load(userID, sessionID)
	if err != nil {
		return false, 0, 0, err
	}
	ok, completed, remaining := session.CanContinue()
	return ok, completed, remaining, nil
}

func validateAnswer(answer string) error {
	if strings.TrimSpace(answer) == "" {
		return &models.ValidationError{Field: "answer", Value: "empty"}
	}
	if utf8.RuneCountInString(answer) > MaxAnswerLength {
		return &models.ValidationError{Field: "answer", Value: "longer than 3000 characters"}
	}
	return nil
}

// SubmitAnswer grades the answer to the current task and advances the session.
// Precondition failures leave the session and the ledger untouched. Once a
// credit is consumed the answer is always recorded, with degraded feedback
// if the generator fails.
func (s *InterviewService) SubmitAnswer(ctx context.Context, userID, sessionID string, input SubmitAnswerInput) (*SubmitResult, error) {
	if err := validateAnswer(input.Answer); err != nil {
		return nil, err
	}

	var result *SubmitResult
	err := s.store.With(sessionID, func(session *models.Session) error {
		if err := checkOwner(session, userID); err != nil {
			return err
		}
		if session.Status != models.SessionActive {
			return newError(KindInvalidState, "session is %s", session.Status)
		}
		task, ok := session.CurrentTask()
		if !ok {
			return newError(KindInvalidState, "no tasks remaining")
		}
		if task.TaskID != input.TaskID {
			return newError(KindMismatch, "task id mismatch: expected %d, got %d", task.TaskID, input.TaskID)
		}

		source, consumed, err := s.ledger.ConsumeOne(ctx, userID)
		if err != nil {
			return err
		}
		if !consumed {
			return newError(KindInsufficientEntitlement, "no credits available")
		}

		taskLog := logging.WithTask(logging.WithSession(session.ID, userID), task.TaskID, session.Cursor+1, len(session.Tasks))

		eval := s.feedback.Evaluate(ctx, ScoreRequest{
			TaskID:          task.TaskID,
			Question:        task.Question,
			ReferenceAnswer: task.ReferenceAnswer,
			Answer:          input.Answer,
			Topic:           task.Topic,
		})

		now := s.now()
		session.Answers = append(session.Answers, models.AnswerRecord{
			TaskID:           task.TaskID,
			Answer:           input.Answer,
			TimeSpentSeconds: input.TimeSpentSeconds,
			SubmittedAt:      now,
		})
		session.Feedbacks = append(session.Feedbacks, eval.Feedback)
		session.Cursor++

		s.emitAudit(session, eval.Feedback, now)

		canContinue, completed, remaining := session.CanContinue()
		result = &SubmitResult{
			Feedback:       eval.Feedback.Clone(),
			Degraded:       eval.Degraded,
			CreditSource:   source,
			CanContinue:    canContinue,
			CompletedTasks: completed,
			RemainingTasks: remaining,
		}

		GetMetrics().RecordAnswer()
		taskLog.Info("answer accepted",
			"score", eval.Feedback.Score,
			"degraded", eval.Degraded,
			"credit_source", source,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *InterviewService) emitAudit(session *models.Session, fb models.TaskFeedback, at time.Time) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(&models.LLMAnswer{
		UserID:           session.UserID,
		SessionID:        session.ID,
		FeedbackID:       uuid.New().String(),
		TaskID:           fb.TaskID,
		Feedback:         fb.Clone(),
		ProvidedFeedback: feedbackSummaryText(fb),
		UserAnswer:       fb.Answer,
		CreatedAt:        at,
	})
}

// FinishSession completes the session and returns its report. Repeated calls
// return the first report unchanged.
func (s *InterviewService) FinishSession(ctx context.Context, userID, sessionID string) (*models.FinalReport, error) {
	var report models.FinalReport
	err := s.store.With(sessionID, func(session *models.Session) error {
		if err := checkOwner(session, userID); err != nil {
			return err
		}

		if session.Report != nil {
			report = session.Report.Clone()
			return nil
		}

		previous := session.Status
		now := s.now()
		if err := session.Transition(models.SessionCompleted, now); err != nil {
			return newError(KindInvalidState, "%v", err)
		}

		generated := s.aggregator.Aggregate(ctx, session.ID, session.Feedbacks, session.Criteria, *session.CompletedAt)
		session.Report = &generated
		report = generated.Clone()

		GetMetrics().RecordSessionFinished(string(models.SessionCompleted))
		log.Printf("🏁 [INTERVIEW] Session %s completed (was %s): %d/%d answered, score %d",
			session.ID, previous, len(session.Answers), len(session.Tasks), report.OverallScore)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// GetReport returns the cached report of a finished session
func (s *InterviewService) GetReport(ctx context.Context, userID, sessionID string) (*models.FinalReport, error) {
	session, err := s.load(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Report == nil {
		return nil, newError(KindInvalidState, "session %s is not finished", sessionID)
	}
	return session.Report, nil
}

// AbandonStale marks active sessions started more than maxAge ago as
// abandoned and returns how many were changed.
func (s *InterviewService) AbandonStale(ctx context.Context, maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)
	abandoned := 0

	for _, id := range s.store.IDs() {
		if ctx.Err() != nil {
			break
		}
		_ = s.store.With(id, func(session *models.Session) error {
			if session.Status != models.SessionActive || !session.StartedAt.Before(cutoff) {
				return nil
			}
			if err := session.Transition(models.SessionAbandoned, s.now()); err != nil {
				return err
			}
			abandoned++
			GetMetrics().RecordSessionFinished(string(models.SessionAbandoned))
			return nil
		})
	}

	if abandoned > 0 {
		log.Printf("⏰ [INTERVIEW] Abandoned %d stale sessions (older than %v)", abandoned, maxAge)
	}
	return abandoned
}
