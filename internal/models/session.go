package models

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of an interview session
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// CanTransitionTo reports whether moving from s to next is allowed.
// Finishing is unconditional, so completed and abandoned sessions may be
// (re)completed; nothing returns to active.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionActive:
		return next == SessionCompleted || next == SessionAbandoned
	case SessionCompleted:
		return next == SessionCompleted
	case SessionAbandoned:
		return next == SessionCompleted || next == SessionAbandoned
	default:
		return false
	}
}

// Valid reports whether s is one of the known states
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionCompleted, SessionAbandoned:
		return true
	default:
		return false
	}
}

// SessionTask is the snapshot of a catalog task embedded in a session
type SessionTask struct {
	TaskID          int64  `json:"task_id"`
	Question        string `json:"task_question"`
	ReferenceAnswer string `json:"-"`
	Topic           string `json:"topic"`
}

// AnswerRecord is a raw submitted answer
type AnswerRecord struct {
	TaskID           int64     `json:"task_id"`
	Answer           string    `json:"answer"`
	TimeSpentSeconds *int      `json:"time_spent_seconds,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Session is one interview attempt
type Session struct {
	ID        string            `json:"session_id"`
	UserID    string            `json:"user_id"`
	Criteria  SelectionCriteria `json:"selection"`
	Tasks     []SessionTask     `json:"tasks"`
	Cursor    int               `json:"current_task_index"`
	Answers   []AnswerRecord    `json:"answers"`
	Feedbacks []TaskFeedback    `json:"feedbacks"`
	Status    SessionStatus     `json:"status"`
	StartedAt time.Time         `json:"started_at"`

	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	AbandonedAt *time.Time   `json:"abandoned_at,omitempty"`
	Report      *FinalReport `json:"-"`
}

// Transition moves the session to next or returns an error for illegal moves
func (s *Session) Transition(next SessionStatus, at time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal session transition %s -> %s", s.Status, next)
	}
	switch next {
	case SessionCompleted:
		if s.CompletedAt == nil {
			s.CompletedAt = &at
		}
	case SessionAbandoned:
		if s.AbandonedAt == nil {
			s.AbandonedAt = &at
		}
	case SessionActive:
		// unreachable: CanTransitionTo never allows re-activation
	}
	s.Status = next
	return nil
}

// CurrentTask returns the live task or false when none remains or the session is not active
func (s *Session) CurrentTask() (SessionTask, bool) {
	if s.Status != SessionActive || s.Cursor >= len(s.Tasks) {
		return SessionTask{}, false
	}
	return s.Tasks[s.Cursor], true
}

// Progress returns the number of completed and remaining tasks
func (s *Session) Progress() (completed, remaining int) {
	return s.Cursor, len(s.Tasks) - s.Cursor
}

// CanContinue reports whether another answer may be submitted
func (s *Session) CanContinue() (ok bool, completed, remaining int) {
	completed, remaining = s.Progress()
	return s.Status == SessionActive && remaining > 0, completed, remaining
}

// Clone returns a deep copy safe to hand out of the session lock
func (s *Session) Clone() *Session {
	c := *s
	c.Tasks = append([]SessionTask(nil), s.Tasks...)
	c.Answers = append([]AnswerRecord(nil), s.Answers...)
	c.Feedbacks = make([]TaskFeedback, len(s.Feedbacks))
	for i, fb := range s.Feedbacks {
		c.Feedbacks[i] = fb.Clone()
	}
	if s.Report != nil {
		r := s.Report.Clone()
		c.Report = &r
	}
	return &c
}

// TaskView is a task as presented to the candidate
type TaskView struct {
	TaskID           int64  `json:"task_id"`
	Question         string `json:"task_question"`
	TaskNumber       int    `json:"task_number"`
	TotalTasks       int    `json:"total_tasks"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
}
