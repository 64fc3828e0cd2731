package models

import "time"

// TaskFeedback is the structured evaluation of one candidate answer
type TaskFeedback struct {
	TaskID           int64    `json:"task_id" bson:"taskId"`
	Question         string   `json:"task_question" bson:"taskQuestion"`
	Answer           string   `json:"user_answer" bson:"userAnswer"`
	Score            int      `json:"score" bson:"score"`
	Strengths        []string `json:"strengths" bson:"strengths"`
	Improvements     []string `json:"improvements" bson:"improvements"`
	DetailedFeedback string   `json:"detailed_feedback" bson:"detailedFeedback"`
	Degraded         bool     `json:"degraded,omitempty" bson:"degraded,omitempty"`
}

// Clone copies the slices so the record stays immutable after hand-out
func (f TaskFeedback) Clone() TaskFeedback {
	f.Strengths = cloneStrings(f.Strengths)
	f.Improvements = cloneStrings(f.Improvements)
	return f
}

// cloneStrings copies items, returning an empty slice for nil so JSON keeps []
func cloneStrings(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}

// FinalReport aggregates all feedback of a completed session
type FinalReport struct {
	SessionID            string         `json:"session_id"`
	OverallScore         int            `json:"overall_score"`
	TaskFeedbacks        []TaskFeedback `json:"task_feedbacks"`
	OverallStrengths     []string       `json:"overall_strengths"`
	AreasToImprove       []string       `json:"areas_to_improve"`
	StudyRecommendations []string       `json:"study_recommendations"`
	MotivationalMessage  string         `json:"motivational_message"`
	CompletedAt          time.Time      `json:"completed_at"`
	Degraded             bool           `json:"degraded,omitempty"`
}

// Clone returns a deep copy of the report
func (r FinalReport) Clone() FinalReport {
	fbs := make([]TaskFeedback, len(r.TaskFeedbacks))
	for i, fb := range r.TaskFeedbacks {
		fbs[i] = fb.Clone()
	}
	r.TaskFeedbacks = fbs
	r.OverallStrengths = cloneStrings(r.OverallStrengths)
	r.AreasToImprove = cloneStrings(r.AreasToImprove)
	r.StudyRecommendations = cloneStrings(r.StudyRecommendations)
	return r
}

// LLMAnswer is the durable audit record written after each accepted answer
type LLMAnswer struct {
	UserID           string       `bson:"userId" json:"user_id"`
	SessionID        string       `bson:"sessionId" json:"session_id"`
	FeedbackID       string       `bson:"feedbackId" json:"feedback_id"`
	TaskID           int64        `bson:"taskId" json:"task_id"`
	Feedback         TaskFeedback `bson:"feedback" json:"feedback"`
	ProvidedFeedback string       `bson:"providedFeedback" json:"provided_feedback"`
	UserAnswer       string       `bson:"userAnswer" json:"user_answer"`
	CreatedAt        time.Time    `bson:"createdAt" json:"created_at"`
}
