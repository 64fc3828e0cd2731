package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment status constants
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// Plan is a one-off package of interview questions
type Plan struct {
	ID             string `json:"plan_id"`
	Name           string `json:"name"`
	QuestionsCount int    `json:"questions_count"`
	Price          int64  `json:"price"` // minor units (kopecks)
	Currency       string `json:"currency"`
	Description    string `json:"description"`
	DodoProductID  string `json:"-"`
}

// DefaultPlans returns a fresh copy of the question packages on sale
func DefaultPlans() []Plan {
	return []Plan{
		{ID: "3_questions", Name: "Starter", QuestionsCount: 3, Price: 29900, Currency: "RUB", Description: "3 вопроса для практики"},
		{ID: "6_questions", Name: "Standard", QuestionsCount: 6, Price: 49900, Currency: "RUB", Description: "6 вопросов для регулярной практики"},
		{ID: "12_questions", Name: "Pro", QuestionsCount: 12, Price: 89900, Currency: "RUB", Description: "12 вопросов для серьёзной подготовки"},
		{ID: "24_questions", Name: "Ultimate", QuestionsCount: 24, Price: 149900, Currency: "RUB", Description: "24 вопроса для максимальной подготовки"},
	}
}

// Payment is a purchase of a question package
type Payment struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PaymentID       string             `bson:"paymentId" json:"payment_id"` // checkout session id or provider payment id
	UserID          string             `bson:"userId" json:"user_id"`
	PlanID          string             `bson:"planId" json:"plan_id"`
	Status          string             `bson:"status" json:"status"`
	Amount          int64              `bson:"amount" json:"amount"`
	Currency        string             `bson:"currency" json:"currency"`
	Provider        string             `bson:"provider" json:"provider"`
	ProviderPayment string             `bson:"providerPaymentId,omitempty" json:"provider_payment_id,omitempty"`
	IPAddress       string             `bson:"ipAddress,omitempty" json:"-"`
	CreatedAt       time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updated_at"`
}

// PaymentEvent is the audit log entry of a processed webhook
type PaymentEvent struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DodoEventID string             `bson:"dodoEventId" json:"dodo_event_id"`
	EventType   string             `bson:"eventType" json:"event_type"`
	UserID      string             `bson:"userId,omitempty" json:"user_id,omitempty"`
	Metadata    map[string]any     `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"created_at"`
}
