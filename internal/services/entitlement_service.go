package services

import (
	"context"
	"fmt"
	"log"

	"github.com/Renarion/AI-for-mock-interview/internal/models"
)

// EntitlementStatus is the balance summary shown to the candidate
type EntitlementStatus struct {
	UserType       string `json:"user_type"`
	HasTrialCredit bool   `json:"has_trial_credit"`
	PaidCredits    int    `json:"paid_credits"`
	QuestionsLeft  int    `json:"questions_left"`
}

// EntitlementService is the ledger of consumable interview questions.
// Every mutating call is serialized per user on top of the store's own atomicity.
type EntitlementService struct {
	store CreditStore
	locks *keyedMutex
}

// NewEntitlementService creates a ledger over the given credit store
func NewEntitlementService(store CreditStore) *EntitlementService {
	return &EntitlementService{
		store: store,
		locks: newKeyedMutex(),
	}
}

// AvailableCredits returns (1 if the trial credit is unused) + paid credits
func (s *EntitlementService) AvailableCredits(ctx context.Context, userID string) (int, error) {
	ent, err := s.store.GetEntitlement(ctx, userID)
	if err != nil {
		return 0, err
	}
	return ent.Available(), nil
}

// ConsumeOne takes one credit, trial before paid. It reports false without
// error when the balance is already zero.
func (s *EntitlementService) ConsumeOne(ctx context.Context, userID string) (models.CreditSource, bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	source, ok, err := s.store.ConsumeCredit(ctx, userID)
	if err != nil {
		return "", false, fmt.Errorf("failed to consume credit: %w", err)
	}
	if !ok {
		log.Printf("⚠️  [LEDGER] User %s has no credits left", userID)
		return "", false, nil
	}

	GetMetrics().RecordCreditConsumed(string(source))
	log.Printf("💳 [LEDGER] Consumed %s credit for user %s", source, userID)
	return source, true, nil
}

// CreditPaid adds count paid credits. Duplicate payment notifications are
// filtered by the caller.
func (s *EntitlementService) CreditPaid(ctx context.Context, userID string, count int) (models.Entitlement, error) {
	if count < 1 {
		return models.Entitlement{}, fmt.Errorf("credit count must be at least 1, got %d", count)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	ent, err := s.store.AddPaidCredits(ctx, userID, count)
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("failed to credit user: %w", err)
	}

	GetMetrics().RecordCreditsGranted(count)
	log.Printf("✅ [LEDGER] Credited %d paid questions to user %s (balance: %d)", count, userID, ent.Available())
	return ent, nil
}

// Status returns the user's balance classified as paid, trial or expired
func (s *EntitlementService) Status(ctx context.Context, userID string) (*EntitlementStatus, error) {
	ent, err := s.store.GetEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &EntitlementStatus{
		UserType:       ent.UserType(),
		HasTrialCredit: ent.HasTrialCredit,
		PaidCredits:    ent.PaidCredits,
		QuestionsLeft:  ent.Available(),
	}, nil
}
