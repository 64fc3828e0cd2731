package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a candidate account together with its question entitlement
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	Telegram     string             `bson:"telegramUsername,omitempty" json:"telegram_username,omitempty"`
	PasswordHash string             `bson:"passwordHash,omitempty" json:"-"` // Argon2id hash, never exposed in API
	CreatedAt    time.Time          `bson:"createdAt" json:"created_at"`
	LastLoginAt  time.Time          `bson:"lastLoginAt" json:"last_login_at"`

	// Entitlement: one free question for new users, then paid questions
	HasTrialCredit bool `bson:"hasTrialCredit" json:"has_trial_credit"`
	PaidCredits    int  `bson:"paidCredits" json:"paid_credits"`

	// Registration metadata
	RegistrationType string `bson:"registrationType,omitempty" json:"registration_type,omitempty"`
	Country          string `bson:"country,omitempty" json:"country,omitempty"`
	City             string `bson:"city,omitempty" json:"city,omitempty"`

	// DodoPayments integration
	DodoCustomerID string `bson:"dodoCustomerId,omitempty" json:"-"`
}

// UserID returns the stable opaque identifier used across the service
func (u *User) UserID() string {
	return u.ID.Hex()
}

// Entitlement returns the credit balance carried by the user record
func (u *User) Entitlement() Entitlement {
	return Entitlement{
		UserID:         u.UserID(),
		HasTrialCredit: u.HasTrialCredit,
		PaidCredits:    u.PaidCredits,
	}
}

// CreditSource identifies which part of the balance a consumed credit came from
type CreditSource string

const (
	CreditSourceTrial CreditSource = "trial"
	CreditSourcePaid  CreditSource = "paid"
)

// User type labels shown to the frontend
const (
	UserTypePaid    = "paid"
	UserTypeTrial   = "trial"
	UserTypeExpired = "expired"
)

// Entitlement is a user's consumable-question balance
type Entitlement struct {
	UserID         string `json:"user_id"`
	HasTrialCredit bool   `json:"has_trial_credit"`
	PaidCredits    int    `json:"paid_credits"`
}

// Available returns the number of questions the user may still take
func (e Entitlement) Available() int {
	n := e.PaidCredits
	if e.HasTrialCredit {
		n++
	}
	return n
}

// UserType classifies the balance for display
func (e Entitlement) UserType() string {
	switch {
	case e.PaidCredits > 0:
		return UserTypePaid
	case e.HasTrialCredit:
		return UserTypeTrial
	default:
		return UserTypeExpired
	}
}
