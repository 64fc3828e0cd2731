package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/models"
	"github.com/Renarion/AI-for-mock-interview/pkg/auth"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password
var ErrInvalidCredentials = errors.New("invalid email or password")

// RegisterInput is the sign-up form
type RegisterInput struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	Name             string `json:"name"`
	Telegram         string `json:"telegram_username"`
	RegistrationType string `json:"registration_type"`
	Country          string `json:"country"`
	City             string `json:"city"`
}

// AuthResult is returned by register and login
type AuthResult struct {
	User   *models.User       `json:"user"`
	Status *EntitlementStatus `json:"status"`
	Tokens *auth.TokenPair    `json:"tokens"`
}

// UserService handles candidate accounts
type UserService struct {
	store  UserStore
	tokens *auth.TokenManager
	ledger *EntitlementService
	now    func() time.Time
}

// NewUserService creates a new user service
func NewUserService(store UserStore, tokens *auth.TokenManager, ledger *EntitlementService) *UserService {
	return &UserService{
		store:  store,
		tokens: tokens,
		ledger: ledger,
		now:    time.Now,
	}
}

// Register creates an account holding one trial credit and signs the user in
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, &models.ValidationError{Field: "email", Value: in.Email}
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, &models.ValidationError{Field: "password", Value: err.Error()}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	registrationType := in.RegistrationType
	if registrationType == "" {
		registrationType = "email"
	}

	now := s.now()
	user := &models.User{
		Name:             strings.TrimSpace(in.Name),
		Email:            in.Email,
		Telegram:         strings.TrimPrefix(strings.TrimSpace(in.Telegram), "@"),
		PasswordHash:     hash,
		CreatedAt:        now,
		LastLoginAt:      now,
		HasTrialCredit:   true,
		PaidCredits:      0,
		RegistrationType: registrationType,
		Country:          in.Country,
		City:             in.City,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("👤 [AUTH] Registered user %s (%s) with trial credit", user.UserID(), user.Email)
	return s.signIn(ctx, user)
}

// Login verifies the password and issues new tokens
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, password)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.store.TouchLogin(ctx, user.UserID(), now); err != nil {
		log.Printf("⚠️  [AUTH] Failed to update last login for %s: %v", user.UserID(), err)
	}
	user.LastLoginAt = now

	return s.signIn(ctx, user)
}

// Refresh exchanges a refresh token for a new token pair
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	identity, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if _, err := s.store.GetUserByID(ctx, identity.UserID); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.tokens.IssueTokens(identity.UserID, identity.Email)
}

func (s *UserService) signIn(ctx context.Context, user *models.User) (*AuthResult, error) {
	tokens, err := s.tokens.IssueTokens(user.UserID(), user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	status, err := s.ledger.Status(ctx, user.UserID())
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Status: status, Tokens: tokens}, nil
}

// Me returns the account and its credit status
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, *EntitlementStatus, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	status, err := s.ledger.Status(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, status, nil
}
