package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/models"
	"github.com/Renarion/AI-for-mock-interview/pkg/auth"
)

func newTestUserService(t *testing.T) (*UserService, *auth.TokenManager) {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret-with-enough-entropy", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	users := NewMemoryUserStore()
	return NewUserService(users, tokens, NewEntitlementService(users)), tokens
}

func TestUserService_Register(t *testing.T) {
	service, tokens := newTestUserService(t)
	ctx := context.Background()

	result, err := service.Register(ctx, RegisterInput{
		Email:    "Anna@Example.com",
		Password: "secret123",
		Name:     " Anna ",
		Telegram: "@anna",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if result.User.Email != "anna@example.com" || result.User.Name != "Anna" || result.User.Telegram != "anna" {
		t.Errorf("Unexpected user fields: %+v", result.User)
	}
	if result.Status.UserType != models.UserTypeTrial || result.Status.QuestionsLeft != 1 {
		t.Errorf("Expected one trial question, got %+v", result.Status)
	}

	identity, err := tokens.VerifyAccessToken(result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Issued access token is invalid: %v", err)
	}
	if identity.UserID != result.User.UserID() {
		t.Errorf("Expected subject %s, got %s", result.User.UserID(), identity.UserID)
	}

	if _, err := service.Register(ctx, RegisterInput{Email: "anna@example.com", Password: "secret123"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Expected email taken, got %v", err)
	}
}

func TestUserService_Register_Validation(t *testing.T) {
	service, _ := newTestUserService(t)

	tests := []struct {
		name      string
		input     RegisterInput
		wantField string
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Password: "secret123"}, "email"},
		{"short password", RegisterInput{Email: "a@example.com", Password: "a1"}, "password"},
		{"password without digit", RegisterInput{Email: "a@example.com", Password: "onlyletters"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(context.Background(), tt.input)
			var vErr *models.ValidationError
			if !errors.As(err, &vErr) || vErr.Field != tt.wantField {
				t.Errorf("Expected %s validation error, got %v", tt.wantField, err)
			}
		})
	}
}

func TestUserService_LoginAndRefresh(t *testing.T) {
	service, _ := newTestUserService(t)
	ctx := context.Background()

	registered, err := service.Register(ctx, RegisterInput{Email: "ivan@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  bool
	}{
		{"correct", "ivan@example.com", "secret123", false},
		{"case-insensitive email", "IVAN@example.com", "secret123", false},
		{"wrong password", "ivan@example.com", "secret124", true},
		{"unknown email", "petr@example.com", "secret123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Login(ctx, tt.email, tt.password)
			if tt.wantErr && !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Expected invalid credentials, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Login failed: %v", err)
			}
		})
	}

	pair, err := service.Refresh(ctx, registered.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pair.AccessToken == "" {
		t.Error("Expected a new access token")
	}

	// An access token is not a refresh token
	if _, err := service.Refresh(ctx, registered.Tokens.AccessToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected invalid credentials for access token, got %v", err)
	}
}

func TestUserService_Me(t *testing.T) {
	service, _ := newTestUserService(t)
	ctx := context.Background()

	registered, _ := service.Register(ctx, RegisterInput{Email: "olga@example.com", Password: "secret123"})
	user, status, err := service.Me(ctx, registered.User.UserID())
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if user.Email != "olga@example.com" || status.QuestionsLeft != 1 {
		t.Errorf("Unexpected profile: %+v %+v", user, status)
	}

	if _, _, err := service.Me(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected user not found, got %v", err)
	}
}
