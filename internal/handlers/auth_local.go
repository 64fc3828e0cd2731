package handlers

import (
	"errors"
	"log"

	"github.com/Renarion/AI-for-mock-interview/internal/middleware"
	"github.com/Renarion/AI-for-mock-interview/internal/services"

	"github.com/gofiber/fiber/v2"
)

// LocalAuthHandler handles email/password authentication endpoints
type LocalAuthHandler struct {
	userService *services.UserService
}

// NewLocalAuthHandler creates a new local auth handler
func NewLocalAuthHandler(userService *services.UserService) *LocalAuthHandler {
	return &LocalAuthHandler{userService: userService}
}

// LoginRequest is the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshTokenRequest is the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates a new account with one free question
// POST /api/auth/register
func (h *LocalAuthHandler) Register(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.userService.Register(c.UserContext(), req)
	if errors.Is(err, services.ErrEmailTaken) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "User with this email already exists",
			"code":  "email_taken",
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// Login authenticates a user with email and password
// POST /api/auth/login
func (h *LocalAuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.userService.Login(c.UserContext(), req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		log.Printf("⚠️  [AUTH] Failed login attempt for %s from %s", req.Email, c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid email or password",
			"code":  "invalid_credentials",
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(result)
}

// Refresh exchanges a refresh token for a new token pair
// POST /api/auth/refresh
func (h *LocalAuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return badRequest(c, "refresh_token is required")
	}

	tokens, err := h.userService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired refresh token",
			"code":  "invalid_credentials",
		})
	}

	return c.JSON(tokens)
}

// Me returns the current user and their question balance
// GET /api/auth/me
func (h *LocalAuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	user, status, err := h.userService.Me(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"user":   user,
		"status": status,
	})
}
