package handlers

import (
	"github.com/Renarion/AI-for-mock-interview/internal/middleware"
	"github.com/Renarion/AI-for-mock-interview/internal/models"
	"github.com/Renarion/AI-for-mock-interview/internal/services"

	"github.com/gofiber/fiber/v2"
)

// InterviewHandler exposes the interview session lifecycle
type InterviewHandler struct {
	interviews *services.InterviewService
}

// NewInterviewHandler creates a new interview handler
func NewInterviewHandler(interviews *services.InterviewService) *InterviewHandler {
	return &InterviewHandler{interviews: interviews}
}

// SubmitAnswerRequest is the request body for an answer
type SubmitAnswerRequest struct {
	TaskID           int64  `json:"task_id"`
	Answer           string `json:"answer"`
	TimeSpentSeconds *int   `json:"time_spent_seconds"`
}

// Specializations lists interview tracks
// GET /api/interview/specializations
func (h *InterviewHandler) Specializations(c *fiber.Ctx) error {
	return c.JSON(models.Specializations)
}

// ExperienceLevels lists seniority levels
// GET /api/interview/experience-levels
func (h *InterviewHandler) ExperienceLevels(c *fiber.Ctx) error {
	return c.JSON(models.ExperienceLevels)
}

// CompanyTiers lists company tiers
// GET /api/interview/company-tiers
func (h *InterviewHandler) CompanyTiers(c *fiber.Ctx) error {
	return c.JSON(models.CompanyTiers)
}

// Topics lists question topics including the random mix
// GET /api/interview/topics
func (h *InterviewHandler) Topics(c *fiber.Ctx) error {
	return c.JSON(models.Topics)
}

// Start opens a new interview session
// POST /api/interview/start
func (h *InterviewHandler) Start(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	var criteria models.SelectionCriteria
	if err := c.BodyParser(&criteria); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.interviews.StartSession(c.UserContext(), userID, criteria)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetSession returns the session snapshot
// GET /api/interview/session/:id
func (h *InterviewHandler) GetSession(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	snapshot, err := h.interviews.GetSession(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(snapshot)
}

// CurrentTask returns the task awaiting an answer
// GET /api/interview/session/:id/task
func (h *InterviewHandler) CurrentTask(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	task, err := h.interviews.GetCurrentTask(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"task":         task,
		"can_continue": task != nil,
	})
}

// SubmitAnswer grades an answer to the current task
// POST /api/interview/session/:id/answer
func (h *InterviewHandler) SubmitAnswer(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req SubmitAnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.TaskID == 0 {
		return badRequest(c, "task_id is required")
	}

	result, err := h.interviews.SubmitAnswer(c.UserContext(), userID, c.Params("id"), services.SubmitAnswerInput{
		TaskID:           req.TaskID,
		Answer:           req.Answer,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(result)
}

// Finish completes the session and returns the final report
// POST /api/interview/session/:id/finish
func (h *InterviewHandler) Finish(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	report, err := h.interviews.FinishSession(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(report)
}
