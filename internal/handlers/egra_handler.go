package handlers

import (
	"impact-service/internal/models"
	"impact-service/internal/services"
	"impact-service/shared/utils"

	"github.com/gofiber/fiber/v3"
)

type EgraHandler struct {
	scorer *services.EgraScorer
	guard  *services.PrivacyGuard
}

func NewEgraHandler(scorer *services.EgraScorer, guard *services.PrivacyGuard) *EgraHandler {
	return &EgraHandler{scorer: scorer, guard: guard}
}

func (h *EgraHandler) Register(app *fiber.App) {
	protectedGr := app.Group("impact/protected/api/v1")
	protectedGr.Post("/egra/summarize", h.Summarize) // POST /egra/summarize - class summary for an assessment form
}

type egraSummaryResponse struct {
	Summary models.EgraClassSummary       `json:"summary"`
	Rows    []models.NormalizedLearnerRow `json:"rows"`
}

// Summarize scores learner rows without storing anything. The normalised
// rows echo the caller's own form back; only the summary is scanned.
func (h *EgraHandler) Summarize(c fiber.Ctx) error {
	var req models.EgraSummarizeRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	resp := egraSummaryResponse{
		Summary: h.scorer.Summarize(req.Rows),
		Rows:    h.scorer.NormalizeRows(req.Rows),
	}
	if err := h.guard.Scan(resp.Summary); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(resp))
}
