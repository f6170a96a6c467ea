package handlers

import (
	"log/slog"

	"impact-service/internal/models"
	"impact-service/internal/services"
	"impact-service/shared/utils"

	"github.com/gofiber/fiber/v3"
)

type SchoolHandler struct {
	schoolService *services.SchoolService
}

func NewSchoolHandler(schoolService *services.SchoolService) *SchoolHandler {
	return &SchoolHandler{schoolService: schoolService}
}

func (h *SchoolHandler) Register(app *fiber.App) {
	protectedGr := app.Group("impact/protected/api/v1")

	schoolGroup := protectedGr.Group("/schools")
	schoolGroup.Get("/", h.ListSchools)                       // GET   /schools?district=
	schoolGroup.Post("/", h.CreateSchool)                     // POST  /schools
	schoolGroup.Get("/:id", h.GetSchool)                      // GET   /schools/{id}
	schoolGroup.Patch("/:id/enrollment", h.UpdateEnrollment) // PATCH /schools/{id}/enrollment
}

func (h *SchoolHandler) ListSchools(c fiber.Ctx) error {
	schools, err := h.schoolService.List(c.Context(), c.Query("district"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateListResponse(schools, len(schools)))
}

func (h *SchoolHandler) CreateSchool(c fiber.Ctx) error {
	var req models.CreateSchoolRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return badRequest(c, "invalid request body")
	}

	school, err := h.schoolService.Create(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.CreateSuccessResponse(school))
}

func (h *SchoolHandler) GetSchool(c fiber.Ctx) error {
	school, err := h.schoolService.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(school))
}

func (h *SchoolHandler) UpdateEnrollment(c fiber.Ctx) error {
	var req struct {
		CurrentEnrollment *int `json:"currentEnrollment"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.CurrentEnrollment == nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateFieldErrorResponse(
			"BAD_REQUEST", "request validation failed", map[string]string{"currentEnrollment": "is required"}))
	}

	school, err := h.schoolService.UpdateEnrollment(c.Context(), c.Params("id"), *req.CurrentEnrollment)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(school))
}
