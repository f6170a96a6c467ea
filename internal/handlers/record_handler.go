package handlers

import (
	"log/slog"
	"strconv"

	"impact-service/internal/models"
	"impact-service/internal/services"
	"impact-service/shared/utils"

	"github.com/gofiber/fiber/v3"
)

type RecordHandler struct {
	recordService *services.RecordService
}

func NewRecordHandler(recordService *services.RecordService) *RecordHandler {
	return &RecordHandler{recordService: recordService}
}

func (h *RecordHandler) Register(app *fiber.App) {
	protectedGr := app.Group("impact/protected/api/v1")

	recordGroup := protectedGr.Group("/records")
	recordGroup.Post("/", h.SubmitRecord)            // POST /records - submit or save a draft
	recordGroup.Get("/", h.ListRecords)              // GET  /records - filtered list
	recordGroup.Get("/:id", h.GetRecord)             // GET  /records/{id}
	recordGroup.Put("/:id", h.UpdateRecord)          // PUT  /records/{id} - creator edit / resubmit
	recordGroup.Post("/:id/review", h.ReviewRecord) // POST /records/{id}/review - approve or return
}

func (h *RecordHandler) SubmitRecord(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "missing X-User-ID header"))
	}

	var req models.SubmitRecordRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return badRequest(c, "invalid request body")
	}

	rec, err := h.recordService.Submit(c.Context(), actor, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.CreateSuccessResponse(rec))
}

func (h *RecordHandler) UpdateRecord(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "missing X-User-ID header"))
	}

	var req models.UpdateRecordRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return badRequest(c, "invalid request body")
	}

	rec, err := h.recordService.Update(c.Context(), actor, c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(rec))
}

func (h *RecordHandler) ReviewRecord(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "missing X-User-ID header"))
	}

	var req models.ReviewRecordRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return badRequest(c, "invalid request body")
	}

	rec, err := h.recordService.Review(c.Context(), actor, c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(rec))
}

func (h *RecordHandler) GetRecord(c fiber.Ctx) error {
	rec, err := h.recordService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(rec))
}

func (h *RecordHandler) ListRecords(c fiber.Ctx) error {
	filter := models.RecordFilter{
		Module:    models.Module(c.Query("module")),
		Status:    models.RecordStatus(c.Query("status")),
		District:  c.Query("district"),
		SchoolID:  c.Query("schoolId"),
		CreatedBy: c.Query("createdBy"),
	}
	if filter.Module != "" && !filter.Module.IsValid() {
		return badRequest(c, "unknown module")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return badRequest(c, "unknown status")
	}
	for _, p := range []struct {
		name string
		dst  **models.Date
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		d, err := models.ParseDate(raw)
		if err != nil {
			return badRequest(c, p.name+": "+err.Error())
		}
		*p.dst = &d
	}

	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return badRequest(c, "limit must be a number")
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		return badRequest(c, "offset must be a number")
	}

	records, total, err := h.recordService.List(c.Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateListResponse(records, total))
}

func queryInt(c fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
