package handlers

import (
	"log/slog"
	"strings"

	"impact-service/internal/models"
	"impact-service/internal/services"
	"impact-service/shared/utils"

	"github.com/gofiber/fiber/v3"
)

type FactPackHandler struct {
	factPackService *services.FactPackService
}

func NewFactPackHandler(factPackService *services.FactPackService) *FactPackHandler {
	return &FactPackHandler{factPackService: factPackService}
}

func (h *FactPackHandler) Register(app *fiber.App) {
	protectedGr := app.Group("impact/protected/api/v1")

	packGroup := protectedGr.Group("/fact-packs")
	packGroup.Post("/", h.PublishFactPack)  // POST /fact-packs - aggregate and store a pack
	packGroup.Get("/", h.ListFactPacks)     // GET  /fact-packs?prefix=district/gulu/
	packGroup.Get("/preview", h.Preview)    // GET  /fact-packs/preview?level=&id=&period= - build without storing
	packGroup.Get("/*", h.GetFactPack)      // GET  /fact-packs/{key...}
}

func (h *FactPackHandler) PublishFactPack(c fiber.Ctx) error {
	var req models.PublishFactPackRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return badRequest(c, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	level, _ := models.ParseGeoLevel(req.Level)
	period, ok := models.ParsePeriod(req.Period)
	if !ok {
		return respondError(c, models.ErrUnknownPeriod)
	}

	published, err := h.factPackService.Publish(c.Context(), models.GeoScope{Level: level, ID: strings.TrimSpace(req.ID)}, period)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.CreateSuccessResponse(published))
}

func (h *FactPackHandler) Preview(c fiber.Ctx) error {
	scope, period, err := scopeFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	pack, err := h.factPackService.Generate(c.Context(), scope, period)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(pack))
}

func (h *FactPackHandler) ListFactPacks(c fiber.Ctx) error {
	keys, err := h.factPackService.List(c.Context(), c.Query("prefix"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateListResponse(keys, len(keys)))
}

func (h *FactPackHandler) GetFactPack(c fiber.Ctx) error {
	key := strings.Trim(c.Params("*"), "/")
	if key == "" {
		return h.ListFactPacks(c)
	}
	pack, err := h.factPackService.Get(c.Context(), key)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(pack))
}
