package handlers

import (
	"fmt"

	"impact-service/internal/models"
	"impact-service/internal/services"
	"impact-service/shared/utils"

	"github.com/gofiber/fiber/v3"
)

type ImpactHandler struct {
	aggregator   services.Aggregator
	mapper       *services.PublicMapper
	guard        *services.PrivacyGuard
	publicMaxAge int
}

func NewImpactHandler(aggregator services.Aggregator, mapper *services.PublicMapper, guard *services.PrivacyGuard, publicMaxAge int) *ImpactHandler {
	return &ImpactHandler{
		aggregator:   aggregator,
		mapper:       mapper,
		guard:        guard,
		publicMaxAge: publicMaxAge,
	}
}

func (h *ImpactHandler) Register(app *fiber.App) {
	publicGr := app.Group("impact/public/api/v1")
	publicGr.Get("/aggregate", h.GetPublicAggregate) // GET /aggregate?level=&id=&period= - dashboard payload
	publicGr.Get("/navigator", h.GetNavigator)       // GET /navigator?level=&id= - drill-down lists only

	protectedGr := app.Group("impact/protected/api/v1")
	protectedGr.Get("/aggregate", h.GetAggregate) // GET /aggregate - internal, strict scope
}

// GetPublicAggregate serves the aggregate with snake_case aliases. Unknown
// scopes degrade to a zeroed aggregate rather than an error.
func (h *ImpactHandler) GetPublicAggregate(c fiber.Ctx) error {
	scope, period, err := scopeFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}

	agg, err := h.aggregator.Aggregate(c.Context(), scope, period)
	if err != nil {
		return respondError(c, err)
	}
	public, err := h.mapper.ToPublic(agg)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderCacheControl, fmt.Sprintf("public, max-age=%d", h.publicMaxAge))
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(public))
}

// GetAggregate is the internal variant: unknown scopes are reported.
func (h *ImpactHandler) GetAggregate(c fiber.Ctx) error {
	scope, period, err := scopeFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.aggregator.ValidateScope(c.Context(), scope); err != nil {
		return respondError(c, err)
	}

	agg, err := h.aggregator.Aggregate(c.Context(), scope, period)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.guard.Scan(agg); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(agg))
}

func (h *ImpactHandler) GetNavigator(c fiber.Ctx) error {
	scope, period, err := scopeFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}

	agg, err := h.aggregator.Aggregate(c.Context(), scope, period)
	if err != nil {
		return respondError(c, err)
	}
	nav := struct {
		Scope     models.GeoScope  `json:"scope"`
		Navigator models.Navigator `json:"navigator"`
	}{agg.Scope, agg.Navigator}
	if err := h.guard.Scan(nav); err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderCacheControl, fmt.Sprintf("public, max-age=%d", h.publicMaxAge))
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(nav))
}
