package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"impact-service/internal/models"
	"impact-service/shared/utils"

	"github.com/gofiber/fiber/v3"
)

// respondError maps service errors onto the response envelope.
func respondError(c fiber.Ctx, err error) error {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(
			utils.CreateFieldErrorResponse("BAD_REQUEST", "request validation failed", verr.Fields))
	case errors.Is(err, models.ErrUnknownPeriod):
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("UNKNOWN_PERIOD", err.Error()))
	case errors.Is(err, models.ErrUnknownScope):
		return c.Status(fiber.StatusNotFound).JSON(utils.CreateErrorResponse("UNKNOWN_SCOPE", err.Error()))
	case errors.Is(err, models.ErrRecordNotFound),
		errors.Is(err, models.ErrSchoolNotFound),
		errors.Is(err, models.ErrFactPackNotFound):
		return c.Status(fiber.StatusNotFound).JSON(utils.CreateErrorResponse("NOT_FOUND", err.Error()))
	case errors.Is(err, models.ErrDuplicateRecord):
		return c.Status(fiber.StatusConflict).JSON(utils.CreateErrorResponse("DUPLICATE_RECORD", err.Error()))
	case errors.Is(err, models.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(utils.CreateErrorResponse("INVALID_TRANSITION", err.Error()))
	case errors.Is(err, models.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(utils.CreateErrorResponse("FORBIDDEN", err.Error()))
	case errors.Is(err, models.ErrStoreUnavailable):
		slog.Error("store unavailable", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(
			utils.CreateRetryableErrorResponse("STATS_UNAVAILABLE", "statistics are temporarily unavailable, try again shortly"))
	case errors.Is(err, models.ErrPrivacyViolation):
		// never echo the offending key to the client
		slog.Error("privacy scan blocked response", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(
			utils.CreateErrorResponse("PRIVACY_VIOLATION", "response withheld"))
	}

	slog.Error("unhandled error", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(
		utils.CreateErrorResponse("INTERNAL_SERVER_ERROR", "internal server error"))
}

func badRequest(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("BAD_REQUEST", message))
}

// actorFrom reads the caller forwarded by the gateway.
func actorFrom(c fiber.Ctx) (models.Actor, bool) {
	userID := strings.TrimSpace(c.Get("X-User-ID"))
	if userID == "" {
		return models.Actor{}, false
	}
	return models.Actor{UserID: userID, Role: models.ParseRole(c.Get("X-User-Role"))}, true
}

// scopeFromQuery reads level, id and period. Missing values mean the whole
// country for the fiscal year.
func scopeFromQuery(c fiber.Ctx) (models.GeoScope, models.Period, error) {
	level, ok := models.ParseGeoLevel(c.Query("level"))
	if !ok {
		verr := models.NewValidationError()
		verr.Add("level", "must be one of: country region subregion district school")
		return models.GeoScope{}, "", verr
	}
	scope := models.GeoScope{Level: level, ID: strings.TrimSpace(c.Query("id"))}
	if level != models.GeoLevelCountry && scope.ID == "" {
		verr := models.NewValidationError()
		verr.Add("id", "is required below country level")
		return models.GeoScope{}, "", verr
	}

	period, ok := models.ParsePeriod(c.Query("period"))
	if !ok {
		return models.GeoScope{}, "", models.ErrUnknownPeriod
	}
	return scope, period, nil
}
