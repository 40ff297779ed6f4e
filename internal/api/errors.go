package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Checker-Finance/bank-gateway/internal/bank"
)

// statusFor maps an engine or client error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, bank.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, bank.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, bank.ErrRemoteUnavailable):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// outcomeFor labels an operation result for metrics.
func outcomeFor(err error, abandoned bool) string {
	switch {
	case abandoned, errors.Is(err, context.Canceled):
		return "canceled"
	case err == nil:
		return "ok"
	case errors.Is(err, bank.ErrValidation):
		return "invalid"
	case errors.Is(err, bank.ErrNotFound):
		return "not_found"
	case errors.Is(err, bank.ErrRemoteUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func writeError(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}
