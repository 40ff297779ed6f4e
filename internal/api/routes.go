package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthChecker is a dependency probed by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RegisterRoutes registers all HTTP routes on the Fiber app. checks maps a
// dependency name to its probe; disabled dependencies are simply absent.
func RegisterRoutes(app *fiber.App, logger *zap.Logger, checks map[string]HealthChecker, resources Resources, ops *OperationHandler) {
	if logger == nil {
		logger = zap.NewNop()
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		results := make(map[string]string, len(checks))
		status := "ok"
		code := fiber.StatusOK

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for name, check := range checks {
			results[name] = "ok"
			if err := check.HealthCheck(healthCtx); err != nil {
				results[name] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	})

	bankAPI := app.Group("/bank")
	registerResources(bankAPI, logger, resources)

	opsAPI := bankAPI.Group("/operations")
	opsAPI.Post("/grantproduct", ops.GrantProduct)
	opsAPI.Post("/deposit", ops.Deposit)
	opsAPI.Post("/withdraw", ops.Withdraw)
	opsAPI.Get("/purchases/:customerId", ops.CustomerPurchases)
	opsAPI.Get("/:operationId", ops.GetOperation)
}
