package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/internal/bank"
	"github.com/Checker-Finance/bank-gateway/internal/metrics"
	"github.com/Checker-Finance/bank-gateway/internal/store"
	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// MIMEApplicationNDJSON selects the streaming response mode.
const MIMEApplicationNDJSON = "application/x-ndjson"

// Engine defines the composite operations used by the handler.
type Engine interface {
	GrantProduct(ctx context.Context, customerDocNumber, productCategory string) bank.Stream[model.Purchase]
	Deposit(ctx context.Context, customerID, purchaseID string, amount float64) bank.Stream[model.Transaction]
	Withdraw(ctx context.Context, customerID, purchaseID string, amount float64) bank.Stream[model.Transaction]
	CustomerPurchases(ctx context.Context, customerID string) ([]model.Purchase, error)
}

// Journal persists operation records. A nil Journal disables journaling.
type Journal interface {
	SaveOperation(ctx context.Context, rec model.OperationRecord) error
	GetOperation(ctx context.Context, id string) (*model.OperationRecord, error)
}

// OperationHandler serves the composite operation endpoints.
type OperationHandler struct {
	logger  *zap.Logger
	engine  Engine
	journal Journal
}

// NewOperationHandler creates a new OperationHandler.
func NewOperationHandler(logger *zap.Logger, engine Engine, journal Journal) *OperationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationHandler{
		logger:  logger,
		engine:  engine,
		journal: journal,
	}
}

// GrantProduct handles POST /operations/grantproduct.
func (h *OperationHandler) GrantProduct(c *fiber.Ctx) error {
	var req GrantProductRequest
	if err := c.QueryParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return runOperation(h, c, model.OperationGrantProduct, req.params(), func(ctx context.Context) bank.Stream[model.Purchase] {
		return h.engine.GrantProduct(ctx, req.CustomerDocNumber, req.ProductCategory)
	})
}

// Deposit handles POST /operations/deposit.
func (h *OperationHandler) Deposit(c *fiber.Ctx) error {
	return h.transaction(c, model.OperationDeposit, h.engine.Deposit)
}

// Withdraw handles POST /operations/withdraw.
func (h *OperationHandler) Withdraw(c *fiber.Ctx) error {
	return h.transaction(c, model.OperationWithdraw, h.engine.Withdraw)
}

func (h *OperationHandler) transaction(
	c *fiber.Ctx,
	op model.Operation,
	run func(ctx context.Context, customerID, purchaseID string, amount float64) bank.Stream[model.Transaction],
) error {
	var req TransactionRequest
	if err := c.QueryParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return runOperation(h, c, op, req.params(), func(ctx context.Context) bank.Stream[model.Transaction] {
		return run(ctx, req.CustomerID, req.PurchaseID, req.AmountFloat())
	})
}

// CustomerPurchases handles GET /operations/purchases/:customerId.
func (h *OperationHandler) CustomerPurchases(c *fiber.Ctx) error {
	customerID := c.Params("customerId")
	purchases, err := h.engine.CustomerPurchases(c.Context(), customerID)
	if err != nil {
		h.logger.Warn("api.customer_purchases.failed",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return writeError(c, err)
	}
	return c.JSON(purchases)
}

// GetOperation handles GET /operations/:operationId.
func (h *OperationHandler) GetOperation(c *fiber.Ctx) error {
	if h.journal == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "operation journal disabled"})
	}
	id := c.Params("operationId")
	rec, err := h.journal.GetOperation(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrOperationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "operation not found"})
		}
		h.logger.Error("api.get_operation.failed", zap.String("operation_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(rec)
}

// runOperation drives one composite stream, either buffered into a single
// JSON reply or written line by line when the caller accepts NDJSON.
func runOperation[T any](
	h *OperationHandler,
	c *fiber.Ctx,
	op model.Operation,
	params map[string]string,
	start func(ctx context.Context) bank.Stream[T],
) error {
	opID := uuid.NewString()
	rec := &model.OperationRecord{
		ID:        opID,
		Operation: op,
		Params:    params,
		Items:     []model.OperationItem{},
		StartedAt: time.Now().UTC(),
	}
	log := h.logger.With(
		zap.String("operation_id", opID),
		zap.String("operation", string(op)))
	log.Info("api.operation.start", zap.Any("params", params))

	c.Set("X-Operation-Id", opID)

	if wantsNDJSON(c) {
		c.Set(fiber.HeaderContentType, MIMEApplicationNDJSON)
		c.Status(fiber.StatusOK)
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			// The request context is gone once the handler returns, so the
			// stream gets its own and stops on the first failed write.
			ctx, cancel := context.WithCancel(bank.WithOperationID(context.Background(), opID))
			defer cancel()

			enc := json.NewEncoder(w)
			var runErr error
			abandoned := false
			for item, err := range start(ctx) {
				if err != nil {
					runErr = err
					_ = enc.Encode(streamError{OperationID: opID, Error: err.Error()})
					_ = w.Flush()
					break
				}
				if err := enc.Encode(item); err != nil {
					abandoned = true
					break
				}
				if err := w.Flush(); err != nil {
					abandoned = true
					break
				}
				appendItem(rec, op, item)
			}
			h.finish(log, rec, runErr, abandoned)
		})
		return nil
	}

	ctx := bank.WithOperationID(c.Context(), opID)
	resp := OperationResponse[T]{
		OperationID: opID,
		Operation:   string(op),
		Items:       []bank.Item[T]{},
	}
	var runErr error
	for item, err := range start(ctx) {
		if err != nil {
			runErr = err
			break
		}
		resp.Items = append(resp.Items, item)
		appendItem(rec, op, item)
	}
	h.finish(log, rec, runErr, false)

	if runErr != nil {
		resp.Error = runErr.Error()
	}
	return c.Status(statusFor(runErr)).JSON(resp)
}

func wantsNDJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), MIMEApplicationNDJSON)
}

func appendItem[T any](rec *model.OperationRecord, op model.Operation, item bank.Item[T]) {
	metrics.IncOperationItem(string(op), string(item.Phase))
	raw, err := json.Marshal(item.Record)
	if err != nil {
		return
	}
	rec.Items = append(rec.Items, model.OperationItem{Phase: string(item.Phase), Record: raw})
}

// finish stamps the final status, records metrics and writes the journal entry.
func (h *OperationHandler) finish(log *zap.Logger, rec *model.OperationRecord, runErr error, abandoned bool) {
	rec.FinishedAt = time.Now().UTC()
	switch {
	case abandoned:
		rec.Status = model.OperationAbandoned
	case runErr != nil:
		rec.Status = model.OperationFailed
		rec.Error = runErr.Error()
	default:
		rec.Status = model.OperationCompleted
	}
	metrics.IncOperation(string(rec.Operation), outcomeFor(runErr, abandoned))

	if runErr != nil {
		log.Warn("api.operation.failed",
			zap.Int("items", len(rec.Items)),
			zap.Error(runErr))
	} else {
		log.Info("api.operation.finished",
			zap.String("status", string(rec.Status)),
			zap.Int("items", len(rec.Items)),
			zap.Duration("elapsed", rec.FinishedAt.Sub(rec.StartedAt)))
	}

	if h.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.journal.SaveOperation(ctx, *rec); err != nil {
		log.Warn("api.operation.journal_failed", zap.Error(err))
	}
}
