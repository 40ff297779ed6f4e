package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/internal/metrics"
	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// Execer is the subset of pgxpool.Pool the writer needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertEventQuery = `
	INSERT INTO audit.operation_event (
		event_id,
		operation_id,
		operation,
		event_type,
		customer_id,
		record_id,
		payload,
		source,
		recorded_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (event_id) DO NOTHING;
`

// Writer appends persisted-record events to the audit.operation_event table.
type Writer struct {
	db     Execer
	logger *zap.Logger
	source string
}

// NewWriter constructs an audit writer. source identifies the service
// writing the row (e.g. "bank-gateway").
func NewWriter(db Execer, logger *zap.Logger, source string) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		db:     db,
		logger: logger,
		source: source,
	}
}

// Name identifies the writer in logs and metrics.
func (w *Writer) Name() string { return "audit" }

// Notify inserts ev. Replaying the same event id is a no-op.
func (w *Writer) Notify(ctx context.Context, ev model.OperationEvent) error {
	_, err := w.db.Exec(ctx, insertEventQuery,
		ev.ID,                // event_id
		ev.OperationID,       // operation_id
		string(ev.Operation), // operation
		ev.EventType,         // event_type
		ev.CustomerID,        // customer_id
		ev.RecordID,          // record_id
		[]byte(ev.Payload),   // payload (jsonb)
		w.source,             // source
		ev.Timestamp,         // recorded_at
	)
	if err != nil {
		w.logger.Error("audit.insert_failed",
			zap.String("operation_id", ev.OperationID),
			zap.String("record_id", ev.RecordID),
			zap.Error(err),
		)
		return err
	}

	metrics.IncEventPublished(w.Name(), ev.EventType)
	w.logger.Debug("audit.event_recorded",
		zap.String("operation_id", ev.OperationID),
		zap.String("event_type", ev.EventType),
		zap.String("record_id", ev.RecordID),
	)
	return nil
}
