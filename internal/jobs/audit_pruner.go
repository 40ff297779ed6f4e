package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const pruneAuditQuery = `DELETE FROM audit.operation_event WHERE recorded_at < $1`

// AuditPruner periodically deletes audit ledger rows older than the
// retention window.
type AuditPruner struct {
	logger    *zap.Logger
	db        DBExecutor // small interface wrapper over pgxpool.Pool
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// DBExecutor defines minimal subset of pgxpool.Pool needed for execution.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewAuditPruner constructs a background job that runs every interval.
func NewAuditPruner(logger *zap.Logger, db DBExecutor, interval, retention time.Duration) *AuditPruner {
	return &AuditPruner{
		logger:    logger,
		db:        db,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the prune loop until Stop is called or ctx is canceled.
func (p *AuditPruner) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("audit_pruner.started",
		zap.Duration("interval", p.interval),
		zap.Duration("retention", p.retention))

	for {
		select {
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-p.stopCh:
			p.logger.Info("audit_pruner.stopped (manual stop)")
			return
		case <-ctx.Done():
			p.logger.Info("audit_pruner.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the pruner. It must be called at most once.
func (p *AuditPruner) Stop() {
	close(p.stopCh)
}

// RunOnce executes one prune cycle and returns the number of rows removed.
func (p *AuditPruner) RunOnce(ctx context.Context) int64 {
	start := p.now()
	cutoff := start.Add(-p.retention).UTC()

	tag, err := p.db.Exec(ctx, pruneAuditQuery, cutoff)
	if err != nil {
		p.logger.Error("audit_pruner.prune_failed", zap.Error(err))
		return 0
	}

	p.logger.Info("audit_pruner.success",
		zap.Time("cutoff", cutoff),
		zap.Int64("rows", tag.RowsAffected()),
		zap.Duration("duration", time.Since(start)))
	return tag.RowsAffected()
}
