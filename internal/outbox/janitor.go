package outbox

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/arc-self/access-core/internal/repository/db"
)

// Janitor periodically releases outbox locks that have outlived the
// lock TTL — a safety net on top of FOR UPDATE SKIP LOCKED for instances
// that crashed mid-claim (spec §4.4 step 3, §9 "Locking via diagnostic
// columns").
type Janitor struct {
	querier        db.Querier
	lockTTLSeconds int
	cron           *cron.Cron
	log            *zap.Logger
}

// NewJanitor builds a Janitor.
func NewJanitor(querier db.Querier, lockTTLSeconds int, log *zap.Logger) *Janitor {
	return &Janitor{
		querier:        querier,
		lockTTLSeconds: lockTTLSeconds,
		cron:           cron.New(cron.WithSeconds()),
		log:            log,
	}
}

// Start schedules the reclaim job every 30 seconds and begins running.
// Call Stop to gracefully shut down.
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc("*/30 * * * * *", func() { j.reclaim(ctx) }); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("outbox lock janitor started", zap.Int("lock_ttl_seconds", j.lockTTLSeconds))
	return nil
}

// Stop gracefully stops the janitor.
func (j *Janitor) Stop() {
	stopCtx := j.cron.Stop()
	<-stopCtx.Done()
	j.log.Info("outbox lock janitor stopped")
}

func (j *Janitor) reclaim(ctx context.Context) {
	n, err := j.querier.ReclaimStaleLocks(ctx, j.lockTTLSeconds)
	if err != nil {
		j.log.Error("reclaim stale outbox locks failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("reclaimed stale outbox locks", zap.Int64("count", n))
	}
}
