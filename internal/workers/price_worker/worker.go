// Package price_worker keeps the SOL/USD quote warm on a cron schedule so
// request paths rarely hit the price feeds directly.
package price_worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/covest/covest-service/internal/adapters/pricing"
	"github.com/covest/covest-service/pkg/logger"
)

type Worker struct {
	oracle   *pricing.Oracle
	cron     *cron.Cron
	schedule string
	logger   *logger.Logger
}

// NewWorker creates a new price refresh worker
func NewWorker(oracle *pricing.Oracle, schedule string, logger *logger.Logger) *Worker {
	if schedule == "" {
		schedule = "*/2 * * * *"
	}
	return &Worker{
		oracle:   oracle,
		cron:     cron.New(),
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the refresh job and runs one refresh immediately so the
// last-known quote is populated before the first request.
func (w *Worker) Start(ctx context.Context) error {
	w.refresh(ctx)

	_, err := w.cron.AddFunc(w.schedule, func() { w.refresh(ctx) })
	if err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("price worker started", "schedule", w.schedule)
	return nil
}

// Stop halts the cron scheduler and waits for a running refresh to finish.
func (w *Worker) Stop() {
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
	w.logger.Info("price worker stopped")
}

func (w *Worker) refresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := w.oracle.Refresh(refreshCtx); err != nil {
		w.logger.Warn("price refresh failed", "error", err)
	}
}
