// Package payout_worker drives the delayed auto-payout of confirmed
// withdrawals.
package payout_worker

import (
	"context"
	"sync"
	"time"

	"github.com/covest/covest-service/internal/domain/services/withdrawal"
	"github.com/covest/covest-service/pkg/logger"
)

// Worker polls for withdrawals whose payout delay has elapsed and pushes
// them through the chain send. The service re-checks each row's status
// inside the payout, so overlapping ticks and restarts are harmless.
type Worker struct {
	service      *withdrawal.Service
	logger       *logger.Logger
	pollInterval time.Duration
	batchSize    int
	jobTimeout   time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// NewWorker creates a new payout worker
func NewWorker(service *withdrawal.Service, pollSeconds, jobTimeoutSeconds int, logger *logger.Logger) *Worker {
	pollInterval := time.Duration(pollSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	jobTimeout := time.Duration(jobTimeoutSeconds) * time.Second
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}
	return &Worker{
		service:      service,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    10,
		jobTimeout:   jobTimeout,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the worker processing loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting payout worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize)

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("payout worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	batchCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	if err := w.service.ProcessDuePayouts(batchCtx, w.batchSize); err != nil {
		w.logger.Error("payout batch failed", "error", err)
	}
}
