package worker

import (
	"context"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/observability"
	"github.com/ayo6706/delexpay-ledger/internal/service"
	"go.uber.org/zap"
)

// Reconciler checks ledger invariants and reports the accounts that break them.
type Reconciler interface {
	Run(ctx context.Context) ([]service.Violation, error)
}

// ReconciliationWorker compares every account's frozen balance with its
// in-flight records on a fixed interval. It never writes.
type ReconciliationWorker struct {
	svc  Reconciler
	loop *loop
}

func NewReconciliationWorker(svc Reconciler) *ReconciliationWorker {
	return &ReconciliationWorker{
		svc:  svc,
		loop: newLoop("reconciliation", time.Hour),
	}
}

func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	w.loop.setInterval(interval)
	return w
}

// Start blocks until Stop is called or ctx is done.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	w.loop.run(ctx, func(ctx context.Context) { w.CheckOnce(ctx) })
}

func (w *ReconciliationWorker) Stop() {
	w.loop.stop()
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// CheckOnce runs a single pass and returns the violations it found.
func (w *ReconciliationWorker) CheckOnce(ctx context.Context) []service.Violation {
	violations, err := w.svc.Run(ctx)
	switch {
	case err != nil:
		observability.IncrementWorkerRun("reconciliation", "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err))
	case len(violations) > 0:
		observability.IncrementWorkerRun("reconciliation", "violations")
		zap.L().Warn("reconciliation found mismatched accounts", zap.Int("violations", len(violations)))
	default:
		observability.IncrementWorkerRun("reconciliation", "success")
	}
	return violations
}
