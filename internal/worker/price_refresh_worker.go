package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/observability"
	"go.uber.org/zap"
)

// Refresher re-fetches one symbol upstream and replaces the cached quote.
type Refresher interface {
	Refresh(ctx context.Context, symbol string) error
}

// PriceRefreshWorker keeps quotes for the configured symbols warm so buy and
// sell requests rarely wait on the upstream oracle.
type PriceRefreshWorker struct {
	refresher Refresher
	symbols   []string
	timeout   time.Duration
	loop      *loop
}

func NewPriceRefreshWorker(refresher Refresher, symbols []string) *PriceRefreshWorker {
	return &PriceRefreshWorker{
		refresher: refresher,
		symbols:   symbols,
		timeout:   5 * time.Second,
		loop:      newLoop("price_refresh", 20*time.Second),
	}
}

// WithInterval sets how often every symbol is refreshed.
func (w *PriceRefreshWorker) WithInterval(interval time.Duration) *PriceRefreshWorker {
	w.loop.setInterval(interval)
	return w
}

// WithTimeout bounds each upstream fetch.
func (w *PriceRefreshWorker) WithTimeout(timeout time.Duration) *PriceRefreshWorker {
	if timeout > 0 {
		w.timeout = timeout
	}
	return w
}

// Start blocks, refreshing on every tick until Stop is called or ctx is done.
func (w *PriceRefreshWorker) Start(ctx context.Context) {
	w.loop.run(ctx, func(ctx context.Context) { w.RefreshOnce(ctx) }, zap.Strings("symbols", w.symbols))
}

func (w *PriceRefreshWorker) Stop() {
	w.loop.stop()
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *PriceRefreshWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// RefreshOnce refreshes every symbol and returns how many failed.
func (w *PriceRefreshWorker) RefreshOnce(ctx context.Context) int {
	failed := 0
	for _, symbol := range w.symbols {
		if ctx.Err() != nil {
			return failed
		}
		fetchCtx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.refresher.Refresh(fetchCtx, symbol)
		cancel()
		if err != nil {
			failed++
			zap.L().Warn("price refresh failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	switch {
	case failed == 0:
		observability.IncrementWorkerRun("price_refresh", "success")
	case failed == len(w.symbols):
		observability.IncrementWorkerRun("price_refresh", "failed")
	default:
		observability.IncrementWorkerRun("price_refresh", "partial")
	}
	return failed
}

func (w *PriceRefreshWorker) String() string {
	return fmt.Sprintf("PriceRefreshWorker(interval=%v, symbols=%d)", w.loop.interval, len(w.symbols))
}
