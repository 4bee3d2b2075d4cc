package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// loop runs a job once at start and then on every tick until stopped.
type loop struct {
	name     string
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newLoop(name string, interval time.Duration) *loop {
	return &loop{
		name:     name,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (l *loop) setInterval(interval time.Duration) {
	if interval > 0 {
		l.interval = interval
	}
}

func (l *loop) run(ctx context.Context, job func(context.Context), fields ...zap.Field) {
	logger := zap.L().With(zap.String("worker", l.name))
	logger.Info("worker starting", append(fields, zap.Duration("interval", l.interval))...)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	job(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context canceled")
			return
		case <-l.stopCh:
			logger.Info("worker stop signal received")
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

func (l *loop) stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}
