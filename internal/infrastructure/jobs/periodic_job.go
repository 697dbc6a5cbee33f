package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/metrics"
)

// RunFunc performs one pass of a processor and reports how many items it handled.
type RunFunc func(ctx context.Context) (int, error)

// PeriodicJob runs a processor on a fixed interval until stopped.
type PeriodicJob struct {
	name     string
	run      RunFunc
	interval time.Duration
	stop     chan struct{}
}

func NewPeriodicJob(name string, interval time.Duration, run RunFunc) *PeriodicJob {
	return &PeriodicJob{
		name:     name,
		run:      run,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Name identifies the job in logs and metrics.
func (j *PeriodicJob) Name() string {
	return j.name
}

// Start blocks, running the processor once immediately and then every interval.
func (j *PeriodicJob) Start(ctx context.Context) {
	ctx = logger.WithJob(ctx, j.name)
	logger.Info(ctx, "Starting periodic job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Periodic job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Periodic job stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *PeriodicJob) Stop() {
	close(j.stop)
}

// RunOnce executes a single pass. Errors and panics are logged, never propagated.
func (j *PeriodicJob) RunOnce(ctx context.Context) {
	started := time.Now()
	n, err := j.safeRun(ctx)
	metrics.JobRuns.WithLabelValues(j.name, metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Error(ctx, "Periodic job failed", zap.Error(err), zap.Int("processed", n))
		return
	}
	if n > 0 {
		metrics.JobItems.WithLabelValues(j.name, "ok").Add(float64(n))
		logger.Info(ctx, "Periodic job processed items", zap.Int("processed", n), zap.Duration("elapsed", time.Since(started)))
	}
}

func (j *PeriodicJob) safeRun(ctx context.Context) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Periodic job panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
	}()
	return j.run(ctx)
}
