package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"walletcore.backend/pkg/metrics"
)

func TestRunOnce_CountsAndSwallowsErrors(t *testing.T) {
	var calls int32
	job := NewPeriodicJob("test", time.Hour, func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, errors.New("db down")
	})
	require.Equal(t, "test", job.Name())

	job.RunOnce(context.Background())
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRunOnce_RecoversPanic(t *testing.T) {
	job := NewPeriodicJob("panicking", time.Hour, func(context.Context) (int, error) {
		var entries []int
		return entries[len(entries)-1], nil
	})
	before := testutil.ToFloat64(metrics.JobRuns.WithLabelValues("panicking", "error"))

	require.NotPanics(t, func() { job.RunOnce(context.Background()) })
	require.Equal(t, before+1, testutil.ToFloat64(metrics.JobRuns.WithLabelValues("panicking", "error")))

	// the loop keeps ticking after a panicking pass
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NotPanics(t, func() { job.Start(ctx) })
}

func TestStartStop_StopsByContext(t *testing.T) {
	var calls int32
	job := NewPeriodicJob("ctx", time.Millisecond, func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("job did not stop on context cancel")
	}
}

func TestStartStop_StopsByStopChannel(t *testing.T) {
	job := NewPeriodicJob("stop", time.Hour, func(context.Context) (int, error) { return 0, nil })

	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()
	job.Stop()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("job did not stop on Stop()")
	}
}
