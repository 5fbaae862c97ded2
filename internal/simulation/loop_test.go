package simulation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsStepsAtInterval(t *testing.T) {
	var steps atomic.Int64
	loop := NewLoop(10*time.Millisecond, func(step time.Duration) {
		if step != 10*time.Millisecond {
			t.Errorf("unexpected step duration: %v", step)
		}
		steps.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	time.Sleep(120 * time.Millisecond)
	cancel()
	loop.Stop()

	if got := steps.Load(); got < 5 {
		t.Fatalf("expected at least 5 steps, got %d", got)
	}
	metrics := loop.Metrics()
	if metrics.Samples == 0 {
		t.Fatalf("monitor should have recorded samples")
	}
}

func TestLoopDefaultsInterval(t *testing.T) {
	loop := NewLoop(0, nil)
	if loop.StepDuration() != 500*time.Millisecond {
		t.Fatalf("unexpected default interval: %v", loop.StepDuration())
	}
}

func TestTickMonitorAggregates(t *testing.T) {
	monitor := NewTickMonitor()
	monitor.Observe(2 * time.Millisecond)
	monitor.Observe(4 * time.Millisecond)
	monitor.Observe(0) // ignored

	snapshot := monitor.Snapshot()
	if snapshot.Samples != 2 {
		t.Fatalf("unexpected sample count: %d", snapshot.Samples)
	}
	if snapshot.Average != 3*time.Millisecond {
		t.Fatalf("unexpected average: %v", snapshot.Average)
	}
	if snapshot.Max != 4*time.Millisecond || snapshot.Last != 4*time.Millisecond {
		t.Fatalf("unexpected max/last: %+v", snapshot)
	}
}
