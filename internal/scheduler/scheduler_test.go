package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eiim/monitor/internal/config"
)

func testSchedule() config.ScheduleConfig {
	return config.ScheduleConfig{
		News:    "0 * * * *",
		Prices:  "*/15 * * * *",
		Brief:   "0 7 * * *",
		Metrics: "0 8 * * *",
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	t.Parallel()

	cfg := testSchedule()
	cfg.Prices = "not a cron spec"
	if _, err := New(cfg, Jobs{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestRunGuardedSkipsOverlappingTrigger(t *testing.T) {
	t.Parallel()

	o, err := New(testSchedule(), Jobs{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var runs atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{})

	go o.runGuarded("news", func() {
		runs.Add(1)
		close(started)
		<-release
	})
	<-started

	// Same job type while the first run holds the guard: skipped.
	o.runGuarded("news", func() { runs.Add(1) })
	if got := runs.Load(); got != 1 {
		t.Fatalf("overlapping trigger ran anyway: %d runs", got)
	}

	// A different job type is not blocked.
	o.runGuarded("prices", func() { runs.Add(1) })
	if got := runs.Load(); got != 2 {
		t.Fatalf("independent job type blocked: %d runs", got)
	}

	close(release)

	// The guard frees up once the first run finishes.
	deadline := time.After(time.Second)
	for {
		before := runs.Load()
		o.runGuarded("news", func() { runs.Add(1) })
		if runs.Load() == before+1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("guard never released")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRecordRunInvokesJob(t *testing.T) {
	t.Parallel()

	var collected atomic.Int64
	o, err := New(testSchedule(), Jobs{
		CollectNews: func(context.Context) (int, error) {
			collected.Add(7)
			return 7, nil
		},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	o.runNews()
	if collected.Load() != 7 {
		t.Fatalf("job not invoked: %d", collected.Load())
	}
}
