// Package scheduler runs the collection jobs on their fixed intervals.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/eiim/monitor/internal/config"
	"github.com/eiim/monitor/internal/metrics"
)

// Jobs are the four scheduled entry points of the collection pipeline.
type Jobs struct {
	CollectNews    func(ctx context.Context) (int, error)
	CollectPrices  func(ctx context.Context) (int, error)
	CollectMetrics func(ctx context.Context) (int, error)
	GenerateBrief  func(ctx context.Context) error
}

// Orchestrator schedules the jobs. Each job type carries its own guard: a
// trigger firing while the same job type is still running is skipped, not
// queued. Different job types may overlap in wall-clock time; the 15-minute
// price cadence must not be starved by a slow news run.
type Orchestrator struct {
	jobs   Jobs
	cron   *cron.Cron
	log    zerolog.Logger
	guards map[string]*sync.Mutex
}

// New registers the cron entries. Specs come from configuration; defaults
// are hourly news, 15-minute prices, and daily brief/metrics at 07:00/08:00.
func New(cfg config.ScheduleConfig, jobs Jobs, log zerolog.Logger) (*Orchestrator, error) {
	o := &Orchestrator{
		jobs: jobs,
		cron: cron.New(),
		log:  log,
		guards: map[string]*sync.Mutex{
			"news":    {},
			"prices":  {},
			"metrics": {},
			"brief":   {},
		},
	}

	entries := []struct {
		name string
		spec string
		run  func()
	}{
		{"news", cfg.News, func() { o.runGuarded("news", o.runNews) }},
		{"prices", cfg.Prices, func() { o.runGuarded("prices", o.runPrices) }},
		{"brief", cfg.Brief, func() { o.runGuarded("brief", o.runBrief) }},
		{"metrics", cfg.Metrics, func() { o.runGuarded("metrics", o.runMetrics) }},
	}
	for _, e := range entries {
		if _, err := o.cron.AddFunc(e.spec, e.run); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", e.name, e.spec, err)
		}
	}

	return o, nil
}

// Start runs news and price collection once immediately, then enters the
// schedule.
func (o *Orchestrator) Start() {
	o.log.Info().Msg("running initial data collection")
	o.runGuarded("news", o.runNews)
	o.runGuarded("prices", o.runPrices)

	o.cron.Start()
	o.log.Info().Msg("scheduler started")
}

// Stop halts the schedule and waits for any running job to finish.
func (o *Orchestrator) Stop() {
	ctx := o.cron.Stop()
	<-ctx.Done()
	for _, guard := range o.guards {
		guard.Lock()
		guard.Unlock()
	}
	o.log.Info().Msg("scheduler stopped")
}

// runGuarded executes fn unless the same job type is already running, in
// which case the trigger is skipped.
func (o *Orchestrator) runGuarded(name string, fn func()) {
	guard := o.guards[name]
	if !guard.TryLock() {
		o.log.Warn().Str("job", name).Msg("previous run still in progress, skipping trigger")
		metrics.CollectionRunsTotal.WithLabelValues(name, "skipped").Inc()
		return
	}
	defer guard.Unlock()
	fn()
}

func (o *Orchestrator) runNews() {
	o.recordRun("news", func(ctx context.Context) (int, error) {
		return o.jobs.CollectNews(ctx)
	})
}

func (o *Orchestrator) runPrices() {
	o.recordRun("prices", func(ctx context.Context) (int, error) {
		return o.jobs.CollectPrices(ctx)
	})
}

func (o *Orchestrator) runMetrics() {
	o.recordRun("metrics", func(ctx context.Context) (int, error) {
		return o.jobs.CollectMetrics(ctx)
	})
}

func (o *Orchestrator) runBrief() {
	o.recordRun("brief", func(ctx context.Context) (int, error) {
		return 0, o.jobs.GenerateBrief(ctx)
	})
}

func (o *Orchestrator) recordRun(name string, fn func(ctx context.Context) (int, error)) {
	count, err := fn(context.Background())
	if err != nil {
		o.log.Error().Err(err).Str("job", name).Msg("scheduled run failed")
		metrics.CollectionRunsTotal.WithLabelValues(name, "error").Inc()
		return
	}
	metrics.CollectionRunsTotal.WithLabelValues(name, "ok").Inc()
	metrics.ItemsCollectedTotal.WithLabelValues(name).Add(float64(count))
}
