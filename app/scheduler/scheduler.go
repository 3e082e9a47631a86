// Package scheduler triggers ingestion runs on a cron schedule and on demand.
// At most one run is in progress at any time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/news-comb/app/crawler"
	"github.com/lysyi3m/news-comb/app/source"
)

const (
	DefaultSchedule   = "@every 1m"
	DefaultRunTimeout = 10 * time.Minute
)

var (
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrStopped       = errors.New("scheduler is stopped")
)

type Runner interface {
	RunOnce(ctx context.Context, sources []source.Source) crawler.RunReport
}

type SourceLister interface {
	Enabled() []source.Source
}

var (
	_ Runner       = (*crawler.Runner)(nil)
	_ SourceLister = (*source.Registry)(nil)
)

type Stats struct {
	TotalRuns     int64
	SkippedTicks  int64
	TotalStored   int64
	TotalErrors   int64
	Running       bool
	LastRunAt     *time.Time
	LastRunReport *crawler.RunReport
}

type Scheduler struct {
	runner     Runner
	sources    SourceLister
	schedule   string
	runTimeout time.Duration

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	stats   Stats
}

func NewScheduler(runner Runner, sources SourceLister, schedule string, runTimeout time.Duration) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		runner:     runner,
		sources:    sources,
		schedule:   schedule,
		runTimeout: runTimeout,
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger{}))),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers the schedule and starts ticking.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()

	slog.Info("Scheduler started", "schedule", s.schedule, "run_timeout", s.runTimeout)
	return nil
}

// Stop cancels any run in progress and waits for it to return.
func (s *Scheduler) Stop() {
	cronCtx := s.cron.Stop()

	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	<-cronCtx.Done()
	s.wg.Wait()

	slog.Info("Scheduler stopped")
}

// Trigger runs immediately in the caller's goroutine. It fails with
// ErrRunInProgress instead of queueing behind a running pass.
func (s *Scheduler) Trigger(ctx context.Context) (crawler.RunReport, error) {
	if err := s.acquire(); err != nil {
		return crawler.RunReport{}, err
	}
	defer s.release()

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.run(runCtx), nil
}

// TriggerAsync starts a run in the background and returns once it has
// been accepted.
func (s *Scheduler) TriggerAsync() error {
	if err := s.acquire(); err != nil {
		return err
	}

	go func() {
		defer s.release()

		runCtx, cancel := context.WithTimeout(s.ctx, s.runTimeout)
		defer cancel()

		s.run(runCtx)
	}()

	return nil
}

func (s *Scheduler) tick() {
	if err := s.acquire(); err != nil {
		s.mu.Lock()
		s.stats.SkippedTicks++
		s.mu.Unlock()
		slog.Debug("Skipping scheduled run", "reason", err)
		return
	}
	defer s.release()

	runCtx, cancel := context.WithTimeout(s.ctx, s.runTimeout)
	defer cancel()

	s.run(runCtx)
}

func (s *Scheduler) run(ctx context.Context) crawler.RunReport {
	report := s.runner.RunOnce(ctx, s.sources.Enabled())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalRuns++
	s.stats.TotalStored += int64(report.ArticlesStored)
	s.stats.TotalErrors += int64(report.Errors)
	finished := report.FinishedAt
	s.stats.LastRunAt = &finished
	s.stats.LastRunReport = &report

	return report
}

func (s *Scheduler) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return ErrStopped
	}
	if s.running {
		return ErrRunInProgress
	}
	s.running = true
	s.wg.Add(1)
	return nil
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Running = s.running
	return stats
}

// Health reports "degraded" when the last run stored nothing and hit errors
// in more than half of its sources.
func (s *Scheduler) Health() map[string]any {
	stats := s.GetStats()

	status := "healthy"
	if last := stats.LastRunReport; last != nil {
		total := last.SourcesProcessed + last.SourcesFailed
		if total > 0 && last.ArticlesStored == 0 && last.SourcesFailed*2 > total {
			status = "degraded"
		}
	}

	health := map[string]any{
		"status":        status,
		"schedule":      s.schedule,
		"running":       stats.Running,
		"total_runs":    stats.TotalRuns,
		"skipped_ticks": stats.SkippedTicks,
		"total_stored":  stats.TotalStored,
		"total_errors":  stats.TotalErrors,
	}
	if stats.LastRunAt != nil {
		health["last_run_at"] = stats.LastRunAt.Format(time.RFC3339)
	}
	return health
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error(msg, append(keysAndValues, "error", err)...)
}
