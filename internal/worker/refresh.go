package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/groundscanner/groundscanner/internal/comparison"
	"github.com/groundscanner/groundscanner/internal/fares"
)

// SnapshotRefresher replaces a stored comparison snapshot.
// comparison.Service satisfies it.
type SnapshotRefresher interface {
	Refresh(ctx context.Context, airport string, passengers int) (*comparison.Snapshot, error)
}

// FareRefresher replaces a stored fare summary. fares.Service satisfies it.
type FareRefresher interface {
	Refresh(ctx context.Context, city string) (*fares.Summary, error)
}

// RefreshJob prefetches snapshots and fare summaries.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger

	// Both optional; a nil refresher skips its kind.
	snapshots SnapshotRefresher
	fares     FareRefresher

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns          int64
	SuccessfulRefresh  int64
	FailedRefreshes    int64
	SnapshotRefreshes  int64
	FareRefreshes      int64
	LastRefreshAt      time.Time
	LastRefreshElapsed time.Duration
	TotalDuration      time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config    RefreshConfig
	Logger    zerolog.Logger
	Snapshots SnapshotRefresher
	Fares     FareRefresher
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Airports) == 0 && len(config.Cities) == 0 {
		config = DefaultRefreshConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &RefreshJob{
		config:    config,
		logger:    cfg.Logger,
		snapshots: cfg.Snapshots,
		fares:     cfg.Fares,
		metrics:   &RefreshMetrics{},
	}
}

// Kinds of refresh.
const (
	KindSnapshot = "snapshot"
	KindFares    = "fares"
)

// RefreshResult contains the result of one run.
type RefreshResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int
	Skipped    int
	Errors     []RefreshError
}

// RefreshError is one failed refresh.
type RefreshError struct {
	Kind  string
	Key   string
	Error string
}

type refreshTask struct {
	kind string
	key  string
	run  func(ctx context.Context) error
}

type taskResult struct {
	task refreshTask
	err  error
	ran  bool
}

// Run refreshes every configured target with bounded concurrency. Targets
// not yet started when ctx ends are counted as skipped.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	start := time.Now()
	tasks := j.tasks()
	result := &RefreshResult{StartTime: start, Total: len(tasks)}

	j.logger.Info().
		Int("total", result.Total).
		Int("concurrency", j.config.Concurrency).
		Msg("starting refresh job")

	p := pool.NewWithResults[taskResult]().WithMaxGoroutines(j.config.Concurrency)
	for _, task := range tasks {
		p.Go(func() taskResult {
			if ctx.Err() != nil {
				return taskResult{task: task}
			}
			taskCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
			defer cancel()
			return taskResult{task: task, err: task.run(taskCtx), ran: true}
		})
	}

	for _, r := range p.Wait() {
		switch {
		case !r.ran:
			result.Skipped++
		case r.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{Kind: r.task.kind, Key: r.task.key, Error: r.err.Error()})
			j.logger.Warn().Err(r.err).Str("kind", r.task.kind).Str("key", r.task.key).Msg("refresh failed")
		default:
			result.Successful++
			j.countKind(r.task.kind)
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("refresh job completed")

	return result
}

func (j *RefreshJob) tasks() []refreshTask {
	var tasks []refreshTask
	if j.config.RefreshSnapshots && j.snapshots != nil {
		for _, t := range j.config.Targets() {
			tasks = append(tasks, refreshTask{
				kind: KindSnapshot,
				key:  comparison.QueryKey(t.Airport, t.Passengers),
				run: func(ctx context.Context) error {
					_, err := j.snapshots.Refresh(ctx, t.Airport, t.Passengers)
					return err
				},
			})
		}
	}
	if j.config.RefreshFares && j.fares != nil {
		for _, city := range j.config.Cities {
			tasks = append(tasks, refreshTask{
				kind: KindFares,
				key:  fares.CityKey(city),
				run: func(ctx context.Context) error {
					_, err := j.fares.Refresh(ctx, city)
					return err
				},
			})
		}
	}
	return tasks
}

func (j *RefreshJob) countKind(kind string) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	switch kind {
	case KindSnapshot:
		j.metrics.SnapshotRefreshes++
	case KindFares:
		j.metrics.FareRefreshes++
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulRefresh += int64(result.Successful)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshElapsed = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:          j.metrics.TotalRuns,
		SuccessfulRefresh:  j.metrics.SuccessfulRefresh,
		FailedRefreshes:    j.metrics.FailedRefreshes,
		SnapshotRefreshes:  j.metrics.SnapshotRefreshes,
		FareRefreshes:      j.metrics.FareRefreshes,
		LastRefreshAt:      j.metrics.LastRefreshAt,
		LastRefreshElapsed: j.metrics.LastRefreshElapsed,
		TotalDuration:      j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map for the health endpoint.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":            m.TotalRuns,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"snapshot_refreshes":    m.SnapshotRefreshes,
		"fare_refreshes":        m.FareRefreshes,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshElapsed.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}

// Loop runs the job every interval until ctx ends. The first run starts
// immediately.
func (j *RefreshJob) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		j.Run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
