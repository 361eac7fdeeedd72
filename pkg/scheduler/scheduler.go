// Package scheduler runs named background jobs on fixed intervals. It
// drives the subscription sweeps without an external cron dependency.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// JobFunc does one sweep pass and reports how many rows it processed.
type JobFunc func(ctx context.Context) (int, error)

type job struct {
	name     string
	interval time.Duration
	fn       JobFunc
}

// Scheduler owns a goroutine per registered job. Jobs run immediately on
// Start and then on every interval tick until the context is cancelled.
type Scheduler struct {
	log  *slog.Logger
	mu   sync.Mutex
	jobs []job
	wg   sync.WaitGroup
}

func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{log: log}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job{name: name, interval: interval, fn: fn})
}

// Start launches all registered jobs and blocks until ctx is cancelled and
// every in-flight run has finished.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	jobs := make([]job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, j := range jobs {
		s.wg.Add(1)
		go func(j job) {
			defer s.wg.Done()
			s.runLoop(ctx, j)
		}(j)
	}
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, j job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	s.runOnce(ctx, j)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, j)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j job) {
	started := time.Now()
	processed, err := j.fn(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "scheduled job failed",
			slog.String("job", j.name),
			slog.Duration("elapsed", time.Since(started)),
			slog.Any("error", err))
		return
	}
	if processed > 0 {
		s.log.InfoContext(ctx, "scheduled job completed",
			slog.String("job", j.name),
			slog.Int("processed", processed),
			slog.Duration("elapsed", time.Since(started)))
	}
}
