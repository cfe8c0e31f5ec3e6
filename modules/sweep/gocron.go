// Package sweep provides the gocron-backed core.Sweeper that drives the
// engine's recurring background work: the due-report sweep and the stale
// execution reconciliation.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/Deepreo/reportsched/core"
)

type GocronSweeper struct {
	scheduler   gocron.Scheduler
	jobs        map[string]uuid.UUID
	middlewares []core.SweepMiddleware
	mu          sync.RWMutex
}

var _ core.Sweeper = (*GocronSweeper)(nil)

func NewGocronSweeper() (*GocronSweeper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &GocronSweeper{
		scheduler: s,
		jobs:      make(map[string]uuid.UUID),
	}, nil
}

func (s *GocronSweeper) Start() {
	s.scheduler.Start()
}

func (s *GocronSweeper) Shutdown() error {
	return s.scheduler.Shutdown()
}

func (s *GocronSweeper) Use(middleware ...core.SweepMiddleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, middleware...)
}

func (s *GocronSweeper) applyMiddlewares(fn core.JobFunc) core.JobFunc {
	chain := fn
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		chain = s.middlewares[i](chain)
	}
	return chain
}

func (s *GocronSweeper) RegisterJob(name string, fn core.JobFunc, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job with name %s already exists", name)
	}

	wrappedFn := s.applyMiddlewares(fn)

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			_ = wrappedFn(context.Background())
		}),
	)
	if err != nil {
		return err
	}

	s.jobs[name] = job.ID()
	return nil
}

func (s *GocronSweeper) RegisterCron(name string, cronExpr string, fn core.JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job with name %s already exists", name)
	}

	// 6 fields means the expression carries a seconds column
	fields := strings.Fields(cronExpr)
	withSeconds := len(fields) == 6

	wrappedFn := s.applyMiddlewares(fn)

	job, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, withSeconds),
		gocron.NewTask(func() {
			_ = wrappedFn(context.Background())
		}),
	)
	if err != nil {
		return err
	}

	s.jobs[name] = job.ID()
	return nil
}

func (s *GocronSweeper) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job with name %s not found", name)
	}

	if err := s.scheduler.RemoveJob(id); err != nil {
		return err
	}

	delete(s.jobs, name)
	return nil
}

func (s *GocronSweeper) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, id := range s.jobs {
		if err := s.scheduler.RemoveJob(id); err != nil {
			return fmt.Errorf("failed to remove job %s: %w", name, err)
		}
		delete(s.jobs, name)
	}

	return nil
}

// LoggingMiddleware logs every job run with its duration and outcome.
func LoggingMiddleware(logger *slog.Logger) core.SweepMiddleware {
	return func(next core.JobFunc) core.JobFunc {
		return func(ctx context.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				logger.Error("sweep job failed", "error", err, "duration", time.Since(start))
				return err
			}
			logger.Debug("sweep job completed", "duration", time.Since(start))
			return nil
		}
	}
}

// RecoverMiddleware turns a panicking job into an error so one bad sweep run
// cannot take down the scheduler goroutine.
func RecoverMiddleware() core.SweepMiddleware {
	return func(next core.JobFunc) core.JobFunc {
		return func(ctx context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("sweep job panicked: %v", r)
				}
			}()
			return next(ctx)
		}
	}
}
