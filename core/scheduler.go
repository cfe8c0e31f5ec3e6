package core

import (
	"context"
	"time"
)

// JobFunc is the function signature for recurring background jobs, such as the
// due-report sweep.
type JobFunc func(ctx context.Context) error

// SweepMiddleware wraps a JobFunc to add cross-cutting concerns.
type SweepMiddleware func(next JobFunc) JobFunc

// Sweeper runs recurring background jobs on a fixed interval or cron
// expression. The engine registers the due-report sweep and the stale
// execution reconciliation here.
type Sweeper interface {
	Start()
	Shutdown() error
	RegisterJob(name string, fn JobFunc, interval time.Duration) error
	RegisterCron(name string, cronExpr string, fn JobFunc) error
	RemoveJob(name string) error
	Clear() error
	Use(middleware ...SweepMiddleware)
}
