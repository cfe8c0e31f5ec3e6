// Package reportsched wires the scheduling engine together: the orchestration
// service, the event bus, and the background sweeps that keep due reports
// executing and stuck executions reconciled.
package reportsched

import (
	"context"
	"log/slog"
	"time"

	"github.com/Deepreo/reportsched/core"
	"github.com/Deepreo/reportsched/service"
)

const (
	dueSweepJob        = "scheduled-report-due-sweep"
	staleReconcileJob  = "scheduled-report-stale-reconcile"
	defaultDueInterval = time.Minute
	defaultStaleEvery  = 10 * time.Minute
)

// Options tune the engine's background jobs. Zero values fall back to one
// minute for the due sweep and ten minutes for the stale reconciliation.
type Options struct {
	DueInterval   time.Duration
	StaleInterval time.Duration
}

type Engine struct {
	service  *service.Service
	eventBus core.EventBus
	sweeper  core.Sweeper
	logger   *slog.Logger
	opts     Options
}

func New(svc *service.Service, eventBus core.EventBus, sweeper core.Sweeper, logger *slog.Logger, opts Options) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DueInterval <= 0 {
		opts.DueInterval = defaultDueInterval
	}
	if opts.StaleInterval <= 0 {
		opts.StaleInterval = defaultStaleEvery
	}
	return &Engine{
		service:  svc,
		eventBus: eventBus,
		sweeper:  sweeper,
		logger:   logger,
		opts:     opts,
	}, nil
}

// Service exposes the orchestration layer for callers embedding the engine.
func (e *Engine) Service() *service.Service {
	return e.service
}

// Run starts the event bus and the background sweeps, then blocks until the
// context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.eventBus != nil {
		go func() {
			if err := e.eventBus.Run(ctx); err != nil {
				e.logger.Error("event bus failed", "error", err)
			}
		}()
	}

	if e.sweeper != nil {
		if err := e.sweeper.RegisterJob(dueSweepJob, e.service.RunDueSweep, e.opts.DueInterval); err != nil {
			return err
		}
		if err := e.sweeper.RegisterJob(staleReconcileJob, e.service.ReconcileStale, e.opts.StaleInterval); err != nil {
			return err
		}
		e.sweeper.Start()
	}

	<-ctx.Done()
	return ctx.Err()
}

func (e *Engine) Shutdown(ctx context.Context) error {
	if e.sweeper != nil {
		return e.sweeper.Shutdown()
	}
	return nil
}
