// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/quickly-elect/engine"
)

// DefaultInterval is the pause between sweeps.
const DefaultInterval = 60 * time.Second

// StatusSweeper is satisfied by *engine.Lifecycle.
type StatusSweeper interface {
	Sweep(ctx context.Context) (engine.SweepReport, error)
}

// ResultPublisher is satisfied by *engine.ResultDeclarer.
type ResultPublisher interface {
	PublishDue(ctx context.Context) (engine.PublishReport, error)
}

// Scheduler runs the status sweep and then the publish sweep on a fixed
// interval. The next run is timed from the end of the previous one, so runs
// never overlap.
type Scheduler struct {
	Interval  time.Duration
	Lifecycle StatusSweeper
	Declarer  ResultPublisher
	Logger    *slog.Logger
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval <= 0 {
		return DefaultInterval
	}
	return s.Interval
}

// RunOnce performs one status sweep and one publish sweep. A failure or
// panic in one sweep is logged and does not skip the other.
func (s *Scheduler) RunOnce(ctx context.Context) {
	logger := engine.ResolveLogger(s.Logger)
	if s.Lifecycle != nil {
		err := guard("status_sweep", func() error {
			_, err := s.Lifecycle.Sweep(ctx)
			return err
		})
		if err != nil {
			logger.Error("status sweep failed", "event", "scheduler_sweep_failed", "sweep", "status", "error", err.Error())
		}
	}
	if s.Declarer != nil {
		err := guard("publish_sweep", func() error {
			_, err := s.Declarer.PublishDue(ctx)
			return err
		})
		if err != nil {
			logger.Error("publish sweep failed", "event", "scheduler_sweep_failed", "sweep", "publish", "error", err.Error())
		}
	}
}

// Run calls RunOnce until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := engine.ResolveLogger(s.Logger)
	logger.Info("scheduler started", "event", "scheduler_started", "interval", s.interval().String())

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped", "event", "scheduler_stopped")
			return nil
		case <-timer.C:
		}
		s.RunOnce(ctx)
		timer.Reset(s.interval())
	}
}

func guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	return fn()
}
