package service

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// Sweeper performs one reconciliation and reminder pass.
type Sweeper interface {
	SweepAndRemind(ctx context.Context, now time.Time)
}

// ReminderScheduler runs one sweep per period. The next period starts only
// after the current sweep completes, so sweeps never overlap.
type ReminderScheduler struct {
	sweeper Sweeper
	period  time.Duration
	now     func() time.Time
}

func NewReminderScheduler(sweeper Sweeper, period time.Duration) *ReminderScheduler {
	return &ReminderScheduler{sweeper: sweeper, period: period, now: time.Now}
}

// Run sweeps immediately and then once per period until ctx is cancelled.
// Cancellation is observed between sweeps; a sweep in progress runs to completion.
func (s *ReminderScheduler) Run(ctx context.Context) error {
	slog.Info("reminder scheduler started", "period", s.period)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reminder scheduler stopped")
			return nil
		case <-timer.C:
		}

		s.sweep(context.WithoutCancel(ctx))
		timer.Reset(s.period)
	}
}

func (s *ReminderScheduler) sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered in reminder sweep",
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	start := s.now()
	s.sweeper.SweepAndRemind(ctx, start)
	slog.Debug("sweep finished", "duration", time.Since(start))
}
