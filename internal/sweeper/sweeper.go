// Package sweeper periodically reclaims device sessions whose expiry
// timer was lost, e.g. across a process restart. It is the durable
// backstop behind the per-activation timers.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/akontos/sirena/internal/config"
	"github.com/akontos/sirena/internal/silent"
)

const fallbackSchedule = "* * * * *"

type Sweeper struct {
	manager  *silent.Manager
	schedule string
	notifier silent.Notifier
}

func New(manager *silent.Manager, cfg config.SweeperConfig, notifier silent.Notifier) *Sweeper {
	schedule := cfg.Schedule
	if schedule == "" || !gronx.New().IsValid(schedule) {
		slog.Warn("invalid sweep schedule, using fallback", "schedule", cfg.Schedule, "fallback", fallbackSchedule)
		schedule = fallbackSchedule
	}
	return &Sweeper{manager: manager, schedule: schedule, notifier: notifier}
}

func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("sweeper started", "schedule", s.schedule)

	for {
		next, err := gronx.NextTick(s.schedule, false)
		if err != nil {
			slog.Error("sweep schedule evaluation failed", "error", err)
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("sweeper stopped")
			return
		case <-timer.C:
		}

		s.sweep(ctx)
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	reclaimed, err := s.manager.Sweep(ctx)
	if err != nil {
		slog.Error("sweep failed", "error", err)
		return
	}
	if reclaimed > 0 {
		// A reclaimed session means its in-process timer never fired.
		slog.Warn("sweep reclaimed expired sessions", "count", reclaimed)
		if s.notifier != nil {
			s.notifier.Notify(fmt.Sprintf("sweep reclaimed %d expired silent session(s)", reclaimed))
		}
	}
}
