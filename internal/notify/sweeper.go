package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonathan/hiring-workflow/internal/workflow"
	"golang.org/x/sync/errgroup"
)

// SweepPolicy controls which deadlines are warned about and how often.
type SweepPolicy struct {
	// Window is how far ahead of now a deadline must fall to be warned about.
	Window time.Duration
	// Cooldown is the minimum gap between two warnings for the same stage.
	Cooldown time.Duration
}

// DefaultSweepPolicy returns a 24h window with a 12h cooldown.
func DefaultSweepPolicy() SweepPolicy {
	return SweepPolicy{Window: 24 * time.Hour, Cooldown: 12 * time.Hour}
}

const sweepConcurrency = 8

// Sweeper scans assigned stages for approaching deadlines and sends warnings.
type Sweeper struct {
	apps       workflow.Applications
	dispatcher *Dispatcher
	dedupe     Deduper
	policy     SweepPolicy
	logger     *slog.Logger
	now        func() time.Time
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepClock sets the time source.
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// WithDeduper replaces the store-backed deduper.
func WithDeduper(d Deduper) SweeperOption {
	return func(s *Sweeper) {
		if d != nil {
			s.dedupe = d
		}
	}
}

// WithSweepLogger sets the logger.
func WithSweepLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = l }
}

// NewSweeper creates a sweeper. Without WithDeduper it dedupes against the
// notification store.
func NewSweeper(apps workflow.Applications, store Store, dispatcher *Dispatcher, policy SweepPolicy, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		apps:       apps,
		dispatcher: dispatcher,
		policy:     policy,
		logger:     slog.Default(),
		now:        time.Now,
	}
	s.dedupe = NewStoreDeduper(store, policy.Cooldown)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SweepOnce sends warnings for every stage whose deadline is within the
// window and that has not been warned about during the cooldown. It returns
// the number of warnings sent. A failure on one stage is logged and skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	entries, err := s.apps.ListDeadlines(ctx, now, now.Add(s.policy.Window))
	if err != nil {
		return 0, fmt.Errorf("failed to list deadlines: %w", err)
	}

	var sent atomic.Int64
	var g errgroup.Group
	g.SetLimit(sweepConcurrency)
	for _, e := range entries {
		g.Go(func() error {
			ok, err := s.dedupe.Claim(ctx, e.ApplicationID, e.Stage, now)
			if err != nil {
				s.logger.Warn("deadline warning claim failed",
					slog.String("application_id", e.ApplicationID.String()),
					slog.Int("stage", e.Stage),
					slog.String("error", err.Error()))
				return nil
			}
			if !ok {
				return nil
			}
			if err := s.dispatcher.DeadlineWarning(ctx, e, now); err != nil {
				s.logger.Warn("deadline warning failed",
					slog.String("application_id", e.ApplicationID.String()),
					slog.Int("stage", e.Stage),
					slog.String("error", err.Error()))
				if r, ok := s.dedupe.(*RedisDeduper); ok {
					_ = r.Release(ctx, e.ApplicationID, e.Stage)
				}
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(sent.Load()), nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()
	n, err := s.SweepOnce(ctx)
	if err != nil {
		s.logger.Error("deadline sweep failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("deadline sweep complete",
		slog.Int("warnings_sent", n),
		slog.Duration("duration", time.Since(start)))
}
