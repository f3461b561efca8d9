// Package retention removes logs of old finished runs on a cron schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowdeck/console/internal/logs"
	"github.com/flowdeck/console/internal/store"
)

// SettingMaxAgeHours is the settings key that overrides Config.MaxAge
// at runtime, in whole hours. Invalid or missing values fall back to
// the configured default.
const SettingMaxAgeHours = "retention.max_age_hours"

// Config holds retention settings.
type Config struct {
	// MaxAge is how long logs of finished runs are kept.
	MaxAge time.Duration
	// Schedule is a standard cron expression for the sweep.
	Schedule string
}

// Sweeper deletes logs of runs that finished longer than MaxAge ago.
type Sweeper struct {
	runs     store.RunStore
	logStore store.LogStore
	tail     *logs.Tail
	settings store.SettingsStore
	cfg      Config
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewSweeper creates a sweeper. The tail and settings may be nil.
func NewSweeper(runs store.RunStore, logStore store.LogStore, tail *logs.Tail, settings store.SettingsStore, cfg Config, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", cfg.MaxAge)
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.Schedule, err)
	}

	return &Sweeper{
		runs:     runs,
		logStore: logStore,
		tail:     tail,
		settings: settings,
		cfg:      cfg,
		cron:     cron.New(),
		logger:   logger.With("component", "retention"),
	}, nil
}

// Start schedules the periodic sweep.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("retention sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling retention sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("retention sweeper started", "schedule", s.cfg.Schedule, "max_age", s.cfg.MaxAge)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish,
// or until the context is done.
func (s *Sweeper) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep deletes logs of all runs that finished before the retention cutoff.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.maxAge(ctx))

	expired, err := s.runs.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("listing expired runs: %w", err)
	}

	swept := 0
	for _, run := range expired {
		if err := s.logStore.DeleteByRun(ctx, run.ID); err != nil {
			s.logger.Error("failed to delete run logs", "run_id", run.ID, "error", err)
			continue
		}
		if s.tail != nil {
			s.tail.Drop(run.ID)
		}
		swept++
	}

	if swept > 0 {
		s.logger.Info("retention sweep completed", "runs_swept", swept, "cutoff", cutoff)
	}
	return nil
}

// maxAge resolves the retention window, preferring the runtime setting
// over the configured default.
func (s *Sweeper) maxAge(ctx context.Context) time.Duration {
	if s.settings == nil {
		return s.cfg.MaxAge
	}

	raw, err := s.settings.Get(ctx, SettingMaxAgeHours)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to read retention override", "error", err)
		}
		return s.cfg.MaxAge
	}

	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		s.logger.Warn("ignoring invalid retention override", "key", SettingMaxAgeHours, "value", raw)
		return s.cfg.MaxAge
	}
	return time.Duration(hours) * time.Hour
}
