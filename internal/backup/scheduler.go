// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tillvault/tillvault/internal/logging"
)

// MinScheduleInterval is the shortest interval the scheduler accepts.
const MinScheduleInterval = time.Minute

// Scheduler drives periodic backups. It creates one backup immediately
// on start, then one per interval. Stop waits for the loop to exit but
// never interrupts a backup already in flight.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewScheduler creates a scheduler for the given engine.
func NewScheduler(engine *Engine, interval time.Duration) (*Scheduler, error) {
	if interval < MinScheduleInterval {
		return nil, fmt.Errorf("schedule interval must be at least %s, got %s", MinScheduleInterval, interval)
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
	}, nil
}

// Start launches the scheduler loop. Returns an error if it is already
// running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.stop = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.run(ctx)

	logging.Info().Dur("interval", s.interval).Msg("Backup scheduler started")
	return nil
}

// Stop signals the loop to exit and waits for it. Safe to call more than
// once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info().Msg("Backup scheduler stopped")
}

// Running reports whether the scheduler loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetInterval changes the interval for subsequent ticks. The scheduler
// must be restarted for the change to take effect.
func (s *Scheduler) SetInterval(interval time.Duration) error {
	if interval < MinScheduleInterval {
		return fmt.Errorf("schedule interval must be at least %s, got %s", MinScheduleInterval, interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("stop the scheduler before changing the interval")
	}
	s.interval = interval
	return nil
}

// run is the scheduler loop.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	// First backup fires immediately so a freshly enabled schedule does
	// not leave a full interval of unprotected data.
	s.backup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.backup(ctx)
		}
	}
}

// backup runs one scheduled backup. Failures are logged and the loop
// keeps going; a missed tick is not fatal.
func (s *Scheduler) backup(ctx context.Context) {
	summary, err := s.engine.CreateBackup(ctx, TriggerScheduled, "Scheduled backup", nil)
	if err != nil {
		logging.Error().Err(err).Msg("Scheduled backup failed")
		return
	}
	logging.Info().Str("archive_id", summary.ID).Msg("Scheduled backup completed")
}
