package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/civicatlas/stagedesk/internal/config"
	"github.com/civicatlas/stagedesk/internal/models"
	"github.com/civicatlas/stagedesk/internal/store"
)

// Scheduler handles periodic tasks. Lock expiry is decided lazily at read
// time, so the sweep is telemetry only: it reports how many edit locks are
// live and how many have silently expired, without mutating any record.
type Scheduler struct {
	store    store.Store
	lockTTL  time.Duration
	interval time.Duration
	stopChan chan bool
}

// NewScheduler creates a new scheduler
func NewScheduler(s store.Store, lockTTL time.Duration, cfg *config.SweepConfig) *Scheduler {
	return &Scheduler{
		store:    s,
		lockTTL:  lockTTL,
		interval: cfg.Interval,
		stopChan: make(chan bool),
	}
}

// Start starts the periodic lock sweep
func (s *Scheduler) Start() {
	slog.Info("Starting lock sweep", "interval", s.interval, "lock_ttl", s.lockTTL)
	go s.run()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	slog.Info("Lock sweep stopped")
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepLocks()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) sweepLocks() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := s.store.List(ctx, store.Filter{Status: models.StatusNeedsReview})
	if err != nil {
		slog.Error("Lock sweep failed to list records", "error", err)
		return
	}

	now := time.Now()
	active := 0
	expired := 0
	for _, rec := range records {
		if rec.Lock == nil {
			continue
		}
		if rec.Lock.Active(now, s.lockTTL) {
			active++
		} else {
			expired++
		}
	}

	slog.Info("Lock sweep completed",
		"records_checked", len(records),
		"active_locks", active,
		"expired_locks", expired)
}
