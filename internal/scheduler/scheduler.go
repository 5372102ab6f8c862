package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

// Refresher is the refresh entry point the scheduler keeps calling.
type Refresher interface {
	ForceRefresh(ctx context.Context) spaceweather.Snapshot
}

// Scheduler periodically refreshes the cached space weather snapshot.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. The first refresh runs as soon as it starts.
func New(interval, timeout time.Duration, refresher Refresher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = time.Hour
	}

	_, err := s.scheduler.Every(interval).Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log.Printf("INFO: scheduler: refreshing space weather every %s", interval)
	return nil
}

func (s *Scheduler) run() {
	log.Println("scheduler: running space weather refresh job")

	timeout := s.timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	snap := s.refresher.ForceRefresh(ctx)
	log.Printf("scheduler: completed refresh: generatedAt=%s degraded=%t",
		snap.GeneratedAt.Format(time.RFC3339), snap.Degraded)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
