package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-reorder/internal/advisor"
	"github.com/i474232898/weather-reorder/internal/logger"
)

const (
	defaultIntervalMinutes = 15
	runTimeout             = 30 * time.Second
)

// Runner is satisfied by *advisor.Service.
type Runner interface {
	Run(ctx context.Context, location string) (advisor.Report, error)
}

// Scheduler periodically runs the reorder pipeline for a fixed set of
// locations, keeping their weather cached and their reports fresh.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	locations []string
	interval  time.Duration
	l         *logger.Logger
}

func New(locations []string, interval time.Duration, runner Runner, l *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		locations: locations,
		interval:  interval,
		l:         l,
	}
}

// Start schedules the job, runs it once immediately and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.l.Info("scheduler: no warm locations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = defaultIntervalMinutes
	}

	if _, err := s.scheduler.Every(minutes).Minutes().Do(func() { s.RunOnce() }); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce runs the pipeline for every location concurrently and waits for
// all of them. It returns the number of failed locations.
func (s *Scheduler) RunOnce() int {
	s.l.Debug("scheduler: running warm-up job", map[string]any{"locations": len(s.locations)})

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, loc := range s.locations {
		wg.Add(1)
		go func(loc string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
			defer cancel()

			if _, err := s.runner.Run(ctx, loc); err != nil {
				s.l.Error(err, map[string]any{"scheduler": "warm-up", "location": loc})
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(loc)
	}
	wg.Wait()

	s.l.Debug("scheduler: completed warm-up job", map[string]any{"failed": failed})
	return failed
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
