package dlq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Sweeper runs Service.SweepExpired on a cron schedule in a background
// goroutine. "@hourly" matches the default retention granularity.
type Sweeper struct {
	service  *Service
	schedule cronlib.Schedule
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper creates a sweeper for the given cron expression.
// Standard five-field expressions and descriptors like "@hourly" are
// accepted.
func NewSweeper(service *Service, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}

	parser := cronlib.NewParser(
		cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
	)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}

	return &Sweeper{
		service:  service,
		schedule: sched,
		logger:   logger,
	}, nil
}

// Start launches the sweep loop. Calling Start on a running sweeper is
// a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.run(s.stopCh)
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Sweeper) run(stopCh chan struct{}) {
	defer s.wg.Done()

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
			if _, err := s.service.SweepExpired(context.Background()); err != nil {
				s.logger.Error("dead-letter sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
