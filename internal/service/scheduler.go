package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"muscat-water/internal/model"
)

// Publisher receives the latest aggregate after each scheduled refresh.
type Publisher interface {
	Publish(ctx context.Context, agg *model.PeriodAggregate) error
}

// Scheduler reloads the registry on a cron schedule and optionally publishes
// the most recent month.
type Scheduler struct {
	cron      *cron.Cron
	svc       *WaterService
	publisher Publisher
	timeout   time.Duration
}

// NewScheduler registers the refresh job. publisher may be nil.
func NewScheduler(svc *WaterService, spec string, publisher Publisher) (*Scheduler, error) {
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(log.New(os.Stdout, "cron: ", log.LstdFlags))),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	s := &Scheduler{cron: c, svc: svc, publisher: publisher, timeout: 2 * time.Minute}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and returns a context done when running jobs end.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.RunOnce(ctx); err != nil {
		log.Printf("[Refresh] %v", err)
	}
}

// RunOnce performs one refresh (and publish) cycle.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	n, err := s.svc.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	log.Printf("[Refresh] Registry reloaded: %d meters", n)
	if s.publisher == nil {
		return nil
	}
	agg, err := s.svc.Latest(ctx)
	if err != nil {
		return fmt.Errorf("latest aggregate unavailable: %w", err)
	}
	if err := s.publisher.Publish(ctx, agg); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	log.Printf("[Refresh] Published %s", agg.Period)
	return nil
}
