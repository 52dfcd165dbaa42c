// Package sweep periodically re-enqueues posts the pipeline should be
// working on: scheduled posts whose slot has arrived, and posts stuck
// in processing after a runner died.
package sweep

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"shoutbox/internal/store"
	logx "shoutbox/pkg/logx"
)

// Config tunes the sweep cadence and scope.
type Config struct {
	// Spec is a standard 5-field cron expression. Default "*/1 * * * *".
	Spec string

	// Tolerance mirrors the publisher schedule tolerance so the sweep
	// picks up posts slightly ahead of their slot.
	Tolerance time.Duration

	// StaleProcessing is how long a processing post may sit untouched
	// before it is considered abandoned. Default 15m.
	StaleProcessing time.Duration

	BatchSize int
}

// EnqueueFunc hands a post id to the publish pool.
type EnqueueFunc func(postID int64) error

// Service owns the cron loop.
type Service struct {
	cfg     Config
	store   store.Store
	enqueue EnqueueFunc
	log     logx.Logger

	cron *cron.Cron
}

func New(cfg Config, st store.Store, enqueue EnqueueFunc, log logx.Logger) *Service {
	if cfg.Spec == "" {
		cfg.Spec = "*/1 * * * *"
	}
	if cfg.StaleProcessing <= 0 {
		cfg.StaleProcessing = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Service{cfg: cfg, store: st, enqueue: enqueue, log: log}
}

// Start schedules the sweep. The returned error is a bad cron spec.
func (s *Service) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.cfg.Spec, func() { s.Sweep(ctx) })
	if err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("sweep started",
		logx.String("spec", s.cfg.Spec),
		logx.Duration("stale_processing", s.cfg.StaleProcessing))
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep runs one pass. Exported so a just-started daemon can catch up
// immediately instead of waiting for the first tick.
func (s *Service) Sweep(ctx context.Context) {
	now := time.Now()

	due, err := s.store.DueScheduled(ctx, now, s.cfg.Tolerance, s.cfg.BatchSize)
	if err != nil {
		s.log.Error("sweep: due query failed", logx.Err(err))
	} else {
		s.enqueueAll(due, "due")
	}

	cutoff := now.Add(-s.cfg.StaleProcessing)
	stale, err := s.store.StaleProcessing(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		s.log.Error("sweep: stale query failed", logx.Err(err))
		return
	}
	s.enqueueAll(stale, "stale")
}

func (s *Service) enqueueAll(ids []int64, kind string) {
	for _, id := range ids {
		if err := s.enqueue(id); err != nil {
			s.log.Warn("sweep: enqueue failed",
				logx.Int64("post_id", id),
				logx.String("kind", kind),
				logx.Err(err))
			continue
		}
		s.log.Debug("sweep: enqueued",
			logx.Int64("post_id", id),
			logx.String("kind", kind))
	}
}
