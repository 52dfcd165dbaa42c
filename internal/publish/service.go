package publish

import (
	"context"
	"fmt"

	"shoutbox/internal/worker"
)

// Service couples the runner with its worker pool.
type Service struct {
	pool   *worker.Pool
	runner *Runner
}

func NewService(pool *worker.Pool, runner *Runner) *Service {
	return &Service{pool: pool, runner: runner}
}

func (s *Service) Start(ctx context.Context) { s.pool.Start(ctx) }
func (s *Service) Stop()                     { s.pool.Stop() }

// EnqueuePost submits one post for processing.
func (s *Service) EnqueuePost(postID int64) error {
	return s.pool.Enqueue(worker.Job{
		Name: fmt.Sprintf("publish:%d", postID),
		Run: func(ctx context.Context) error {
			return s.runner.Run(ctx, postID)
		},
	})
}
