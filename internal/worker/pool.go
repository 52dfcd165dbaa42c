// Package worker runs publish jobs on a bounded pool with retry and
// panic isolation.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "shoutbox/pkg/logx"
)

// Config tunes the pool. Zero values fall back to safe defaults.
type Config struct {
	Workers   int
	QueueSize int

	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RetryJitter   float64
}

// Job is one unit of work. Name is for logs; Run does the work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type queuedJob struct {
	job        Job
	enqueuedAt time.Time
}

// Pool executes jobs with bounded concurrency and jittered backoff.
type Pool struct {
	cfg Config
	log logx.Logger

	queue  chan queuedJob
	stopCh chan struct{}
	wg     sync.WaitGroup

	started  atomic.Bool
	stopped  atomic.Bool
	inFlight atomic.Int32
}

func NewPool(cfg Config, log logx.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Pool{
		cfg:    cfg,
		log:    log,
		queue:  make(chan queuedJob, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// Start launches the workers. It is a no-op on repeated calls.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func(idx int) {
			defer p.wg.Done()
			p.worker(ctx, idx)
		}(i)
	}
	p.log.Info("worker pool started",
		logx.Int("workers", p.cfg.Workers),
		logx.Int("queue_size", p.cfg.QueueSize))
}

// Stop signals workers to finish their current job and waits for them.
func (p *Pool) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	close(p.stopCh)
	p.wg.Wait()
}

// Enqueue submits a job without blocking.
func (p *Pool) Enqueue(job Job) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	select {
	case p.queue <- queuedJob{job: job, enqueuedAt: time.Now()}:
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueAt delivers the job once eta passes. Jobs due now or in the
// past are enqueued immediately.
func (p *Pool) EnqueueAt(job Job, eta time.Time) error {
	delay := time.Until(eta)
	if delay <= 0 {
		return p.Enqueue(job)
	}
	if p.stopped.Load() {
		return ErrStopped
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		tmr := time.NewTimer(delay)
		defer tmr.Stop()
		select {
		case <-p.stopCh:
		case <-tmr.C:
			if err := p.Enqueue(job); err != nil {
				p.log.Warn("delayed job dropped",
					logx.String("job", job.Name),
					logx.Err(err))
			}
		}
	}()
	return nil
}

// InFlight reports how many jobs are executing right now.
func (p *Pool) InFlight() int { return int(p.inFlight.Load()) }

func (p *Pool) worker(ctx context.Context, idx int) {
	// Per-worker RNG avoids lock contention when many jobs retry at once.
	seed := time.Now().UnixNano() ^ (int64(idx) << 32)
	rng := rand.New(rand.NewSource(seed))

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case qj := <-p.queue:
			p.inFlight.Add(1)
			p.execOne(ctx, qj, rng)
			p.inFlight.Add(-1)
		}
	}
}

func (p *Pool) execOne(ctx context.Context, qj queuedJob, rng *rand.Rand) {
	start := time.Now()
	queueDelay := start.Sub(qj.enqueuedAt)
	if queueDelay < 0 {
		queueDelay = 0
	}

	p.log.Debug("job started",
		logx.String("job", qj.job.Name),
		logx.Duration("queue_delay", queueDelay))

	maxAttempts := 1 + p.cfg.RetryMax
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	attempts := 0
attemptLoop:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt

		// One panicking job must not take a worker down with it.
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
					p.log.Error("job panic",
						logx.String("job", qj.job.Name),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			err = qj.job.Run(ctx)
		}()
		if err == nil {
			break
		}
		var nr noRetryError
		if errors.As(err, &nr) {
			err = nr.err
			break
		}
		if attempt >= maxAttempts {
			break
		}

		delay := p.backoffDelay(attempt, err, rng)
		if delay > 0 {
			p.log.Debug("job retry scheduled",
				logx.String("job", qj.job.Name),
				logx.Int("attempt", attempt+1),
				logx.Duration("delay", delay),
				logx.Err(err))
			tmr := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !tmr.Stop() {
					<-tmr.C
				}
				err = ctx.Err()
				break attemptLoop
			case <-p.stopCh:
				if !tmr.Stop() {
					<-tmr.C
				}
				err = ErrStopped
				break attemptLoop
			case <-tmr.C:
			}
		}
	}

	dur := time.Since(start)
	if err != nil {
		p.log.Warn("job failed",
			logx.String("job", qj.job.Name),
			logx.Err(err),
			logx.Duration("dur", dur),
			logx.Int("attempts", attempts))
		return
	}
	p.log.Debug("job completed",
		logx.String("job", qj.job.Name),
		logx.Duration("dur", dur),
		logx.Int("attempts", attempts))
}

func (p *Pool) backoffDelay(retry int, err error, rng *rand.Rand) time.Duration {
	base := p.cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxD := p.cfg.RetryMaxDelay
	if maxD <= 0 {
		maxD = 15 * time.Second
	}
	j := p.cfg.RetryJitter
	if j <= 0 {
		j = 0.2
	}

	var d time.Duration
	var ra RetryAfterError
	if err != nil && errors.As(err, &ra) {
		d = ra.RetryAfter()
		if d < 0 {
			d = 0
		}
	} else {
		d = base
		for i := 1; i < retry; i++ {
			d *= 2
			if d > maxD {
				break
			}
		}
	}
	if d > maxD {
		d = maxD
	}
	if d > 0 {
		r := (rng.Float64()*2 - 1) * j
		d = time.Duration(float64(d) * (1 + r))
		if d < 0 {
			d = 0
		}
	}
	if d > maxD {
		d = maxD
	}
	return d
}
