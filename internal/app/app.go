// Package app wires configuration, storage, rendering and the publish
// pipeline into one runnable daemon.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"shoutbox/internal/artifact"
	"shoutbox/internal/config"
	"shoutbox/internal/instagram"
	"shoutbox/internal/notify"
	"shoutbox/internal/publish"
	"shoutbox/internal/store"
	"shoutbox/internal/sweep"
	"shoutbox/internal/worker"
	logx "shoutbox/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	store     store.Store
	artifacts artifact.Store
	ig        *instagram.Client
	alerts    *notify.Service

	pool    *worker.Pool
	pub     *publish.Service
	sweeper *sweep.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	a := &App{cfgPath: cfgPath, cfgm: cfgm, logs: logSvc, log: log}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return err
	}
	st, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, a.logs.Logger().With(logx.String("comp", "store")))
	if err != nil {
		return err
	}
	a.store = st

	art, err := artifact.New(context.Background(), artifactConfig(cfg),
		a.logs.Logger().With(logx.String("comp", "artifact")))
	if err != nil {
		return err
	}
	a.artifacts = art

	igCfg, err := instagramConfig(cfg)
	if err != nil {
		return err
	}
	ig, err := instagram.New(igCfg, a.logs.Logger().With(logx.String("comp", "instagram")))
	if err != nil {
		return err
	}
	a.ig = ig

	tol, err := config.ParseDurationOrDefault("publisher.schedule_tolerance", cfg.Publisher.ScheduleTolerance, 2*time.Minute)
	if err != nil {
		return err
	}
	runner := publish.NewRunner(st, art, ig, publish.Config{
		ScheduleTolerance: tol,
		CaptionSuffix:     cfg.Publisher.CaptionSuffix,
		AccountTitle:      cfg.Publisher.AccountTitle,
		FontsDir:          cfg.Fonts.Dir,
		RenderOptions:     cfg.Render.Options(),
	}, a.logs.Logger().With(logx.String("comp", "publish")))

	if cfg.Notify != nil && cfg.Notify.Enabled {
		alerts, err := notify.New(notify.Config{
			Token:    cfg.Notify.Token,
			ChatID:   cfg.Notify.ChatID,
			ThreadID: cfg.Notify.ThreadID,
		}, a.logs.Logger().With(logx.String("comp", "notify")))
		if err != nil {
			return err
		}
		a.alerts = alerts
		runner.SetNotifier(alerts)
	}

	retryBase, err := config.ParseDurationOrDefault("publisher.retry_base", cfg.Publisher.RetryBase, 2*time.Second)
	if err != nil {
		return err
	}
	retryMax, err := config.ParseDurationOrDefault("publisher.retry_max_delay", cfg.Publisher.RetryMaxDelay, 30*time.Second)
	if err != nil {
		return err
	}
	a.pool = worker.NewPool(worker.Config{
		Workers:       cfg.Publisher.Workers,
		QueueSize:     cfg.Publisher.QueueSize,
		RetryMax:      cfg.Publisher.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMax,
	}, a.logs.Logger().With(logx.String("comp", "worker")))
	a.pub = publish.NewService(a.pool, runner)

	if cfg.Sweep.Enabled {
		stale, err := config.ParseDurationOrDefault("sweep.stale_processing", cfg.Sweep.StaleProcessing, 15*time.Minute)
		if err != nil {
			return err
		}
		a.sweeper = sweep.New(sweep.Config{
			Spec:            cfg.Sweep.Spec,
			Tolerance:       tol,
			StaleProcessing: stale,
			BatchSize:       cfg.Sweep.BatchSize,
		}, st, a.pub.EnqueuePost, a.logs.Logger().With(logx.String("comp", "sweep")))
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	a.pub.Start(runCtx)
	if a.sweeper != nil {
		if err := a.sweeper.Start(runCtx); err != nil {
			cancel()
			return err
		}
		// Catch up on work that accrued while the daemon was down.
		a.sweeper.Sweep(runCtx)
	}

	// Hot reload: only the logging section applies live; everything else
	// takes effect on restart.
	sub := a.cfgm.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   newCfg.Logging.Level,
					Console: newCfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: newCfg.Logging.File.Enabled,
						Path:    newCfg.Logging.File.Path,
					},
				})
				a.log.Info("config reloaded",
					logx.String("applied", "logging"))
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if a.cancel != nil {
		a.cancel()
	}

	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	a.pub.Stop()
	a.alerts.Close()

	// Bound the wait on background loops so one stuck goroutine cannot
	// stall shutdown past the caller's deadline.
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("shutdown deadline reached", logx.Err(ctx.Err()))
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	return a.logs.Close()
}
