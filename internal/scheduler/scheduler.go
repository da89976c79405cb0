package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/uptimeworker/internal/metrics"
	"github.com/hamed0406/uptimeworker/internal/notify"
	"github.com/hamed0406/uptimeworker/internal/probe"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

var ErrNotRunning = errors.New("scheduler not running")

// Appender stores one serialized audit entry under a log name.
type Appender interface {
	Append(name string, entry []byte) error
}

// Rotator rotates whatever logs it owns and reports how many it moved.
type Rotator interface {
	Rotate() (int, error)
}

type Config struct {
	SweepInterval  time.Duration // 0 disables the sweep driver
	RotateInterval time.Duration // 0 disables the rotation driver
	NotifyTimeout  time.Duration
}

type Scheduler struct {
	Logger   *zap.Logger
	Store    repo.RecordStore
	Prober   probe.Prober
	Notifier notify.Notifier
	Audit    Appender
	Rotator  Rotator
	Metrics  *metrics.Metrics
	Config   Config

	now func() time.Time

	inflight sync.WaitGroup

	mu   sync.Mutex
	base context.Context
}

func New(
	logger *zap.Logger,
	store repo.RecordStore,
	prober probe.Prober,
	notifier notify.Notifier,
	audit Appender,
	rotator Rotator,
	m *metrics.Metrics,
	cfg Config,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	if cfg.SweepInterval < 0 {
		cfg.SweepInterval = 0
	}
	if cfg.RotateInterval < 0 {
		cfg.RotateInterval = 0
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &Scheduler{
		Logger:   logger,
		Store:    store,
		Prober:   prober,
		Notifier: notifier,
		Audit:    audit,
		Rotator:  rotator,
		Metrics:  m,
		Config:   cfg,
		now:      time.Now,
	}
}

// Run starts both drivers and blocks until ctx is cancelled and every
// in-flight check pipeline has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.sweepLoop(gctx)
		return nil
	})
	g.Go(func() error {
		s.rotateLoop(gctx)
		return nil
	})
	err := g.Wait()

	// after this no TriggerSweep can add pipelines, so Wait covers them all
	s.mu.Lock()
	s.base = nil
	s.mu.Unlock()
	s.Wait()
	s.Logger.Info("scheduler_stopped")
	return err
}

// Wait blocks until all check pipelines started so far have finished. It
// never gates the sweep ticker.
func (s *Scheduler) Wait() { s.inflight.Wait() }

// TriggerSweep starts an extra sweep bound to the running scheduler's
// lifetime rather than the caller's. The lock is held until every pipeline
// is registered so Run cannot stop waiting in between.
func (s *Scheduler) TriggerSweep() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil || s.base.Err() != nil {
		return 0, ErrNotRunning
	}
	return s.Sweep(s.base)
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	if s.Config.SweepInterval == 0 {
		s.Logger.Info("sweep_disabled")
		return
	}
	t := time.NewTicker(s.Config.SweepInterval)
	defer t.Stop()

	// immediate pass
	s.sweepAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Scheduler) sweepAndLog(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.Logger.Warn("sweep_list_error", zap.Error(err))
	}
}

// Sweep lists every check and starts one independent pipeline per id. It
// returns as soon as the pipelines are dispatched.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	s.Metrics.Sweeps.Inc()
	ids, err := s.Store.List(ctx, repo.KindChecks)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		s.Logger.Debug("sweep_no_checks")
		return 0, nil
	}
	s.Logger.Debug("sweep_started", zap.Int("checks", len(ids)))
	for _, id := range ids {
		s.inflight.Add(1)
		go s.runCheck(ctx, id)
	}
	return len(ids), nil
}

func (s *Scheduler) rotateLoop(ctx context.Context) {
	if s.Rotator == nil || s.Config.RotateInterval == 0 {
		s.Logger.Info("log_rotation_disabled")
		return
	}
	t := time.NewTicker(s.Config.RotateInterval)
	defer t.Stop()

	s.rotate()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.rotate()
		}
	}
}

func (s *Scheduler) rotate() {
	n, err := s.Rotator.Rotate()
	if err != nil {
		s.Metrics.LogRotations.WithLabelValues("error").Inc()
		s.Logger.Warn("log_rotation_error", zap.Int("rotated", n), zap.Error(err))
		return
	}
	s.Metrics.LogRotations.WithLabelValues("ok").Inc()
	s.Logger.Info("log_rotation_done", zap.Int("rotated", n))
}
