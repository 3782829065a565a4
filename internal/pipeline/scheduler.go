package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Runner is the job the scheduler triggers. Implemented by Pipeline.
type Runner interface {
	Run(ctx context.Context) RunResult
}

// Scheduler runs a Runner every interval, starting immediately. Runs never overlap: a tick that
// arrives while the previous run is still going is skipped.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler returns a stopped scheduler. runTimeout bounds each run; zero means interval.
func NewScheduler(r Runner, interval, runTimeout time.Duration, logger *zap.Logger) *Scheduler {
	if runTimeout <= 0 {
		runTimeout = interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		runner:     r,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Start schedules the job and returns. The first run begins right away.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.tick)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil || parent.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, s.runTimeout)
	defer cancel()
	s.runner.Run(ctx)
}

// Stop cancels an in-flight run and prevents further runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.scheduler.Stop()
	s.logger.Info("scheduler stopped")
}
