package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type maturitySweeper interface {
	CheckMatured(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs the periodic investment maturity sweep.
type Scheduler struct {
	cron    *cron.Cron
	sweeper maturitySweeper
	timeout time.Duration
	log     *slog.Logger
}

type Deps struct {
	Sweeper  maturitySweeper
	Schedule string
	// Timeout bounds one sweep. Zero means one minute.
	Timeout time.Duration
	Logger  *slog.Logger
}

// New registers the sweep under deps.Schedule (standard five-field cron or
// "@every <duration>"). Overlapping runs on the same instance are skipped.
func New(deps Deps) (*Scheduler, error) {
	s := &Scheduler{sweeper: deps.Sweeper, timeout: deps.Timeout, log: deps.Logger}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.timeout <= 0 {
		s.timeout = time.Minute
	}
	cl := cronLogger{log: s.log}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := s.cron.AddFunc(deps.Schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("maturity schedule %q: %w", deps.Schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}

// RunOnce performs a single maturity sweep.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	start := time.Now()
	n, err := s.sweeper.CheckMatured(ctx, start.UTC())
	if err != nil {
		s.log.Error("maturity sweep failed", "settled", n, "err", err)
		return
	}
	if n > 0 {
		s.log.Info("maturity sweep", "settled", n, "took", time.Since(start))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
