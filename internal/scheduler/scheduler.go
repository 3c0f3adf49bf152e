// Package scheduler wires up the cron job that periodically refreshes stale job data.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spigell/jobscout/internal/scrape"
	"go.uber.org/zap"
)

// Gate decides whether a scrape is due.
type Gate interface {
	ShouldScrape(ctx context.Context) (bool, scrape.FreshnessStatus, error)
}

// RunFunc performs one scrape.
type RunFunc func(ctx context.Context) error

// Scheduler wraps robfig/cron and only scrapes when the gate reports stale data.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	gate    Gate
	run     RunFunc
	logger  *zap.Logger
	running atomic.Bool
	// first tracks the immediate tick started by Start.
	first sync.WaitGroup
}

// New creates a Scheduler that checks freshness every interval.
func New(interval time.Duration, gate Gate, run RunFunc, logger *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %s", interval)
	}
	if run == nil {
		return nil, errors.New("scheduler needs a run function")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		spec:   fmt.Sprintf("@every %s", interval),
		gate:   gate,
		run:    run,
		logger: logger,
	}, nil
}

// Start registers the job and starts the scheduler. One check runs immediately
// so stale data is refreshed without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))

	s.first.Add(1)
	go func() {
		defer s.first.Done()
		s.Tick(ctx)
	}()
	return nil
}

// Stop shuts the scheduler down and waits for running scrapes, including the immediate one, to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.first.Wait()
	s.logger.Info("scheduler stopped")
}

// Tick runs one scrape when the data is stale and no scrape is running. It reports whether a scrape ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	if s.gate != nil {
		should, status, err := s.gate.ShouldScrape(ctx)
		if err != nil {
			s.logger.Error("freshness check failed", zap.Error(err))
			return false
		}
		if !should {
			s.logger.Debug("data is fresh, skipping scrape",
				zap.Duration("age", status.Age),
				zap.Int("jobs", status.JobCount),
			)
			return false
		}
	}

	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("previous scrape still running, skipping")
		return false
	}
	defer s.running.Store(false)

	s.logger.Info("scheduled scrape started")
	if err := s.run(ctx); err != nil {
		s.logger.Error("scheduled scrape failed", zap.Error(err))
	} else {
		s.logger.Info("scheduled scrape finished")
	}
	return true
}

// cronLogger routes cron's own logs through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
