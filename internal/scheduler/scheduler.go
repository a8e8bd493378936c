// Package scheduler triggers pipeline runs on a fixed interval and makes sure
// at most one run is in flight.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)

// RunFunc performs one run. trigger names what started it.
type RunFunc func(ctx context.Context, trigger string) error

type Scheduler struct {
	cron     *cron.Cron
	run      RunFunc
	interval time.Duration
	logger   zerolog.Logger

	ctx     context.Context
	running sync.Mutex
	wg      sync.WaitGroup

	// mu orders wg.Add against Stop's wg.Wait.
	mu      sync.Mutex
	stopped bool

	started   atomic.Int64
	coalesced atomic.Int64
}

func New(ctx context.Context, interval time.Duration, run RunFunc, logger zerolog.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, fmt.Errorf("run func is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0, got %s", interval)
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLogger{logger: logger})),
		run:      run,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
	}
	if _, err := s.cron.AddFunc("@every "+interval.String(), func() { s.trigger(TriggerSchedule) }); err != nil {
		return nil, fmt.Errorf("add cron entry: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
	s.cron.Start()
}

// RunNow runs immediately in the caller's goroutine. It returns false when a
// run was already in flight and this trigger was coalesced.
func (s *Scheduler) RunNow() bool {
	return s.trigger(TriggerStartup)
}

// Stop halts future triggers and waits for the in-flight run to finish.
// Triggers arriving after Stop are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info().
		Int64("runs", s.started.Load()).
		Int64("coalesced", s.coalesced.Load()).
		Msg("scheduler stopped")
}

// Started is the number of runs begun so far.
func (s *Scheduler) Started() int64 {
	return s.started.Load()
}

// Coalesced is the number of triggers dropped because a run was active.
func (s *Scheduler) Coalesced() int64 {
	return s.coalesced.Load()
}

func (s *Scheduler) trigger(trigger string) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Debug().Str("trigger", trigger).Msg("scheduler stopped, trigger dropped")
		return false
	}
	if !s.running.TryLock() {
		s.mu.Unlock()
		s.coalesced.Add(1)
		s.logger.Info().Str("trigger", trigger).Msg("run already in progress, trigger coalesced")
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	defer s.running.Unlock()

	if err := s.ctx.Err(); err != nil {
		s.logger.Debug().Str("trigger", trigger).Msg("scheduler context done, run skipped")
		return false
	}

	s.started.Add(1)
	if err := s.run(s.ctx, trigger); err != nil {
		s.logger.Error().Err(err).Str("trigger", trigger).Msg("scheduled run failed")
	}
	return true
}

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
