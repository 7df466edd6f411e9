// Package notify sends the periodic breach alert to every subscriber.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/stellarlinkco/leakguard/internal/logging"
	"github.com/stellarlinkco/leakguard/internal/metrics"
)

// ErrNoSender is returned by RunOnce when no Sender was configured.
var ErrNoSender = errors.New("notify: no sender configured")

// Sender delivers one message to one user. Delivery failures are returned,
// never panicked.
type Sender interface {
	Send(ctx context.Context, userID int64, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, userID int64, text string) error

func (f SenderFunc) Send(ctx context.Context, userID int64, text string) error {
	return f(ctx, userID, text)
}

// Subscribers is the part of the state store the scheduler reads.
type Subscribers interface {
	AllSubscribers() ([]int64, error)
}

// Report summarises one notification pass.
type Report struct {
	Attempted int
	Failed    int
}

type Scheduler struct {
	interval time.Duration
	message  string
	subs     Subscribers
	sender   Sender
	logger   zerolog.Logger
	metrics  metrics.Recorder

	mu     sync.Mutex
	cron   *rcron.Cron
	cancel context.CancelFunc
}

func NewScheduler(interval time.Duration, message string, subs Subscribers, sender Sender, logger zerolog.Logger, rec metrics.Recorder) *Scheduler {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Scheduler{
		interval: interval,
		message:  message,
		subs:     subs,
		sender:   sender,
		logger:   logger,
		metrics:  rec,
	}
}

// Start arms the timer. The first pass fires one interval after Start; there
// is no catch-up for ticks missed while the process was stopped. A pass still
// running when the next tick arrives causes that tick to be skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("notify: interval must be positive, got %s", s.interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("notify: scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cronLogger := logging.NewCronLogger(s.logger)
	c := rcron.New(
		rcron.WithLogger(cronLogger),
		rcron.WithChain(rcron.Recover(cronLogger), rcron.SkipIfStillRunning(cronLogger)),
	)
	c.Schedule(rcron.Every(s.interval), rcron.FuncJob(func() {
		if _, err := s.RunOnce(runCtx); err != nil {
			s.logger.Error().Err(err).Msg("notification pass failed")
		}
	}))

	s.cron = c
	s.cancel = cancel
	c.Start()
	s.logger.Info().Dur("interval", s.interval).Msg("notification scheduler started")

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop disarms the timer and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.logger.Info().Msg("notification scheduler stopped")
}

// RunOnce sends the alert to every current subscriber. A failed delivery is
// logged and counted; the pass continues with the next subscriber.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	if s.sender == nil {
		return report, ErrNoSender
	}

	subs, err := s.subs.AllSubscribers()
	if err != nil {
		return report, fmt.Errorf("load subscribers: %w", err)
	}

	for _, id := range subs {
		if ctx.Err() != nil {
			s.logger.Warn().Int("remaining", len(subs)-report.Attempted).Msg("notification pass interrupted")
			break
		}
		report.Attempted++
		if err := s.sender.Send(ctx, id, s.message); err != nil {
			report.Failed++
			s.metrics.IncNotifications("failed")
			s.logger.Error().Err(err).Int64("user_id", id).Msg("notification delivery failed")
			continue
		}
		s.metrics.IncNotifications("sent")
	}

	s.logger.Info().
		Int("attempted", report.Attempted).
		Int("failed", report.Failed).
		Msg("notification pass done")
	return report, nil
}
