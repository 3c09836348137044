// Package retention runs the daily cleanup of expired sessions and old
// chat messages.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/opensass/eldflow/internal/clock"
	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/metrics"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/rs/zerolog"
)

// Result counts what one run removed.
type Result struct {
	Sessions int
	Messages int
}

// Scheduler runs the cleanup once a day at a fixed time of day.
type Scheduler struct {
	sessions      storage.SessionStore
	conversations storage.ConversationStore
	runTime       time.Time // only hour and minute are used
	messageDays   int
	clock         clock.Clock
	logger        zerolog.Logger
	stopChan      chan struct{}
	done          chan struct{}
}

// NewScheduler creates a scheduler. A MessageDays of zero keeps messages
// forever.
func NewScheduler(store storage.Store, cfg config.RetentionConfig, clk clock.Clock, logger zerolog.Logger) (*Scheduler, error) {
	runTime, err := time.Parse("15:04", cfg.RunTime)
	if err != nil {
		return nil, fmt.Errorf("invalid run time %q: %w", cfg.RunTime, err)
	}
	if cfg.MessageDays < 0 {
		return nil, fmt.Errorf("invalid message retention: %d days", cfg.MessageDays)
	}
	if clk == nil {
		clk = clock.Real{}
	}

	return &Scheduler{
		sessions:      store.Sessions(),
		conversations: store.Conversations(),
		runTime:       runTime,
		messageDays:   cfg.MessageDays,
		clock:         clk,
		logger:        logger.With().Str("component", "retention").Logger(),
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}, nil
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() {
	go s.run()
	s.logger.Info().
		Str("run_time", s.runTime.Format("15:04")).
		Int("message_days", s.messageDays).
		Msg("Retention scheduler started")
}

// Stop stops the loop and waits for a running cleanup to finish.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.done
	s.logger.Info().Msg("Retention scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.done)

	for {
		now := s.clock.Now()
		next := s.NextRun(now)
		wait := next.Sub(now)

		s.logger.Debug().
			Time("next_run", next).
			Dur("wait_duration", wait).
			Msg("Scheduled next retention run")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			if _, err := s.RunOnce(context.Background()); err != nil {
				s.logger.Error().Err(err).Msg("Retention run failed")
			}
		case <-s.stopChan:
			timer.Stop()
			return
		}
	}
}

// NextRun returns the first run time strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	today := time.Date(
		now.Year(), now.Month(), now.Day(),
		s.runTime.Hour(), s.runTime.Minute(), 0, 0,
		now.Location(),
	)
	if !now.Before(today) {
		return today.AddDate(0, 0, 1)
	}
	return today
}

// RunOnce removes expired sessions and messages older than the retention
// window.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	now := s.clock.Now()

	n, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("delete expired sessions: %w", err)
	}
	res.Sessions = n
	metrics.RetentionDeleted.WithLabelValues("sessions").Add(float64(n))

	if s.messageDays > 0 {
		cutoff := now.AddDate(0, 0, -s.messageDays)
		n, err := s.conversations.DeleteMessagesBefore(ctx, cutoff)
		if err != nil {
			return res, fmt.Errorf("delete old messages: %w", err)
		}
		res.Messages = n
		metrics.RetentionDeleted.WithLabelValues("messages").Add(float64(n))
	}

	if count, err := s.sessions.Count(ctx); err == nil {
		metrics.ActiveSessions.Set(float64(count))
	}

	s.logger.Info().
		Int("sessions_deleted", res.Sessions).
		Int("messages_deleted", res.Messages).
		Msg("Retention run complete")

	return res, nil
}
