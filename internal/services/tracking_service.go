package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benmeehan/rendezvous-agent/internal/tracking"
	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	"github.com/benmeehan/rendezvous-agent/pkg/location"
	"github.com/rs/zerolog"
)

// ErrFeedEnded is reported when the location feed returns before it was released.
var ErrFeedEnded = errors.New("location feed ended unexpectedly")

// TrackingService feeds local positions into a tracking session and tears it
// down on shutdown.
type TrackingService struct {
	// Dependencies
	feed    location.Feed
	session *tracking.Session
	logger  zerolog.Logger
	failed  chan error

	// Internal state management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTrackingService creates a new TrackingService for session.
func NewTrackingService(feed location.Feed, session *tracking.Session, logger zerolog.Logger) *TrackingService {
	return &TrackingService{
		feed:    feed,
		session: session,
		logger:  logger,
		failed:  make(chan error, 1),
	}
}

// Failed delivers the error that ended the location feed. Without a feed the
// session can never become active, so the caller should shut down.
func (t *TrackingService) Failed() <-chan error {
	return t.failed
}

// Start subscribes to the location feed. The feed is released once the session stops.
func (t *TrackingService) Start() error {
	if t.ctx != nil {
		t.logger.Warn().Msg("TrackingService is already running")
		return errors.New("tracking service is already running")
	}

	t.ctx, t.cancel = context.WithCancel(context.Background())

	ctx, cancel := t.ctx, t.cancel
	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		err := t.feed.Subscribe(ctx, t.onLocalPosition)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrFeedEnded
		}
		t.logger.Error().Err(err).Msg("Location feed stopped")
		select {
		case t.failed <- fmt.Errorf("location feed: %w", err):
		default:
		}
	}()

	go func() {
		defer t.wg.Done()
		select {
		case <-t.session.Done():
			t.logger.Info().
				Str("reason", string(t.session.StopReason())).
				Msg("Tracking session ended, releasing location feed")
			cancel()
		case <-ctx.Done():
		}
	}()

	t.logger.Info().Str("session_id", t.session.ID()).Msg("TrackingService started")
	return nil
}

// Stop releases the feed and closes the session.
func (t *TrackingService) Stop() error {
	if t.ctx == nil {
		t.logger.Warn().Msg("TrackingService is not running")
		return errors.New("tracking service is not running")
	}

	t.cancel()
	t.wg.Wait()

	if err := t.session.Close(); err != nil {
		t.logger.Error().Err(err).Msg("Failed to close tracking session")
		return err
	}

	t.ctx = nil
	t.cancel = nil

	t.logger.Info().Msg("TrackingService stopped")
	return nil
}

// Session returns the tracked session.
func (t *TrackingService) Session() *tracking.Session {
	return t.session
}

func (t *TrackingService) onLocalPosition(coord geo.Coordinate) {
	err := t.session.OnLocalPosition(coord)
	switch {
	case err == nil:
	case errors.Is(err, tracking.ErrSessionStopped):
		t.logger.Debug().Msg("Dropping local position, session already stopped")
	default:
		t.logger.Warn().Err(err).Msg("Local position rejected")
	}
}
