package presentation

import (
	"time"

	"github.com/benmeehan/rendezvous-agent/internal/models"
	"github.com/rs/zerolog"
)

// Sink receives peer updates for display. Notify must not block for long.
type Sink interface {
	Notify(update models.PeerUpdate)
}

// MultiSink fans an update out to every sink in order.
type MultiSink []Sink

// Notify forwards update to each sink.
func (m MultiSink) Notify(update models.PeerUpdate) {
	for _, s := range m {
		s.Notify(update)
	}
}

// LogSink writes updates to the structured log.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging at info level.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify logs the peer position, distance and route summary.
func (l *LogSink) Notify(update models.PeerUpdate) {
	event := l.logger.Info().
		Str("session_id", update.SessionID).
		Float64("peer_lat", update.Peer.Latitude).
		Float64("peer_lng", update.Peer.Longitude).
		Bool("arrived", update.Arrived)
	if update.DistanceMiles != nil {
		event = event.Float64("distance_miles", *update.DistanceMiles)
	}
	if update.Route != nil {
		event = event.
			Float64("route_meters", update.Route.DistanceMeters).
			Dur("eta", secondsToDuration(update.Route.DurationSeconds))
	}
	event.Msg("Peer position updated")
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
