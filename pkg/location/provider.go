package location

import (
	"context"

	"github.com/benmeehan/rendezvous-agent/pkg/geo"
)

// Provider interface defines the methods for location providers
type Provider interface {
	GetLocation(ctx context.Context) (Location, error)
}

// Handler receives coordinate samples from a Feed.
type Handler func(coord geo.Coordinate)

// Feed pushes local coordinate samples to a handler until ctx is done.
// Consumers only care about the most recent sample.
type Feed interface {
	Subscribe(ctx context.Context, handler Handler) error
}

// StaticProvider always reports the same location.
type StaticProvider struct {
	location Location
}

// NewStaticProvider creates a provider pinned to coord.
func NewStaticProvider(coord geo.Coordinate) *StaticProvider {
	return &StaticProvider{
		location: Location{Latitude: coord.Latitude, Longitude: coord.Longitude},
	}
}

// GetLocation returns the configured location.
func (s *StaticProvider) GetLocation(ctx context.Context) (Location, error) {
	return s.location, ctx.Err()
}
