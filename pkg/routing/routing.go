package routing

import (
	"context"
	"errors"

	"github.com/benmeehan/rendezvous-agent/pkg/geo"
)

// ErrNoRoute is returned when the routing service finds no route between two points.
var ErrNoRoute = errors.New("no route found")

// Summary is the driving distance and duration between two points.
type Summary struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// Router computes a route summary between two coordinates.
type Router interface {
	Route(ctx context.Context, origin, destination geo.Coordinate) (Summary, error)
}
