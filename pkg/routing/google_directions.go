package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	"googlemaps.github.io/maps"
)

// GoogleDirectionsRouter uses the Google Maps Directions API in driving mode.
type GoogleDirectionsRouter struct {
	client *maps.Client
}

// NewGoogleDirectionsRouter creates a router authenticated with apiKey.
// Extra client options (base URL, HTTP client) are passed through to the maps client.
func NewGoogleDirectionsRouter(apiKey string, opts ...maps.ClientOption) (*GoogleDirectionsRouter, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &GoogleDirectionsRouter{
		client: c,
	}, nil
}

// Route returns the distance and duration of the first driving route.
func (g *GoogleDirectionsRouter) Route(ctx context.Context, origin, destination geo.Coordinate) (Summary, error) {
	req := &maps.DirectionsRequest{
		Origin:      origin.String(),
		Destination: destination.String(),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := g.client.Directions(ctx, req)
	if err != nil {
		// the client reports ZERO_RESULTS and NOT_FOUND as status errors
		if strings.Contains(err.Error(), "ZERO_RESULTS") || strings.Contains(err.Error(), "NOT_FOUND") {
			return Summary{}, fmt.Errorf("%w: %v", ErrNoRoute, err)
		}
		return Summary{}, fmt.Errorf("directions request failed: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Summary{}, ErrNoRoute
	}

	var summary Summary
	for _, leg := range routes[0].Legs {
		summary.DistanceMeters += float64(leg.Distance.Meters)
		summary.DurationSeconds += leg.Duration.Seconds()
	}
	return summary, nil
}
