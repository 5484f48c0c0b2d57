package location

import (
	"context"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

// GoogleGeolocationProvider uses the Google Maps API to get location data.
type GoogleGeolocationProvider struct {
	client     *maps.Client // Maps API client for making geolocation requests
	modemIndex int
	logger     zerolog.Logger
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int, logger zerolog.Logger, opts ...maps.ClientOption) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &GoogleGeolocationProvider{
		client:     c,
		modemIndex: modemIndex,
		logger:     logger,
	}, nil
}

// GetLocation retrieves the device's location using Google Maps Geolocation API.
// Missing Wi-Fi or cell data degrades to an IP based lookup.
func (g *GoogleGeolocationProvider) GetLocation(ctx context.Context) (Location, error) {
	wifiAPs, err := getWiFiAccessPoints(ctx)
	if err != nil {
		g.logger.Debug().Err(err).Msg("Wi-Fi scan unavailable")
	}

	cellTowers, err := getCellTowers(ctx, g.modemIndex)
	if err != nil {
		g.logger.Debug().Err(err).Msg("Cell tower scan unavailable")
	}

	req := &maps.GeolocationRequest{
		ConsiderIP:       true,
		WiFiAccessPoints: wifiAPs,
		CellTowers:       cellTowers,
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Location{}, err
	}

	return Location{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		Accuracy:  resp.Accuracy,
	}, nil
}
