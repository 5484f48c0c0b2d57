package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func newTestRouter(t *testing.T, handler http.HandlerFunc) *GoogleDirectionsRouter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	router, err := NewGoogleDirectionsRouter("test-key", maps.WithBaseURL(server.URL))
	require.NoError(t, err)
	return router
}

func TestGoogleDirectionsRouter_Route(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		assert.Equal(t, "driving", r.URL.Query().Get("mode"))
		assert.Equal(t, "37.000000,-122.000000", r.URL.Query().Get("origin"))
		assert.Equal(t, "37.100000,-122.100000", r.URL.Query().Get("destination"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"routes": [{
				"summary": "CA-1",
				"legs": [
					{"distance": {"text": "1.2 km", "value": 1200}, "duration": {"text": "3 mins", "value": 180}},
					{"distance": {"text": "0.3 km", "value": 300}, "duration": {"text": "1 min", "value": 60}}
				]
			}]
		}`))
	})

	summary, err := router.Route(context.Background(),
		geo.Coordinate{Latitude: 37.0, Longitude: -122.0},
		geo.Coordinate{Latitude: 37.1, Longitude: -122.1})
	require.NoError(t, err)
	assert.Equal(t, 1500.0, summary.DistanceMeters)
	assert.Equal(t, 240.0, summary.DurationSeconds)
}

func TestGoogleDirectionsRouter_NoRoutes(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "OK", "routes": []}`))
	})

	_, err := router.Route(context.Background(), geo.Coordinate{}, geo.Coordinate{Latitude: 1})
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestGoogleDirectionsRouter_ServiceFailure(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "REQUEST_DENIED", "error_message": "bad key", "routes": []}`))
	})

	_, err := router.Route(context.Background(), geo.Coordinate{}, geo.Coordinate{Latitude: 1})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRoute)
}
