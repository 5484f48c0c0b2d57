package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// EarthRadiusMeters is the mean earth radius used by the haversine formula.
	EarthRadiusMeters = 6371000.0

	// MetersPerMile converts meters to statute miles.
	MetersPerMile = 1609.344
)

// ErrInvalidCoordinate is returned when a coordinate falls outside the valid ranges.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks latitude is within [-90,90] and longitude within [-180,180].
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// String formats the coordinate as "lat,lng".
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// HaversineDistanceMeters returns the great-circle distance between a and b in meters.
func HaversineDistanceMeters(a, b Coordinate) float64 {
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// HaversineDistanceMiles returns the great-circle distance between a and b in miles.
func HaversineDistanceMiles(a, b Coordinate) float64 {
	return HaversineDistanceMeters(a, b) / MetersPerMile
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
