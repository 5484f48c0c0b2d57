package location

import "github.com/benmeehan/rendezvous-agent/pkg/geo"

// Location represents the geographical coordinates of a device
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Coordinate drops the accuracy estimate.
func (l Location) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: l.Latitude, Longitude: l.Longitude}
}
