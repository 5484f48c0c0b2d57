package models

import (
	"time"

	"github.com/benmeehan/rendezvous-agent/pkg/geo"
)

// ActorID identifies one of the two tracked parties.
type ActorID string

const (
	ActorSelf ActorID = "self"
	ActorPeer ActorID = "peer"
)

// ActorPosition is the last known coordinate of an actor.
type ActorPosition struct {
	Actor      ActorID        `json:"actor"`
	Coordinate geo.Coordinate `json:"coordinate"`
	ObservedAt time.Time      `json:"observed_at"`
}

// RouteSummary is the driving distance and ETA between the two actors.
type RouteSummary struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// PeerUpdate is sent to presentation sinks each time a peer position is read.
type PeerUpdate struct {
	SessionID     string          `json:"session_id"`
	Peer          geo.Coordinate  `json:"peer"`
	Self          *geo.Coordinate `json:"self,omitempty"`
	ObservedAt    time.Time       `json:"observed_at"`
	DistanceMiles *float64        `json:"distance_miles,omitempty"`
	Route         *RouteSummary   `json:"route,omitempty"`
	Arrived       bool            `json:"arrived"`
}
