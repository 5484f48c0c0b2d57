package models

import "time"

// SessionStatus is the periodic status message of a tracking session.
type SessionStatus struct {
	SessionID     string         `json:"session_id"`
	Timestamp     time.Time      `json:"timestamp"`
	State         string         `json:"state"`
	StopReason    string         `json:"stop_reason,omitempty"`
	Self          *ActorPosition `json:"self,omitempty"`
	Peer          *ActorPosition `json:"peer,omitempty"`
	DistanceMiles *float64       `json:"distance_miles,omitempty"`

	// Agent carries host health metrics when enabled.
	Agent map[string]float64 `json:"agent,omitempty"`
}
