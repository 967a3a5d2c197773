package cqrs

import (
	"time"

	"github.com/danghamo/robomap/internal/domain/shared"
)

// RobotPositionUpdatedEvent represents a domain event when the robot reports a new position
type RobotPositionUpdatedEvent struct {
	DeviceID  string                 `json:"device_id"`
	Position  shared.Position        `json:"position"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id"`
	Changes   map[string]interface{} `json:"changes,omitempty"`
}

// RobotMapUpdatedEvent represents a domain event when a new map image is cached
type RobotMapUpdatedEvent struct {
	DeviceID  string    `json:"device_id"`
	HasMap    bool      `json:"has_map"`
	SizeBytes int       `json:"size_bytes"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// SSENotificationEvent represents an event to send SSE notifications
type SSENotificationEvent struct {
	Type      string      `json:"type"`
	Method    string      `json:"method"`
	Params    interface{} `json:"params"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id"`
}

// Event types for notification patterns. Dashboards are anonymous listeners,
// so only broadcast delivery exists.
const (
	SSENotificationTypeBroadcast = "broadcast" // Send to all connected dashboards
)
