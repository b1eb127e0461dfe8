package model

import (
	"encoding/json"
	"time"
)

// Telemetry event types reported by device agents.
const (
	EventRollbackTriggered = "rollback_triggered"
	EventCrash             = "crash"
	EventRouteSuccess      = "route_success"
	EventRouteFailure      = "route_failure"
	EventUpdateApplied     = "update_applied"
)

// ValidEventType reports whether s names a known telemetry event type.
func ValidEventType(s string) bool {
	switch s {
	case EventRollbackTriggered, EventCrash, EventRouteSuccess, EventRouteFailure, EventUpdateApplied:
		return true
	}
	return false
}

// TelemetryEvent is a fire-and-forget status report from a device.
type TelemetryEvent struct {
	ID         string          `json:"id" db:"id"`
	DeviceID   string          `json:"device_id" db:"device_id"`
	AppID      string          `json:"app_id" db:"app_id"`
	ReleaseID  *string         `json:"release_id,omitempty" db:"release_id"`
	Type       string          `json:"type" db:"type"`
	Payload    json.RawMessage `json:"payload,omitempty" db:"payload"`
	ReportedAt time.Time       `json:"reported_at" db:"reported_at"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
