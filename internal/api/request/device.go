package request

import "time"

// DeviceCheck is the check-for-update call a device makes on launch.
type DeviceCheck struct {
	DeviceID    string `json:"device_id" validate:"required"`
	AppID       string `json:"app_id" validate:"required"`
	Channel     string `json:"channel" validate:"required,slug"`
	AppVersion  string `json:"app_version" validate:"required,semver"`
	CurrentHash string `json:"current_hash,omitempty"`
}

// DeviceTelemetry is a fire-and-forget status report from a device.
type DeviceTelemetry struct {
	DeviceID   string         `json:"device_id" validate:"required"`
	AppID      string         `json:"app_id" validate:"required"`
	ReleaseID  *string        `json:"release_id,omitempty"`
	Type       string         `json:"type" validate:"required"`
	Payload    map[string]any `json:"payload,omitempty"`
	ReportedAt time.Time      `json:"reported_at"`
}
