package model

import "time"

// DeviceUpdateRecord is the server-side mirror of a device's update state,
// written from device check-ins and telemetry. The authoritative copy lives
// on the device itself; this row exists for fleet visibility.
type DeviceUpdateRecord struct {
	DeviceID            string    `json:"device_id" db:"device_id"`
	AppID               string    `json:"app_id" db:"app_id"`
	AppVersion          string    `json:"app_version" db:"app_version"`
	CurrentHash         *string   `json:"current_hash,omitempty" db:"current_hash"`
	CurrentVersion      *string   `json:"current_version,omitempty" db:"current_version"`
	PendingVerification bool      `json:"pending_verification" db:"pending_verification"`
	RolloutBucket       int       `json:"rollout_bucket" db:"rollout_bucket"`
	LastCheckAt         time.Time `json:"last_check_at" db:"last_check_at"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
