package model

import "time"

// Channel is a named distribution lane pointing at the current active release.
// The pointer is mutated only by promotion and rollback, both transactional.
type Channel struct {
	ID              string    `json:"id" db:"id"`
	AppID           string    `json:"app_id" db:"app_id"`
	Name            string    `json:"name" db:"name"`
	ActiveReleaseID *string   `json:"active_release_id,omitempty" db:"active_release_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
