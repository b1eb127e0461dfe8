package model

import "time"

// App platform constants.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

type App struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Platform  string    `json:"platform" db:"platform"`
	OrgID     string    `json:"org_id" db:"org_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
