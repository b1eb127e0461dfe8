package model

import "time"

// Release status constants.
const (
	ReleaseStatusDraft      = "draft"
	ReleaseStatusActive     = "active"
	ReleaseStatusPaused     = "paused"
	ReleaseStatusRolledBack = "rolled_back"
	ReleaseStatusFailed     = "failed"
)

// Release is one deployable version of an app. The bundle reference points at
// the validated bundle in object storage; a release with no bundle can never
// be promoted to a channel.
type Release struct {
	ID             string     `json:"id" db:"id"`
	AppID          string     `json:"app_id" db:"app_id"`
	Version        string     `json:"version" db:"version"`
	BundleHash     *string    `json:"bundle_hash,omitempty" db:"bundle_hash"`
	BundleRef      *string    `json:"bundle_ref,omitempty" db:"bundle_ref"`
	BundleSize     int64      `json:"bundle_size" db:"bundle_size"`
	RolloutPercent int        `json:"rollout_percent" db:"rollout_percent"`
	MinAppVersion  *string    `json:"min_app_version,omitempty" db:"min_app_version"`
	MaxAppVersion  *string    `json:"max_app_version,omitempty" db:"max_app_version"`
	Status         string     `json:"status" db:"status"`
	ChannelID      *string    `json:"channel_id,omitempty" db:"channel_id"`
	RollbackReason *string    `json:"rollback_reason,omitempty" db:"rollback_reason"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty" db:"activated_at"`
}

// CanTransitionTo reports whether the release state machine allows moving
// from the current status to the target status. rolled_back is terminal.
func (r *Release) CanTransitionTo(target string) bool {
	switch r.Status {
	case ReleaseStatusDraft:
		return target == ReleaseStatusActive
	case ReleaseStatusActive:
		return target == ReleaseStatusPaused || target == ReleaseStatusRolledBack
	case ReleaseStatusPaused:
		return target == ReleaseStatusActive || target == ReleaseStatusRolledBack
	default:
		return false
	}
}
