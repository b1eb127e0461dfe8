package request

// CreateRelease creates a draft release. JobID references a completed upload
// job whose bundle the release ships; a release may also start bundle-less
// and pick one up from a later upload.
type CreateRelease struct {
	Version        string  `json:"version" validate:"required,semver"`
	JobID          string  `json:"job_id,omitempty"`
	RolloutPercent *int    `json:"rollout_percent,omitempty" validate:"omitempty,min=0,max=100"`
	MinAppVersion  *string `json:"min_app_version,omitempty" validate:"omitempty,semver"`
	MaxAppVersion  *string `json:"max_app_version,omitempty" validate:"omitempty,semver"`
}

// UpdateRollout changes the staged rollout percentage of an active release.
type UpdateRollout struct {
	Percent int `json:"percent" validate:"min=0,max=100"`
}

// PromoteRelease points a channel at the release.
type PromoteRelease struct {
	ChannelID string `json:"channel_id" validate:"required"`
}

// RollbackRelease rolls the release back and repoints its channel.
type RollbackRelease struct {
	Reason string `json:"reason" validate:"required"`
}
