package model

import "time"

// Upload job status constants.
const (
	UploadStatusQueued     = "queued"
	UploadStatusProcessing = "processing"
	UploadStatusCompleted  = "completed"
	UploadStatusFailed     = "failed"
	UploadStatusCancelled  = "cancelled"
)

// UploadJob tracks a bundle upload through the intake queue. Jobs are
// ephemeral: they live in the short-TTL store and expire 24h after reaching
// a terminal state.
type UploadJob struct {
	ID         string    `json:"id"`
	AppID      string    `json:"app_id"`
	Tier       string    `json:"tier"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	BundleHash string    `json:"bundle_hash,omitempty"`
	BundleSize int64     `json:"bundle_size,omitempty"`
	BundleRef  string    `json:"bundle_ref,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Terminal reports whether the job has reached a final status.
func (j *UploadJob) Terminal() bool {
	switch j.Status {
	case UploadStatusCompleted, UploadStatusFailed, UploadStatusCancelled:
		return true
	}
	return false
}
