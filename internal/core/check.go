package core

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/rs/zerolog"

	"github.com/bundlenudge/bundlenudge/internal/model"
)

// RolloutBucket maps a stable device id onto [0,100). The bucket is a pure
// function of the id, so a device keeps its bucket for the lifetime of the
// install and raising a release's rollout percentage only ever grows the
// eligible population.
func RolloutBucket(deviceID string) int {
	sum := sha256.Sum256([]byte(deviceID))
	return int(binary.BigEndian.Uint64(sum[:8]) % 100)
}

// CheckRequest is a device's check-for-update call.
type CheckRequest struct {
	DeviceID    string
	AppID       string
	Channel     string
	AppVersion  string
	CurrentHash string
}

// CheckResult is either up-to-date or a downloadable update.
type CheckResult struct {
	UpdateAvailable bool    `json:"update_available"`
	ReleaseID       string  `json:"release_id,omitempty"`
	Version         string  `json:"version,omitempty"`
	BundleHash      string  `json:"bundle_hash,omitempty"`
	BundleSize      int64   `json:"bundle_size,omitempty"`
	DownloadURL     string  `json:"download_url,omitempty"`
	Reason          string  `json:"reason,omitempty"`
}

// CheckService evaluates per-device update eligibility at check time.
type CheckService struct {
	db       DB
	channels *ChannelService
	releases *ReleaseService
	logger   zerolog.Logger
}

func NewCheckService(db DB, channels *ChannelService, releases *ReleaseService, logger zerolog.Logger) *CheckService {
	return &CheckService{
		db:       db,
		channels: channels,
		releases: releases,
		logger:   logger.With().Str("component", "check").Logger(),
	}
}

// Check decides whether the device should download an update. Every branch
// that does not yield an update reports up-to-date with a reason; eligibility
// failures are not errors. The device's update record is upserted as a side
// effect so the fleet view stays current.
func (s *CheckService) Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	bucket := RolloutBucket(req.DeviceID)

	if err := s.recordCheck(ctx, req, bucket); err != nil {
		// Fleet visibility is best-effort; the device still gets an answer.
		s.logger.Warn().Err(err).Str("device_id", req.DeviceID).Msg("record device check failed")
	}

	channel, err := s.channels.GetByName(ctx, req.AppID, req.Channel)
	if err != nil {
		return nil, err
	}
	if channel.ActiveReleaseID == nil {
		return upToDate("channel has no active release"), nil
	}

	release, err := s.releases.GetByID(ctx, *channel.ActiveReleaseID)
	if err != nil {
		return nil, err
	}

	if release.Status != model.ReleaseStatusActive {
		return upToDate(fmt.Sprintf("release is %s", release.Status)), nil
	}
	if release.BundleHash == nil || release.BundleRef == nil {
		return upToDate("release has no bundle"), nil
	}
	if req.CurrentHash != "" && req.CurrentHash == *release.BundleHash {
		return upToDate("already on latest bundle"), nil
	}

	ok, err := versionInRange(req.AppVersion, release.MinAppVersion, release.MaxAppVersion)
	if err != nil {
		return nil, NewError(model.CodeValidation, "parse app version %q: %v", req.AppVersion, err)
	}
	if !ok {
		return upToDate("app version outside release constraints"), nil
	}

	if bucket >= release.RolloutPercent {
		return upToDate("device not in rollout population"), nil
	}

	return &CheckResult{
		UpdateAvailable: true,
		ReleaseID:       release.ID,
		Version:         release.Version,
		BundleHash:      *release.BundleHash,
		BundleSize:      release.BundleSize,
		DownloadURL:     fmt.Sprintf("/api/v1/device/bundles/%s/%s", release.AppID, *release.BundleHash),
	}, nil
}

func (s *CheckService) recordCheck(ctx context.Context, req CheckRequest, bucket int) error {
	now := time.Now()
	_, err := s.db.Exec(ctx,
		`INSERT INTO device_update_records
		   (device_id, app_id, app_version, current_hash, pending_verification, rollout_bucket,
		    last_check_at, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), false, $5, $6, $6, $6)
		 ON CONFLICT (device_id, app_id) DO UPDATE SET
		   app_version = EXCLUDED.app_version,
		   current_hash = EXCLUDED.current_hash,
		   last_check_at = EXCLUDED.last_check_at,
		   updated_at = EXCLUDED.updated_at`,
		req.DeviceID, req.AppID, req.AppVersion, req.CurrentHash, bucket, now,
	)
	if err != nil {
		return fmt.Errorf("upsert device update record: %w", err)
	}
	return nil
}

func upToDate(reason string) *CheckResult {
	return &CheckResult{UpdateAvailable: false, Reason: reason}
}

// versionInRange checks the device app version against optional min/max
// constraints. min is inclusive, max is inclusive; nil means unbounded.
func versionInRange(appVersion string, min, max *string) (bool, error) {
	v, err := goversion.NewVersion(appVersion)
	if err != nil {
		return false, err
	}
	if min != nil && *min != "" {
		minV, err := goversion.NewVersion(*min)
		if err != nil {
			return false, fmt.Errorf("min constraint: %w", err)
		}
		if v.LessThan(minV) {
			return false, nil
		}
	}
	if max != nil && *max != "" {
		maxV, err := goversion.NewVersion(*max)
		if err != nil {
			return false, fmt.Errorf("max constraint: %w", err)
		}
		if v.GreaterThan(maxV) {
			return false, nil
		}
	}
	return true, nil
}
