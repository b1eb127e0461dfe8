package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bundlenudge/bundlenudge/internal/model"
)

const releaseColumns = `id, app_id, version, bundle_hash, bundle_ref, bundle_size,
	rollout_percent, min_app_version, max_app_version, status, channel_id,
	rollback_reason, created_at, updated_at, activated_at`

// ReleaseService manages the release lifecycle and the transactional
// promote/rollback operations against channels.
type ReleaseService struct {
	db DB
}

func NewReleaseService(db DB) *ReleaseService {
	return &ReleaseService{db: db}
}

func (s *ReleaseService) Create(ctx context.Context, release *model.Release) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO releases (id, app_id, version, bundle_hash, bundle_ref, bundle_size,
		   rollout_percent, min_app_version, max_app_version, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		release.ID, release.AppID, release.Version, release.BundleHash, release.BundleRef,
		release.BundleSize, release.RolloutPercent, release.MinAppVersion, release.MaxAppVersion,
		release.Status, release.CreatedAt, release.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create release: %w", err)
	}
	return nil
}

func (s *ReleaseService) GetByID(ctx context.Context, id string) (*model.Release, error) {
	row := s.db.QueryRow(ctx, `SELECT `+releaseColumns+` FROM releases WHERE id = $1`, id)
	release, err := scanRelease(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewError(model.CodeNotFound, "release %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get release %s: %w", id, err)
	}
	return release, nil
}

func (s *ReleaseService) ListByApp(ctx context.Context, appID string) ([]model.Release, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+releaseColumns+` FROM releases WHERE app_id = $1 ORDER BY created_at DESC`, appID,
	)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()

	var releases []model.Release
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		releases = append(releases, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate releases: %w", err)
	}
	return releases, nil
}

// Activate moves a draft or paused release to active.
func (s *ReleaseService) Activate(ctx context.Context, id string) (*model.Release, error) {
	return s.transition(ctx, id, model.ReleaseStatusActive)
}

// Pause suspends an active release. Paused releases are not served to devices.
func (s *ReleaseService) Pause(ctx context.Context, id string) (*model.Release, error) {
	return s.transition(ctx, id, model.ReleaseStatusPaused)
}

// Resume reactivates a paused release.
func (s *ReleaseService) Resume(ctx context.Context, id string) (*model.Release, error) {
	return s.transition(ctx, id, model.ReleaseStatusActive)
}

func (s *ReleaseService) transition(ctx context.Context, id, target string) (*model.Release, error) {
	release, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !release.CanTransitionTo(target) {
		return nil, NewError(model.CodeInvalidReleaseStatus,
			"release %s is %s, cannot move to %s", id, release.Status, target)
	}

	now := time.Now()
	var activatedAt *time.Time
	if target == model.ReleaseStatusActive {
		activatedAt = &now
	} else {
		activatedAt = release.ActivatedAt
	}

	_, err = s.db.Exec(ctx,
		`UPDATE releases SET status = $1, activated_at = $2, updated_at = now() WHERE id = $3`,
		target, activatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("transition release %s to %s: %w", id, target, err)
	}

	release.Status = target
	release.ActivatedAt = activatedAt
	release.UpdatedAt = now
	return release, nil
}

// UpdateRollout changes the staged rollout percentage of an active release.
// Buckets are stable per device, so raising the percentage only ever grows
// the eligible population.
func (s *ReleaseService) UpdateRollout(ctx context.Context, id string, percent int) (*model.Release, error) {
	if percent < 0 || percent > 100 {
		return nil, NewError(model.CodeValidation, "rollout percent %d out of range [0,100]", percent)
	}

	release, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if release.Status != model.ReleaseStatusActive {
		return nil, NewError(model.CodeInvalidReleaseStatus,
			"release %s is %s, rollout can only change on active releases", id, release.Status)
	}

	_, err = s.db.Exec(ctx,
		`UPDATE releases SET rollout_percent = $1, updated_at = now() WHERE id = $2`,
		percent, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update rollout for release %s: %w", id, err)
	}

	release.RolloutPercent = percent
	return release, nil
}

// Promote points a channel at a release. The release must be active and must
// carry a bundle; both checks fail with distinct codes so operators can tell
// which precondition they missed. The channel pointer, promotion history, and
// release channel assignment move in one transaction, serialized against
// concurrent promotes and rollbacks by the channel row lock.
func (s *ReleaseService) Promote(ctx context.Context, releaseID, channelID string) (*model.Release, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin promote: %w", err)
	}
	defer tx.Rollback(ctx)

	var channelAppID string
	err = tx.QueryRow(ctx,
		`SELECT app_id FROM channels WHERE id = $1 FOR UPDATE`, channelID,
	).Scan(&channelAppID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewError(model.CodeNotFound, "channel %s not found", channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock channel %s: %w", channelID, err)
	}

	row := tx.QueryRow(ctx, `SELECT `+releaseColumns+` FROM releases WHERE id = $1 FOR UPDATE`, releaseID)
	release, err := scanRelease(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewError(model.CodeNotFound, "release %s not found", releaseID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock release %s: %w", releaseID, err)
	}

	if release.AppID != channelAppID {
		return nil, NewError(model.CodeValidation,
			"release %s belongs to app %s, channel %s belongs to app %s",
			releaseID, release.AppID, channelID, channelAppID)
	}
	if release.Status != model.ReleaseStatusActive {
		return nil, NewError(model.CodeInvalidReleaseStatus,
			"release %s is %s, only active releases can be promoted", releaseID, release.Status)
	}
	if release.BundleRef == nil || *release.BundleRef == "" {
		return nil, NewError(model.CodeMissingBundle,
			"release %s has no bundle and cannot be promoted", releaseID)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE channels SET active_release_id = $1, updated_at = now() WHERE id = $2`,
		releaseID, channelID,
	); err != nil {
		return nil, fmt.Errorf("point channel %s at release %s: %w", channelID, releaseID, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO channel_promotions (channel_id, release_id) VALUES ($1, $2)`,
		channelID, releaseID,
	); err != nil {
		return nil, fmt.Errorf("record promotion: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE releases SET channel_id = $1, updated_at = now() WHERE id = $2`,
		channelID, releaseID,
	); err != nil {
		return nil, fmt.Errorf("assign release %s to channel %s: %w", releaseID, channelID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit promote: %w", err)
	}

	release.ChannelID = &channelID
	return release, nil
}

// Rollback marks the release rolled_back with the supplied reason and, when
// the release is a channel's active release, repoints the channel at the most
// recent prior promotion that is itself not rolled back. The pointer never
// stays on a rolled-back release.
func (s *ReleaseService) Rollback(ctx context.Context, releaseID, reason string) (*model.Release, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin rollback: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+releaseColumns+` FROM releases WHERE id = $1 FOR UPDATE`, releaseID)
	release, err := scanRelease(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewError(model.CodeNotFound, "release %s not found", releaseID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock release %s: %w", releaseID, err)
	}

	if !release.CanTransitionTo(model.ReleaseStatusRolledBack) {
		return nil, NewError(model.CodeInvalidReleaseStatus,
			"release %s is %s and cannot be rolled back", releaseID, release.Status)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE releases SET status = $1, rollback_reason = $2, updated_at = now() WHERE id = $3`,
		model.ReleaseStatusRolledBack, reason, releaseID,
	); err != nil {
		return nil, fmt.Errorf("mark release %s rolled back: %w", releaseID, err)
	}

	if release.ChannelID != nil {
		if err := s.repointChannel(ctx, tx, *release.ChannelID, releaseID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit rollback: %w", err)
	}

	release.Status = model.ReleaseStatusRolledBack
	release.RollbackReason = &reason
	return release, nil
}

// repointChannel moves the channel pointer off the rolled-back release and
// onto the previous healthy promotion, or NULL when none exists.
func (s *ReleaseService) repointChannel(ctx context.Context, tx pgx.Tx, channelID, rolledBackID string) error {
	var currentActive *string
	err := tx.QueryRow(ctx,
		`SELECT active_release_id FROM channels WHERE id = $1 FOR UPDATE`, channelID,
	).Scan(&currentActive)
	if err != nil {
		return fmt.Errorf("lock channel %s: %w", channelID, err)
	}
	if currentActive == nil || *currentActive != rolledBackID {
		// Channel already points elsewhere; nothing to repoint.
		return nil
	}

	var previousID *string
	err = tx.QueryRow(ctx,
		`SELECT cp.release_id
		 FROM channel_promotions cp
		 JOIN releases r ON r.id = cp.release_id
		 WHERE cp.channel_id = $1 AND cp.release_id <> $2 AND r.status <> $3
		 ORDER BY cp.id DESC LIMIT 1`,
		channelID, rolledBackID, model.ReleaseStatusRolledBack,
	).Scan(&previousID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("find previous release for channel %s: %w", channelID, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE channels SET active_release_id = $1, updated_at = now() WHERE id = $2`,
		previousID, channelID,
	); err != nil {
		return fmt.Errorf("repoint channel %s: %w", channelID, err)
	}
	return nil
}

func scanRelease(row interface{ Scan(dest ...any) error }) (*model.Release, error) {
	var r model.Release
	err := row.Scan(
		&r.ID, &r.AppID, &r.Version, &r.BundleHash, &r.BundleRef, &r.BundleSize,
		&r.RolloutPercent, &r.MinAppVersion, &r.MaxAppVersion, &r.Status, &r.ChannelID,
		&r.RollbackReason, &r.CreatedAt, &r.UpdatedAt, &r.ActivatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
