package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bundlenudge/bundlenudge/internal/model"
)

func sqlContains(substr string) any {
	return mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, substr) })
}

func strPtr(s string) *string { return &s }

// releaseRow returns a mockRow that scans the given release.
func releaseRow(r model.Release) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = r.ID
		*(dest[1].(*string)) = r.AppID
		*(dest[2].(*string)) = r.Version
		*(dest[3].(**string)) = r.BundleHash
		*(dest[4].(**string)) = r.BundleRef
		*(dest[5].(*int64)) = r.BundleSize
		*(dest[6].(*int)) = r.RolloutPercent
		*(dest[7].(**string)) = r.MinAppVersion
		*(dest[8].(**string)) = r.MaxAppVersion
		*(dest[9].(*string)) = r.Status
		*(dest[10].(**string)) = r.ChannelID
		*(dest[11].(**string)) = r.RollbackReason
		*(dest[12].(*time.Time)) = r.CreatedAt
		*(dest[13].(*time.Time)) = r.UpdatedAt
		*(dest[14].(**time.Time)) = r.ActivatedAt
		return nil
	}}
}

func activeRelease(id string) model.Release {
	now := time.Now()
	return model.Release{
		ID:             id,
		AppID:          "app-1",
		Version:        "1.2.0",
		BundleHash:     strPtr("sha256:abc"),
		BundleRef:      strPtr("s3://bundles/apps/app-1/bundles/abc.bundle"),
		BundleSize:     1024,
		RolloutPercent: 100,
		Status:         model.ReleaseStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ---------- Create / Get ----------

func TestReleaseService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewReleaseService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	release := activeRelease("rel-1")
	err := svc.Create(ctx, &release)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestReleaseService_GetByID_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewReleaseService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		return pgx.ErrNoRows
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := svc.GetByID(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, model.CodeNotFound, ErrCode(err))
}

// ---------- Lifecycle transitions ----------

func TestReleaseService_Activate_FromDraft(t *testing.T) {
	db := &mockDB{}
	svc := NewReleaseService(db)
	ctx := context.Background()

	draft := activeRelease("rel-1")
	draft.Status = model.ReleaseStatusDraft
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(releaseRow(draft))
	db.On("Exec", ctx, sqlContains("UPDATE releases SET status"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	release, err := svc.Activate(ctx, "rel-1")
	require.NoError(t, err)
	assert.Equal(t, model.ReleaseStatusActive, release.Status)
	require.NotNil(t, release.ActivatedAt)
	db.AssertExpectations(t)
}

func TestReleaseService_Pause_FromActive(t *testing.T) {
	db := &mockDB{}
	svc := NewReleaseService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(releaseRow(activeRelease("rel-1")))
	db.On("Exec", ctx, sqlContains("UPDATE releases SET status"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	release, err := svc.Pause(ctx, "rel-1")
	require.NoError(t, err)
	assert.Equal(t, model.ReleaseStatusPaused, release.Status)
}

func TestReleaseService_Pause_FromDraft_Rejected(t *testing.T) {
	db := &mockDB{}
	svc := NewReleaseService(db)
	ctx := context.Background()

	draft := activeRelease("rel-1")
	draft.Status = model.ReleaseStatusDraft
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(releaseRow(draft))

	_, err := svc.Pause(ctx, "rel-1")
	require.Error(t, err)
	assert.Equal(t, model.CodeInvalidReleaseStatus, ErrCode(err))
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestReleaseService_RolledBack_IsTerminal(t *testing.T) {
	rolled := activeRelease("rel-1")
	rolled.Status = model.ReleaseStatusRolledBack

	assert.False(t, rolled.CanTransitionTo(model.ReleaseStatusActive))
	assert.False(t, rolled.CanTransitionTo(model.ReleaseStatusPaused))
	assert.False(t, rolled.CanTransitionTo(model.ReleaseStatusRolledBack))
}

// ---------- UpdateRollout ----------

func TestReleaseService_UpdateRollout_OutOfRange(t *testing.T) {
	svc := NewReleaseService(&mockDB{})

	_, err := svc.UpdateRollout(context.Background(), "rel-1", 101)
	require.Error(t, err)
	assert.Equal(t, model.CodeValidation, ErrCode(err))
}

func TestReleaseService_UpdateRollout_RequiresActive(t *testing.T) {
	db := &mockDB{}
	svc := NewReleaseService(db)
	ctx := context.Background()

	paused := activeRelease("rel-1")
	paused.Status = model.ReleaseStatusPaused
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(releaseRow(paused))

	_, err := svc.UpdateRollout(ctx, "rel-1", 50)
	require.Error(t, err)
	assert.Equal(t, model.CodeInvalidReleaseStatus, ErrCode(err))
}

// ---------- Promote ----------

func TestReleaseService_Promote_Success(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{db: db}
	svc := NewReleaseService(db)
	ctx := context.Background()

	db.On("Begin", ctx).Return(tx, nil)
	db.On("QueryRow", ctx, sqlContains("FROM channels"), mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "app-1"
		return nil
	}})
	db.On("QueryRow", ctx, sqlContains("FROM releases"), mock.Anything).Return(releaseRow(activeRelease("rel-1")))
	db.On("Exec", ctx, sqlContains("UPDATE channels SET active_release_id"), mock.Anything).Return(pgconn.CommandTag{}, nil)
	db.On("Exec", ctx, sqlContains("INSERT INTO channel_promotions"), mock.Anything).Return(pgconn.CommandTag{}, nil)
	db.On("Exec", ctx, sqlContains("UPDATE releases SET channel_id"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	release, err := svc.Promote(ctx, "rel-1", "ch-1")
	require.NoError(t, err)
	require.NotNil(t, release.ChannelID)
	assert.Equal(t, "ch-1", *release.ChannelID)
	assert.Equal(t, 1, tx.commits)
	db.AssertExpectations(t)
}

func TestReleaseService_Promote_WrongStatus(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{db: db}
	svc := NewReleaseService(db)
	ctx := context.Background()

	paused := activeRelease("rel-1")
	paused.Status = model.ReleaseStatusPaused

	db.On("Begin", ctx).Return(tx, nil)
	db.On("QueryRow", ctx, sqlContains("FROM channels"), mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "app-1"
		return nil
	}})
	db.On("QueryRow", ctx, sqlContains("FROM releases"), mock.Anything).Return(releaseRow(paused))

	_, err := svc.Promote(ctx, "rel-1", "ch-1")
	require.Error(t, err)
	assert.Equal(t, model.CodeInvalidReleaseStatus, ErrCode(err))
	assert.Equal(t, 0, tx.commits, "failed promote must not commit")
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestReleaseService_Promote_MissingBundle(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{db: db}
	svc := NewReleaseService(db)
	ctx := context.Background()

	bare := activeRelease("rel-1")
	bare.BundleRef = nil
	bare.BundleHash = nil

	db.On("Begin", ctx).Return(tx, nil)
	db.On("QueryRow", ctx, sqlContains("FROM channels"), mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "app-1"
		return nil
	}})
	db.On("QueryRow", ctx, sqlContains("FROM releases"), mock.Anything).Return(releaseRow(bare))

	_, err := svc.Promote(ctx, "rel-1", "ch-1")
	require.Error(t, err)
	assert.Equal(t, model.CodeMissingBundle, ErrCode(err))
	assert.Equal(t, 0, tx.commits)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestReleaseService_Promote_ChannelNotFound(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{db: db}
	svc := NewReleaseService(db)
	ctx := context.Background()

	db.On("Begin", ctx).Return(tx, nil)
	db.On("QueryRow", ctx, sqlContains("FROM channels"), mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		return pgx.ErrNoRows
	}})

	_, err := svc.Promote(ctx, "rel-1", "missing")
	require.Error(t, err)
	assert.Equal(t, model.CodeNotFound, ErrCode(err))
}

func TestReleaseService_Promote_AppMismatch(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{db: db}
	svc := NewReleaseService(db)
	ctx := context.Background()

	db.On("Begin", ctx).Return(tx, nil)
	db.On("QueryRow", ctx, sqlContains("FROM channels"), mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "other-app"
		return nil
	}})
	db.On("QueryRow", ctx, sqlContains("FROM releases"), mock.Anything).Return(releaseRow(activeRelease("rel-1")))

	_, err := svc.Promote(ctx, "rel-1", "ch-1")
	require.Error(t, err)
	assert.Equal(t, model.CodeValidation, ErrCode(err))
}

// ---------- Rollback ----------

func TestReleaseService_Rollback_RepointsChannel(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{db: db}
	svc := NewReleaseService(db)
	ctx := context.Background()

	current := activeRelease("rel-2")
	current.ChannelID = strPtr("ch-1")

	db.On("Begin", ctx).Return(tx, nil)
	db.On("QueryRow", ctx, sqlContains("FROM releases"), mock.Anything).Return(releaseRow(current))
	db.On("Exec", ctx, sqlContains("UPDATE releases SET status"), mock.Anything).Return(pgconn.CommandTag{}, nil)
	db.On("QueryRow", ctx, sqlContains("SELECT active_release_id"), mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(**string)) = strPtr("rel-2")
		return nil
	}})
	db.On("QueryRow", ctx, sqlContains("FROM channel_promotions"), mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(**string)) = strPtr("rel-1")
		return nil
	}})
	db.On("Exec", ctx, sqlContains("UPDATE channels SET active_release_id"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	release, err := svc.Rollback(ctx, "rel-2", "crash spike on 1.2.0")
	require.NoError(t, err)
	assert.Equal(t, model.ReleaseStatusRolledBack, release.Status)
	require.NotNil(t, release.RollbackReason)
	assert.Equal(t, "crash spike on 1.2.0", *release.RollbackReason)
	assert.Equal(t, 1, tx.commits)
	db.AssertExpectations(t)
}

func TestReleaseService_Rollback_NoPreviousRelease_PointerCleared(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{db: db}
	svc := NewReleaseService(db)
	ctx := context.Background()

	current := activeRelease("rel-1")
	current.ChannelID = strPtr("ch-1")

	db.On("Begin", ctx).Return(tx, nil)
	db.On("QueryRow", ctx, sqlContains("FROM releases"), mock.Anything).Return(releaseRow(current))
	db.On("Exec", ctx, sqlContains("UPDATE releases SET status"), mock.Anything).Return(pgconn.CommandTag{}, nil)
	db.On("QueryRow", ctx, sqlContains("SELECT active_release_id"), mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(**string)) = strPtr("rel-1")
		return nil
	}})
	db.On("QueryRow", ctx, sqlContains("FROM channel_promotions"), mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		return pgx.ErrNoRows
	}})
	db.On("Exec", ctx, sqlContains("UPDATE channels SET active_release_id"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	release, err := svc.Rollback(ctx, "rel-1", "first release broken")
	require.NoError(t, err)
	assert.Equal(t, model.ReleaseStatusRolledBack, release.Status)
	assert.Equal(t, 1, tx.commits)
}

func TestReleaseService_Rollback_AlreadyRolledBack(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{db: db}
	svc := NewReleaseService(db)
	ctx := context.Background()

	rolled := activeRelease("rel-1")
	rolled.Status = model.ReleaseStatusRolledBack

	db.On("Begin", ctx).Return(tx, nil)
	db.On("QueryRow", ctx, sqlContains("FROM releases"), mock.Anything).Return(releaseRow(rolled))

	_, err := svc.Rollback(ctx, "rel-1", "again")
	require.Error(t, err)
	assert.Equal(t, model.CodeInvalidReleaseStatus, ErrCode(err))
	assert.Equal(t, 0, tx.commits)
}

func TestReleaseService_Rollback_BeginError(t *testing.T) {
	db := &mockDB{}
	svc := NewReleaseService(db)
	ctx := context.Background()

	db.On("Begin", ctx).Return(nil, errors.New("pool exhausted"))

	_, err := svc.Rollback(ctx, "rel-1", "reason")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin rollback")
}
