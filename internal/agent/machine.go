package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bundlenudge/bundlenudge/internal/bundle"
)

// Agent update statuses.
const (
	StatusIdle            = "idle"
	StatusChecking        = "checking"
	StatusUpdateAvailable = "update_available"
	StatusDownloading     = "downloading"
	StatusInstalling      = "installing"
	StatusPending         = "pending_verification"
	StatusCommitted       = "committed"
	StatusRolledBack      = "rolled_back"
)

var (
	// ErrUpdateInFlight is returned when an update cycle is already running.
	ErrUpdateInFlight = errors.New("update already in flight")

	// ErrRollbackUnavailable is returned when there is no previous
	// generation to fall back to.
	ErrRollbackUnavailable = errors.New("no previous generation to roll back to")
)

// maxPendingAge is how long an update may sit unverified before the agent
// assumes verification will never conclude and rolls back.
const maxPendingAge = 30 * time.Minute

// Updater drives the device update cycle: check, download, verify the hash,
// apply, then hold the update pending until the verifier rules on it.
type Updater struct {
	cfg      *Config
	client   ServerClient
	store    *StateStore
	verifier Verifier
	reporter *Reporter
	logger   zerolog.Logger

	mu       sync.Mutex
	state    *UpdateState
	inFlight bool
}

func NewUpdater(cfg *Config, client ServerClient, store *StateStore, verifier Verifier, reporter *Reporter, logger zerolog.Logger) (*Updater, error) {
	state, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Updater{
		cfg:      cfg,
		client:   client,
		store:    store,
		verifier: verifier,
		reporter: reporter,
		logger:   logger.With().Str("component", "updater").Logger(),
		state:    state,
	}, nil
}

// State returns a copy of the current update state.
func (u *Updater) State() UpdateState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return *u.state
}

// Recover inspects the persisted state at startup. A pending flag found here
// means the app died before the last update was committed, which counts as a
// failed verification: the agent rolls back before anything else runs.
func (u *Updater) Recover(ctx context.Context) error {
	u.mu.Lock()
	pending := u.state.Pending()
	var age time.Duration
	if pending {
		age = time.Since(*u.state.PendingSince)
	}
	u.mu.Unlock()

	if !pending {
		return nil
	}

	reason := "app did not survive verification"
	if age > maxPendingAge {
		reason = fmt.Sprintf("update pending for %s without verdict", age.Round(time.Minute))
	}
	u.logger.Warn().Str("reason", reason).Msg("uncommitted update found at startup, rolling back")

	if err := u.Rollback(ctx, reason); err != nil {
		if errors.Is(err, ErrRollbackUnavailable) {
			// First-ever update crashed and there is nothing to return
			// to. Clear the flag so the device isn't wedged.
			return u.clearPending()
		}
		return err
	}
	return nil
}

// Run checks on the configured interval until ctx ends.
func (u *Updater) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(u.cfg.CheckInterval))
	defer ticker.Stop()

	for {
		if err := u.CheckAndApply(ctx); err != nil && !errors.Is(err, ErrUpdateInFlight) {
			u.logger.Warn().Err(err).Msg("update cycle failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CheckAndApply runs one full update cycle. Only one cycle runs at a time;
// concurrent callers get ErrUpdateInFlight.
func (u *Updater) CheckAndApply(ctx context.Context) error {
	u.mu.Lock()
	if u.inFlight {
		u.mu.Unlock()
		return ErrUpdateInFlight
	}
	u.inFlight = true
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.inFlight = false
		u.mu.Unlock()
	}()

	result, err := u.check(ctx)
	if err != nil {
		return err
	}
	if !result.UpdateAvailable {
		u.logger.Debug().Str("reason", result.Reason).Msg("up to date")
		return u.setStatus(StatusIdle)
	}
	if err := u.setStatus(StatusUpdateAvailable); err != nil {
		return err
	}

	data, err := u.download(ctx, result)
	if err != nil {
		return err
	}

	if err := u.apply(result, data); err != nil {
		return err
	}

	return u.verify(ctx, result)
}

func (u *Updater) check(ctx context.Context) (*CheckResult, error) {
	if err := u.setStatus(StatusChecking); err != nil {
		return nil, err
	}

	u.mu.Lock()
	req := CheckRequest{
		DeviceID:   u.state.DeviceID,
		AppID:      u.cfg.AppID,
		Channel:    u.cfg.Channel,
		AppVersion: u.cfg.AppVersion,
	}
	if u.state.Current != nil {
		req.CurrentHash = u.state.Current.Hash
	}
	u.mu.Unlock()

	result, err := u.client.Check(ctx, req)
	if err != nil {
		u.setStatus(StatusIdle)
		return nil, fmt.Errorf("check for update: %w", err)
	}
	return result, nil
}

// download fetches the bundle and verifies its content hash. A mismatch
// discards the payload; nothing unverified ever reaches the filesystem as a
// bootable generation.
func (u *Updater) download(ctx context.Context, result *CheckResult) ([]byte, error) {
	if err := u.setStatus(StatusDownloading); err != nil {
		return nil, err
	}

	data, err := u.client.Download(ctx, result.DownloadURL)
	if err != nil {
		u.setStatus(StatusIdle)
		return nil, err
	}

	if !bundle.VerifyHash(data, result.BundleHash) {
		// The release is still out there; stay in update_available so the
		// next cycle retries the download without a fresh check.
		u.setStatus(StatusUpdateAvailable)
		u.logger.Error().Str("release_id", result.ReleaseID).Msg("bundle hash mismatch, discarding")
		return nil, fmt.Errorf("bundle %s failed hash verification", result.ReleaseID)
	}
	return data, nil
}

// apply writes the new generation to disk and flips the state to pending.
// The previous generation is kept until the verifier commits.
func (u *Updater) apply(result *CheckResult, data []byte) error {
	if err := u.setStatus(StatusInstalling); err != nil {
		return err
	}

	path := filepath.Join(u.cfg.StateDir, "bundles", result.ReleaseID+".bundle")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}

	now := time.Now()
	u.mu.Lock()
	defer u.mu.Unlock()

	u.state.Previous = u.state.Current
	u.state.Current = &Generation{
		ReleaseID: result.ReleaseID,
		Version:   result.Version,
		Hash:      result.BundleHash,
		Path:      path,
	}
	u.state.PendingSince = &now
	u.state.Status = StatusPending
	return u.store.Save(u.state)
}

func (u *Updater) verify(ctx context.Context, result *CheckResult) error {
	u.logger.Info().Str("release_id", result.ReleaseID).Str("version", result.Version).
		Msg("update applied, verification window open")

	if u.verifier.Verify(ctx) == VerdictHealthy {
		return u.Commit(ctx)
	}
	return u.Rollback(ctx, "verification failed")
}

// Commit finalizes the pending update: the previous generation is removed
// and the pending flag cleared.
func (u *Updater) Commit(ctx context.Context) error {
	u.mu.Lock()
	if u.state.Previous != nil && u.state.Previous.Path != "" {
		if err := os.Remove(u.state.Previous.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			u.logger.Warn().Err(err).Str("path", u.state.Previous.Path).Msg("remove previous generation")
		}
	}
	u.state.Previous = nil
	u.state.PendingSince = nil
	u.state.Status = StatusCommitted
	err := u.store.Save(u.state)
	releaseID := ""
	if u.state.Current != nil {
		releaseID = u.state.Current.ReleaseID
	}
	deviceID := u.state.DeviceID
	u.mu.Unlock()
	if err != nil {
		return err
	}

	u.logger.Info().Str("release_id", releaseID).Msg("update committed")
	u.reporter.Report(ctx, TelemetryEvent{
		DeviceID:  deviceID,
		AppID:     u.cfg.AppID,
		ReleaseID: &releaseID,
		Type:      "update_applied",
	})
	return nil
}

// Rollback returns the device to the previous generation.
func (u *Updater) Rollback(ctx context.Context, reason string) error {
	u.mu.Lock()
	if u.state.Previous == nil {
		u.mu.Unlock()
		return ErrRollbackUnavailable
	}

	bad := u.state.Current
	u.state.Current = u.state.Previous
	u.state.Previous = nil
	u.state.PendingSince = nil
	u.state.Status = StatusRolledBack
	err := u.store.Save(u.state)
	deviceID := u.state.DeviceID
	u.mu.Unlock()
	if err != nil {
		return err
	}

	if bad != nil && bad.Path != "" {
		if rmErr := os.Remove(bad.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			u.logger.Warn().Err(rmErr).Str("path", bad.Path).Msg("remove rolled back generation")
		}
	}

	var releaseID *string
	if bad != nil {
		releaseID = &bad.ReleaseID
	}
	u.logger.Warn().Str("reason", reason).Msg("rolled back to previous generation")
	u.reporter.Report(ctx, TelemetryEvent{
		DeviceID:  deviceID,
		AppID:     u.cfg.AppID,
		ReleaseID: releaseID,
		Type:      "rollback_triggered",
		Payload:   map[string]any{"reason": reason},
	})
	return nil
}

// ReportEvent feeds an app runtime signal into the verifier and forwards it
// to the server.
func (u *Updater) ReportEvent(ctx context.Context, eventType string) {
	u.verifier.ReportEvent(eventType)

	u.mu.Lock()
	deviceID := u.state.DeviceID
	var releaseID *string
	if u.state.Current != nil {
		releaseID = &u.state.Current.ReleaseID
	}
	u.mu.Unlock()

	u.reporter.Report(ctx, TelemetryEvent{
		DeviceID:  deviceID,
		AppID:     u.cfg.AppID,
		ReleaseID: releaseID,
		Type:      eventType,
	})
}

func (u *Updater) setStatus(status string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state.Status = status
	return u.store.Save(u.state)
}

func (u *Updater) clearPending() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state.PendingSince = nil
	u.state.Status = StatusIdle
	return u.store.Save(u.state)
}
