package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Generation is one installed bundle the agent can boot.
type Generation struct {
	ReleaseID string `json:"release_id"`
	Version   string `json:"version"`
	Hash      string `json:"hash"`
	Path      string `json:"path"`
}

// UpdateState is the durable agent state. It survives process crashes; the
// pending flag in particular is how a crash during verification is detected
// on the next start.
type UpdateState struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`

	Current  *Generation `json:"current,omitempty"`
	Previous *Generation `json:"previous,omitempty"`

	// PendingSince is set while an applied update awaits verification. A
	// state file loaded with this flag set means the app died before the
	// update was committed.
	PendingSince *time.Time `json:"pending_since,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Pending reports whether an uncommitted update is awaiting verification.
func (s *UpdateState) Pending() bool {
	return s.PendingSince != nil
}

// StateStore persists UpdateState as a JSON file. Writes go through a temp
// file and rename so a crash mid-write never corrupts the state.
type StateStore struct {
	path string
}

func NewStateStore(dir string) *StateStore {
	return &StateStore{path: filepath.Join(dir, "update_state.json")}
}

// Load reads the state file. A missing file yields a fresh state with a new
// stable device id; the id is minted exactly once per install.
func (s *StateStore) Load() (*UpdateState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		state := &UpdateState{
			DeviceID:  uuid.New().String(),
			Status:    StatusIdle,
			UpdatedAt: time.Now(),
		}
		if err := s.Save(state); err != nil {
			return nil, err
		}
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state UpdateState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return &state, nil
}

// Save writes the state atomically.
func (s *StateStore) Save(state *UpdateState) error {
	state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
