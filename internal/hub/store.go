package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "hub:session:"
	sessionTTL       = 24 * time.Hour
)

// Snapshot is the persisted view of a connected session. It is observational
// state for operators; the live subscription set stays in process memory.
type Snapshot struct {
	ConnID        string    `json:"conn_id"`
	Principal     string    `json:"principal,omitempty"`
	Subscriptions []string  `json:"subscriptions"`
	ConnectedAt   time.Time `json:"connected_at"`
}

// SessionStore keeps session snapshots in Redis so connected-client state
// survives an API restart long enough to be inspected.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionKey(connID string) string {
	return sessionKeyPrefix + connID
}

func (s *SessionStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(snap.ConnID), data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("save session snapshot %s: %w", snap.ConnID, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, connID string) error {
	if err := s.rdb.Del(ctx, sessionKey(connID)).Err(); err != nil {
		return fmt.Errorf("delete session snapshot %s: %w", connID, err)
	}
	return nil
}

// List scans for all persisted session snapshots.
func (s *SessionStore) List(ctx context.Context) ([]Snapshot, error) {
	var snaps []Snapshot
	iter := s.rdb.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("read session snapshot %s: %w", iter.Val(), err)
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan session snapshots: %w", err)
	}
	return snaps, nil
}
