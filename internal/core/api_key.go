package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bundlenudge/bundlenudge/internal/model"
	"github.com/bundlenudge/bundlenudge/internal/platform"
)

// APIKey is an operator credential. The tier on the key is what routes
// uploads and selects the device verification strategy for the account.
type APIKey struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	OrgID     string     `json:"org_id"`
	Tier      string     `json:"tier"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// APIKeyService manages API keys. Only the SHA-256 hash of a key is stored.
type APIKeyService struct {
	db DB
}

func NewAPIKeyService(db DB) *APIKeyService {
	return &APIKeyService{db: db}
}

// Create generates a new API key, stores the hash, and returns the model along
// with the raw key string. The raw key must be shown to the operator exactly once.
func (s *APIKeyService) Create(ctx context.Context, name, orgID, tier string) (*APIKey, string, error) {
	if !model.ValidTier(tier) {
		return nil, "", NewError(model.CodeUnknownTier, "unknown tier %q", tier)
	}

	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}
	rawKey := "bn_" + hex.EncodeToString(rawBytes)

	hash := sha256.Sum256([]byte(rawKey))
	key := &APIKey{
		ID:        platform.NewID(),
		Name:      name,
		OrgID:     orgID,
		Tier:      tier,
		CreatedAt: time.Now(),
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, org_id, tier, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.Name, hex.EncodeToString(hash[:]), key.OrgID, key.Tier, key.CreatedAt,
	)
	if err != nil {
		return nil, "", fmt.Errorf("create api key: %w", err)
	}

	return key, rawKey, nil
}

// Revoke marks a key revoked; revoked keys fail authentication immediately.
func (s *APIKeyService) Revoke(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("revoke api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return NewError(model.CodeNotFound, "api key %s not found or already revoked", id)
	}
	return nil
}
