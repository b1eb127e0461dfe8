package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bundlenudge/bundlenudge/internal/model"
)

// ChannelService manages distribution channels. The active release pointer
// is only ever mutated by ReleaseService.Promote and Rollback.
type ChannelService struct {
	db DB
}

func NewChannelService(db DB) *ChannelService {
	return &ChannelService{db: db}
}

func (s *ChannelService) Create(ctx context.Context, channel *model.Channel) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO channels (id, app_id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		channel.ID, channel.AppID, channel.Name, channel.CreatedAt, channel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}
	return nil
}

func (s *ChannelService) GetByID(ctx context.Context, id string) (*model.Channel, error) {
	var c model.Channel
	err := s.db.QueryRow(ctx,
		`SELECT id, app_id, name, active_release_id, created_at, updated_at
		 FROM channels WHERE id = $1`, id,
	).Scan(&c.ID, &c.AppID, &c.Name, &c.ActiveReleaseID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewError(model.CodeNotFound, "channel %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %s: %w", id, err)
	}
	return &c, nil
}

// GetByName resolves a channel by app and name, the lookup devices use.
func (s *ChannelService) GetByName(ctx context.Context, appID, name string) (*model.Channel, error) {
	var c model.Channel
	err := s.db.QueryRow(ctx,
		`SELECT id, app_id, name, active_release_id, created_at, updated_at
		 FROM channels WHERE app_id = $1 AND name = $2`, appID, name,
	).Scan(&c.ID, &c.AppID, &c.Name, &c.ActiveReleaseID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewError(model.CodeNotFound, "channel %s/%s not found", appID, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %s/%s: %w", appID, name, err)
	}
	return &c, nil
}

func (s *ChannelService) ListByApp(ctx context.Context, appID string) ([]model.Channel, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, app_id, name, active_release_id, created_at, updated_at
		 FROM channels WHERE app_id = $1 ORDER BY name`, appID,
	)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []model.Channel
	for rows.Next() {
		var c model.Channel
		if err := rows.Scan(&c.ID, &c.AppID, &c.Name, &c.ActiveReleaseID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}
