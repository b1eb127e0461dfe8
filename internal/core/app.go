package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bundlenudge/bundlenudge/internal/model"
)

// AppService manages the minimal app registry.
type AppService struct {
	db DB
}

func NewAppService(db DB) *AppService {
	return &AppService{db: db}
}

func (s *AppService) Create(ctx context.Context, app *model.App) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO apps (id, name, platform, org_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		app.ID, app.Name, app.Platform, app.OrgID, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	return nil
}

func (s *AppService) GetByID(ctx context.Context, id string) (*model.App, error) {
	var a model.App
	err := s.db.QueryRow(ctx,
		`SELECT id, name, platform, org_id, created_at, updated_at FROM apps WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.Platform, &a.OrgID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewError(model.CodeNotFound, "app %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get app %s: %w", id, err)
	}
	return &a, nil
}

func (s *AppService) ListByOrg(ctx context.Context, orgID string) ([]model.App, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, platform, org_id, created_at, updated_at
		 FROM apps WHERE org_id = $1 ORDER BY id`, orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()

	var apps []model.App
	for rows.Next() {
		var a model.App
		if err := rows.Scan(&a.ID, &a.Name, &a.Platform, &a.OrgID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate apps: %w", err)
	}
	return apps, nil
}
