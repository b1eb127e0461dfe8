package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bundlenudge/bundlenudge/internal/model"
	"github.com/bundlenudge/bundlenudge/internal/platform"
)

// Broadcaster fans a status event out to realtime subscribers. Implemented
// by the hub; a no-op in tests.
type Broadcaster interface {
	Broadcast(eventType, resource, id string, data any) int
}

// TelemetryService ingests fire-and-forget device events. Storage and
// fan-out failures are logged, never surfaced to the reporting device.
type TelemetryService struct {
	db     DB
	hub    Broadcaster
	logger zerolog.Logger
}

func NewTelemetryService(db DB, hub Broadcaster, logger zerolog.Logger) *TelemetryService {
	return &TelemetryService{
		db:     db,
		hub:    hub,
		logger: logger.With().Str("component", "telemetry").Logger(),
	}
}

// Ingest validates the event type, stores the event, and fans it out to
// subscribers of the release. Best-effort by contract: the only hard failure
// is an unknown event type.
func (s *TelemetryService) Ingest(ctx context.Context, event *model.TelemetryEvent) error {
	if !model.ValidEventType(event.Type) {
		return NewError(model.CodeValidation, "unknown telemetry event type %q", event.Type)
	}
	if event.ID == "" {
		event.ID = platform.NewID()
	}

	if err := s.store(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("type", event.Type).Str("device_id", event.DeviceID).
			Msg("store telemetry event failed")
	}

	if event.ReleaseID != nil {
		delivered := s.hub.Broadcast("telemetry", "release", *event.ReleaseID, event)
		s.logger.Debug().Str("type", event.Type).Int("delivered", delivered).Msg("telemetry fanned out")
	}
	return nil
}

func (s *TelemetryService) store(ctx context.Context, event *model.TelemetryEvent) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO telemetry_events (id, device_id, app_id, release_id, type, payload, reported_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.DeviceID, event.AppID, event.ReleaseID, event.Type, event.Payload, event.ReportedAt,
	)
	if err != nil {
		return fmt.Errorf("insert telemetry event: %w", err)
	}
	return nil
}

// ListByRelease returns recent events for a release, newest first.
func (s *TelemetryService) ListByRelease(ctx context.Context, releaseID string, limit int) ([]model.TelemetryEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, device_id, app_id, release_id, type, payload, reported_at, created_at
		 FROM telemetry_events WHERE release_id = $1 ORDER BY created_at DESC LIMIT $2`,
		releaseID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list telemetry events: %w", err)
	}
	defer rows.Close()

	var events []model.TelemetryEvent
	for rows.Next() {
		var e model.TelemetryEvent
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.AppID, &e.ReleaseID, &e.Type, &e.Payload, &e.ReportedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan telemetry event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry events: %w", err)
	}
	return events, nil
}
