package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bundlenudge/bundlenudge/internal/model"
)

func telemetryEvent(typ string) *model.TelemetryEvent {
	releaseID := "rel-1"
	return &model.TelemetryEvent{
		DeviceID:   "device-42",
		AppID:      "app-1",
		ReleaseID:  &releaseID,
		Type:       typ,
		ReportedAt: time.Now(),
	}
}

func TestTelemetryIngest_StoresAndBroadcasts(t *testing.T) {
	db := &mockDB{}
	hub := &mockBroadcaster{}
	svc := NewTelemetryService(db, hub, zerolog.Nop())

	db.On("Exec", mock.Anything, sqlContains("INSERT INTO telemetry_events"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)

	event := telemetryEvent(model.EventUpdateApplied)
	err := svc.Ingest(context.Background(), event)
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID, "ingest assigns an id when the device did not")
	require.Len(t, hub.calls, 1)
	assert.Equal(t, "telemetry", hub.calls[0].eventType)
	assert.Equal(t, "release", hub.calls[0].resource)
	assert.Equal(t, "rel-1", hub.calls[0].id)
	db.AssertExpectations(t)
}

func TestTelemetryIngest_UnknownType_Rejected(t *testing.T) {
	db := &mockDB{}
	hub := &mockBroadcaster{}
	svc := NewTelemetryService(db, hub, zerolog.Nop())

	err := svc.Ingest(context.Background(), telemetryEvent("made_up_event"))
	require.Error(t, err)
	assert.Equal(t, model.CodeValidation, ErrCode(err))

	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, hub.calls)
}

func TestTelemetryIngest_StoreFailure_StillBroadcasts(t *testing.T) {
	db := &mockDB{}
	hub := &mockBroadcaster{}
	svc := NewTelemetryService(db, hub, zerolog.Nop())

	db.On("Exec", mock.Anything, sqlContains("INSERT INTO telemetry_events"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := svc.Ingest(context.Background(), telemetryEvent(model.EventCrash))
	require.NoError(t, err, "storage failure must not bounce the device")
	assert.Len(t, hub.calls, 1)
}

func TestTelemetryIngest_NoRelease_NoBroadcast(t *testing.T) {
	db := &mockDB{}
	hub := &mockBroadcaster{}
	svc := NewTelemetryService(db, hub, zerolog.Nop())

	db.On("Exec", mock.Anything, sqlContains("INSERT INTO telemetry_events"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)

	event := telemetryEvent(model.EventRouteSuccess)
	event.ReleaseID = nil
	err := svc.Ingest(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, hub.calls)
}
