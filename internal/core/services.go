package core

import (
	"github.com/rs/zerolog"

	"github.com/bundlenudge/bundlenudge/internal/queue"
)

type Services struct {
	App       *AppService
	Release   *ReleaseService
	Channel   *ChannelService
	Check     *CheckService
	Telemetry *TelemetryService
	Upload    *UploadService
	APIKey    *APIKeyService
}

func NewServices(db DB, jobs JobStore, store BundleStore, router *queue.Router, hub Broadcaster, logger zerolog.Logger) *Services {
	releases := NewReleaseService(db)
	channels := NewChannelService(db)

	return &Services{
		App:       NewAppService(db),
		Release:   releases,
		Channel:   channels,
		Check:     NewCheckService(db, channels, releases, logger),
		Telemetry: NewTelemetryService(db, hub, logger),
		Upload:    NewUploadService(jobs, store, router, logger),
		APIKey:    NewAPIKeyService(db),
	}
}
