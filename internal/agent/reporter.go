package agent

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Reporter sends telemetry best-effort with retries. A device that cannot
// reach the server keeps updating; telemetry loss is acceptable, blocking
// the updater on it is not.
type Reporter struct {
	client ServerClient
	logger zerolog.Logger
}

func NewReporter(client ServerClient, logger zerolog.Logger) *Reporter {
	return &Reporter{
		client: client,
		logger: logger.With().Str("component", "reporter").Logger(),
	}
}

// Report sends the event, retrying transient failures with exponential
// backoff for up to 30 seconds, then gives up.
func (r *Reporter) Report(ctx context.Context, event TelemetryEvent) {
	if event.ReportedAt.IsZero() {
		event.ReportedAt = time.Now()
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		return r.client.ReportTelemetry(ctx, event)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		r.logger.Warn().Err(err).Str("type", event.Type).Msg("telemetry dropped after retries")
	}
}
