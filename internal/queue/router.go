package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/bundlenudge/bundlenudge/internal/model"
)

// ErrUnknownTier is returned when a job arrives with a tier the router has no
// lane for. The router fails closed: an unresolvable tier is rejected, never
// defaulted to some lane.
var ErrUnknownTier = errors.New("unknown account tier")

// Lane names. Each lane owns an independent concurrency budget so a surge in
// a lower tier cannot starve higher tiers.
const (
	LaneCritical = "critical"
	LaneStandard = "standard"
	LaneBulk     = "bulk"
)

var (
	laneDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upload_queue_dispatched_total",
			Help: "Upload jobs dispatched per lane",
		},
		[]string{"lane"},
	)
	laneActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upload_queue_active",
			Help: "Upload jobs currently running per lane",
		},
		[]string{"lane"},
	)
	laneRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upload_queue_rejected_total",
			Help: "Upload jobs rejected for an unresolvable tier",
		},
	)
)

// Job is a unit of work handed to the router. The router classifies and hands
// off; it never processes payloads itself.
type Job struct {
	ID   string
	Tier string
	Run  func(ctx context.Context)
}

type lane struct {
	name string
	sem  *semaphore.Weighted
}

// Router maps account tiers onto independent concurrency lanes.
type Router struct {
	logger zerolog.Logger
	lanes  map[string]*lane
	byTier map[string]*lane
}

// Budgets holds the per-lane concurrency budgets.
type Budgets struct {
	Critical int64
	Standard int64
	Bulk     int64
}

// DefaultBudgets matches production lane sizing.
func DefaultBudgets() Budgets {
	return Budgets{Critical: 8, Standard: 4, Bulk: 2}
}

// NewRouter builds the fixed tier→lane mapping: enterprise on the critical
// lane, team and pro on standard, free on bulk.
func NewRouter(logger zerolog.Logger, budgets Budgets) *Router {
	critical := &lane{name: LaneCritical, sem: semaphore.NewWeighted(budgets.Critical)}
	standard := &lane{name: LaneStandard, sem: semaphore.NewWeighted(budgets.Standard)}
	bulk := &lane{name: LaneBulk, sem: semaphore.NewWeighted(budgets.Bulk)}

	return &Router{
		logger: logger.With().Str("component", "queue-router").Logger(),
		lanes: map[string]*lane{
			LaneCritical: critical,
			LaneStandard: standard,
			LaneBulk:     bulk,
		},
		byTier: map[string]*lane{
			model.TierEnterprise: critical,
			model.TierTeam:       standard,
			model.TierPro:        standard,
			model.TierFree:       bulk,
		},
	}
}

// LaneFor resolves the lane name for a tier.
func (r *Router) LaneFor(tier string) (string, error) {
	l, ok := r.byTier[tier]
	if !ok {
		return "", fmt.Errorf("route tier %q: %w", tier, ErrUnknownTier)
	}
	return l.name, nil
}

// Dispatch classifies the job by tier and hands it to its lane. The call
// returns as soon as the job is accepted; the job runs on a goroutine once
// the lane has budget. Jobs in one lane never consume another lane's budget.
func (r *Router) Dispatch(ctx context.Context, job Job) error {
	l, ok := r.byTier[job.Tier]
	if !ok {
		laneRejected.Inc()
		return fmt.Errorf("dispatch job %s with tier %q: %w", job.ID, job.Tier, ErrUnknownTier)
	}

	laneDispatched.WithLabelValues(l.name).Inc()
	r.logger.Debug().Str("job_id", job.ID).Str("lane", l.name).Msg("job dispatched")

	go func() {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			r.logger.Warn().Err(err).Str("job_id", job.ID).Str("lane", l.name).Msg("lane acquire cancelled")
			return
		}
		defer l.sem.Release(1)

		laneActive.WithLabelValues(l.name).Inc()
		defer laneActive.WithLabelValues(l.name).Dec()

		job.Run(ctx)
	}()

	return nil
}
