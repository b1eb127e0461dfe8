package agent

import (
	"context"
	"sync"
	"time"
)

// Verdict is the outcome of an update verification window.
type Verdict string

const (
	VerdictHealthy   Verdict = "healthy"
	VerdictUnhealthy Verdict = "unhealthy"
)

// Verifier decides whether an applied update is healthy enough to commit.
// Verify blocks until the window resolves; ReportEvent feeds app signals
// (crashes, route outcomes) into a running verification.
type Verifier interface {
	Verify(ctx context.Context) Verdict
	ReportEvent(eventType string)
}

// TimerVerifier commits an update after the app survives a fixed window
// without crashing. This is the strategy for free and pro tier apps.
type TimerVerifier struct {
	window time.Duration

	mu      sync.Mutex
	crashed chan struct{}
}

func NewTimerVerifier(window time.Duration) *TimerVerifier {
	return &TimerVerifier{
		window:  window,
		crashed: make(chan struct{}),
	}
}

func (v *TimerVerifier) Verify(ctx context.Context) Verdict {
	// Each verification window starts clean; crashes of the previously
	// committed generation must not condemn the new one.
	v.mu.Lock()
	v.crashed = make(chan struct{})
	crashed := v.crashed
	v.mu.Unlock()

	timer := time.NewTimer(v.window)
	defer timer.Stop()

	select {
	case <-crashed:
		return VerdictUnhealthy
	case <-ctx.Done():
		// The process is going away; the pending flag stays set and the
		// next start treats it as a crash.
		return VerdictUnhealthy
	case <-timer.C:
		return VerdictHealthy
	}
}

func (v *TimerVerifier) ReportEvent(eventType string) {
	if eventType != "crash" {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	select {
	case <-v.crashed:
	default:
		close(v.crashed)
	}
}

// RouteHealthVerifier watches route outcomes over a window and commits only
// when the app's screens actually render. Team and enterprise strategy.
type RouteHealthVerifier struct {
	window time.Duration
	poll   time.Duration

	// minSamples is how many route outcomes must arrive before the ratio
	// means anything; below it the window simply runs out and commits,
	// matching the timer behavior for idle apps.
	minSamples int

	// maxFailureRatio is the failure share above which the update is
	// declared unhealthy.
	maxFailureRatio float64

	mu        sync.Mutex
	successes int
	failures  int
	crashed   chan struct{}
}

func NewRouteHealthVerifier(window, poll time.Duration) *RouteHealthVerifier {
	return &RouteHealthVerifier{
		window:          window,
		poll:            poll,
		minSamples:      5,
		maxFailureRatio: 0.5,
		crashed:         make(chan struct{}),
	}
}

func (v *RouteHealthVerifier) Verify(ctx context.Context) Verdict {
	// Counters and the crash signal from before the install belong to the
	// old generation; the window judges only what happens inside it.
	v.mu.Lock()
	v.successes = 0
	v.failures = 0
	v.crashed = make(chan struct{})
	crashed := v.crashed
	v.mu.Unlock()

	deadline := time.NewTimer(v.window)
	defer deadline.Stop()
	ticker := time.NewTicker(v.poll)
	defer ticker.Stop()

	for {
		select {
		case <-crashed:
			return VerdictUnhealthy
		case <-ctx.Done():
			return VerdictUnhealthy
		case <-deadline.C:
			return v.verdict()
		case <-ticker.C:
			// A decisively bad ratio ends the window early; a good one
			// still waits, a crash can arrive any time.
			if verdict, decisive := v.earlyVerdict(); decisive {
				return verdict
			}
		}
	}
}

func (v *RouteHealthVerifier) verdict() Verdict {
	v.mu.Lock()
	defer v.mu.Unlock()

	total := v.successes + v.failures
	if total < v.minSamples {
		return VerdictHealthy
	}
	if float64(v.failures)/float64(total) > v.maxFailureRatio {
		return VerdictUnhealthy
	}
	return VerdictHealthy
}

func (v *RouteHealthVerifier) earlyVerdict() (Verdict, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	total := v.successes + v.failures
	if total >= v.minSamples && float64(v.failures)/float64(total) > v.maxFailureRatio {
		return VerdictUnhealthy, true
	}
	return VerdictHealthy, false
}

func (v *RouteHealthVerifier) ReportEvent(eventType string) {
	switch eventType {
	case "crash":
		v.mu.Lock()
		select {
		case <-v.crashed:
		default:
			close(v.crashed)
		}
		v.mu.Unlock()
	case "route_success":
		v.mu.Lock()
		v.successes++
		v.mu.Unlock()
	case "route_failure":
		v.mu.Lock()
		v.failures++
		v.mu.Unlock()
	}
}

// VerifierForTier picks the verification strategy for an account tier.
func VerifierForTier(tier string, window time.Duration) Verifier {
	switch tier {
	case "team", "enterprise":
		return NewRouteHealthVerifier(window, 15*time.Second)
	default:
		return NewTimerVerifier(window)
	}
}
