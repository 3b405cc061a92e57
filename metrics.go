package havenwatch

import "sync/atomic"

// MetricID identifies an engine counter.
type MetricID uint16

const (
	// MetricSignInSuccess counts successful sign-ins.
	MetricSignInSuccess MetricID = iota
	// MetricSignInFailure counts rejected sign-ins.
	MetricSignInFailure
	// MetricSignInRateLimited counts throttled sign-ins.
	MetricSignInRateLimited
	// MetricSignUpSuccess counts created accounts.
	MetricSignUpSuccess
	// MetricSignUpDuplicate counts sign-ups rejected for an existing email.
	MetricSignUpDuplicate
	// MetricRefreshSuccess counts refresh-token rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refreshes.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts rotated tokens presented twice.
	MetricRefreshReuseDetected
	// MetricSessionCreated counts sessions written to the store.
	MetricSessionCreated
	// MetricSessionInvalidated counts sessions destroyed for any reason.
	MetricSessionInvalidated
	// MetricSignOut counts explicit sign-outs.
	MetricSignOut
	// MetricPasswordChangeSuccess counts completed password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordResetRequest counts issued reset challenges.
	MetricPasswordResetRequest
	// MetricPasswordRecovery counts recovery tokens exchanged for sessions.
	MetricPasswordRecovery
	// MetricEmailConfirmed counts completed email confirmations.
	MetricEmailConfirmed

	metricCount
)

var metricNames = map[MetricID]string{
	MetricSignInSuccess:         "signin_success",
	MetricSignInFailure:         "signin_failure",
	MetricSignInRateLimited:     "signin_rate_limited",
	MetricSignUpSuccess:         "signup_success",
	MetricSignUpDuplicate:       "signup_duplicate",
	MetricRefreshSuccess:        "refresh_success",
	MetricRefreshFailure:        "refresh_failure",
	MetricRefreshReuseDetected:  "refresh_reuse_detected",
	MetricSessionCreated:        "session_created",
	MetricSessionInvalidated:    "session_invalidated",
	MetricSignOut:               "signout",
	MetricPasswordChangeSuccess: "password_change_success",
	MetricPasswordResetRequest:  "password_reset_request",
	MetricPasswordRecovery:      "password_recovery",
	MetricEmailConfirmed:        "email_confirmed",
}

// Name returns the snake_case exposition name of the metric.
func (id MetricID) Name() string {
	if name, ok := metricNames[id]; ok {
		return name
	}
	return "unknown"
}

// Metrics holds lock-free engine counters.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// NewMetrics returns an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies the current counter values. Zero counters are omitted.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: map[MetricID]uint64{}}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		if v := m.counters[id].Load(); v > 0 {
			snap.Counters[id] = v
		}
	}
	return snap
}
