package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/havenwatch/havenwatch"
)

type metricsSource interface {
	MetricsSnapshot() havenwatch.MetricsSnapshot
	EventsDropped() uint64
}

type counterDef struct {
	ID   havenwatch.MetricID
	Name string
	Help string
}

var counterDefs = []counterDef{
	{ID: havenwatch.MetricSignInSuccess, Name: "havenwatch_signin_success_total", Help: "Successful sign-in attempts."},
	{ID: havenwatch.MetricSignInFailure, Name: "havenwatch_signin_failure_total", Help: "Failed sign-in attempts."},
	{ID: havenwatch.MetricSignInRateLimited, Name: "havenwatch_signin_rate_limited_total", Help: "Rate-limited sign-in attempts."},
	{ID: havenwatch.MetricSignUpSuccess, Name: "havenwatch_signup_success_total", Help: "Created accounts."},
	{ID: havenwatch.MetricSignUpDuplicate, Name: "havenwatch_signup_duplicate_total", Help: "Sign-up attempts rejected as duplicate."},
	{ID: havenwatch.MetricRefreshSuccess, Name: "havenwatch_refresh_success_total", Help: "Successful refresh-token rotations."},
	{ID: havenwatch.MetricRefreshFailure, Name: "havenwatch_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: havenwatch.MetricRefreshReuseDetected, Name: "havenwatch_refresh_reuse_detected_total", Help: "Rotated refresh tokens presented twice."},
	{ID: havenwatch.MetricSessionCreated, Name: "havenwatch_session_created_total", Help: "Created sessions."},
	{ID: havenwatch.MetricSessionInvalidated, Name: "havenwatch_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: havenwatch.MetricSignOut, Name: "havenwatch_signout_total", Help: "Explicit sign-out operations."},
	{ID: havenwatch.MetricPasswordChangeSuccess, Name: "havenwatch_password_change_success_total", Help: "Completed password changes."},
	{ID: havenwatch.MetricPasswordResetRequest, Name: "havenwatch_password_reset_request_total", Help: "Issued password-reset challenges."},
	{ID: havenwatch.MetricPasswordRecovery, Name: "havenwatch_password_recovery_total", Help: "Recovery tokens exchanged for sessions."},
	{ID: havenwatch.MetricEmailConfirmed, Name: "havenwatch_email_confirmed_total", Help: "Completed email confirmations."},
}

// Exporter renders engine metrics in Prometheus text exposition format.
type Exporter struct {
	source metricsSource
}

// NewExporter creates an exporter that reads from the given engine.
func NewExporter(engine *havenwatch.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource creates an exporter from a custom metrics source.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler that serves the metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the current counters in text exposition format.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()

	var b strings.Builder
	b.Grow(4096)

	for _, def := range counterDefs {
		writeCounter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
	}

	writeCounter(&b, "havenwatch_events_dropped_total", "Auth events dropped due to dispatcher backpressure.", p.source.EventsDropped())

	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
