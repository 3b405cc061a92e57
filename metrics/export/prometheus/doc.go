// Package prometheus renders HavenWatch engine counters in Prometheus text
// exposition format.
//
// [NewExporter] accepts an engine and exposes an [net/http.Handler] suitable
// for mounting at /metrics. Counter names are prefixed havenwatch_*_total.
//
// The exporter never registers anything in a global Prometheus registry and
// never mutates engine state.
package prometheus
