// Package prometheus renders authgate engine metrics in Prometheus text
// exposition format.
//
// [New] takes anything with MetricsSnapshot and AuditDropped (normally the
// *authgate.Engine) and serves the exposition through [Exporter.Handler].
// Counter names are authgate_*_total; the single histogram is
// authgate_verify_latency_seconds. Nothing registers with a global
// registry; callers mount the handler where they want it.
package prometheus
