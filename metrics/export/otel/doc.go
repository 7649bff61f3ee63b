// Package otel bridges authgate engine metrics into OpenTelemetry.
//
// [New] registers an Int64ObservableCounter per engine counter and one
// gauge per histogram bucket on a caller-supplied Meter; a single callback
// reads MetricsSnapshot each collection cycle. The package never owns a
// MeterProvider.
package otel
