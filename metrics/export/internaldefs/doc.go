// Package internaldefs holds the metric name and bucket tables shared by
// the Prometheus and OTel exporters, so both backends expose identical
// names and boundaries.
package internaldefs
