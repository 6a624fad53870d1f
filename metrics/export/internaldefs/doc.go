// Package internaldefs holds the metric names and help strings shared by the exporters,
// so Prometheus and OpenTelemetry publish identical series.
package internaldefs
