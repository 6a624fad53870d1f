// Package otel publishes engine counters through an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and a single
// callback that reads [goAccess.Engine.MetricsSnapshot] per collection. The latency
// histogram is published as cumulative bucket gauges carrying an "le" attribute. The
// caller owns the MeterProvider.
package otel
