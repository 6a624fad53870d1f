// Package prometheus exposes engine counters to Prometheus.
//
// [Collector] implements prometheus.Collector over [goAccess.Engine.MetricsSnapshot], emitting
// const metrics on every scrape, so nothing is registered globally and the engine's
// lock-free counters stay the single source of truth. [Collector.Handler] serves a private
// registry for callers that do not run their own.
package prometheus
