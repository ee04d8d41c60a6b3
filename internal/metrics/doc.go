// Package metrics aggregates worker events into run statistics.
//
// A [Collector] implements worker.Reporter. Every worker shares one, and it
// keeps hdrhistogram latency distributions for page loads (overall and per
// target), injected DNS lookups (overall and per resolver) and browser
// startup:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//	factory := &worker.Factory{Reporter: collector /* ... */}
//	// ...
//	stats := collector.Stats(elapsed)
//
// Failures are bucketed by event kind and [FailureCode] (HTTP status,
// "timeout", "resolution" or "error"), and by the Go type of their cause for
// [FriendlyErrorName].
//
// Call [Collector.Snapshot] periodically to build the time series returned by
// [Collector.History], which the dashboard and HTML report chart.
package metrics
