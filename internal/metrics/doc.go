// Package metrics records deployment run metrics.
//
// Recorder is the hook interface the deploy pipeline calls. NoopRecorder is
// the default; PrometheusRecorder keeps the series on a private registry
// that can be written out for the node exporter textfile collector.
package metrics
