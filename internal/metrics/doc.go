// Package metrics provides observability hooks for scampish runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never needs nil checks:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	orchestrator := build.New(cfg, backend, build.WithRecorder(recorder))
//
// The daemon serves the registry through HTTPHandler.
package metrics
