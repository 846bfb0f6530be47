// Package observability provides structured logging and metrics for authcore.
//
// This package implements:
//   - zap logger construction from configuration
//   - Prometheus collectors for auth outcomes and HTTP traffic
//   - HTTP instrumentation keyed by chi route pattern
package observability
