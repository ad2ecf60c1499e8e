// Package observability provides structured logging, Prometheus metrics and
// health checks. Loggers are injected into constructors rather than held as
// package globals so tests can capture output and services stay decoupled.
package observability
