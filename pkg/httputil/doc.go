// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing. WriteAppError is the
// single place the apperr taxonomy is mapped to wire status codes.
package httputil
