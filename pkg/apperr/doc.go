// Package apperr defines the error taxonomy shared by every service in the
// application: NotFound, Forbidden, Unauthorized, Conflict, RateLimited and
// Validation. Services raise these at the point of detection and propagate
// them unchanged; only the HTTP boundary maps them to wire status codes.
package apperr
