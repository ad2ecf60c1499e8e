// Package guard resolves how a user reaches a team and decides whether the
// resolved role permits an operation.
//
// Resolution follows a strict precedence: team ownership, then an active
// direct user membership, then an active membership through an organization
// that is itself on the team. The first matching path wins; roles are never
// merged across paths. The guard layers the permission matrix on top of the
// resolved context and reports every decision to metrics.
package guard
