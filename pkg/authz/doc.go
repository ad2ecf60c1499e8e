// Package authz defines the role, resource and action enums and the static
// permission matrix that decides every team-scoped authorization check.
//
// The matrix is fixed, in-code data: three team roles (admin, member, viewer)
// with monotonically nested base grants, and an additive overlay keyed by
// organization type (provider, client, guest) applied when access was reached
// through an organization membership. The tables are built once at package
// init and exposed only through pure query functions.
package authz
