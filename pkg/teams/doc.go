// Package teams holds teams and their polymorphic memberships.
//
// A membership row points at either a user or an organization, discriminated
// by member_type; the pair (team_id, member_type, member_id) is unique. The
// store also answers the two lookups membership resolution is built on: the
// direct user membership and the indirect path through an organization the
// user belongs to.
package teams
