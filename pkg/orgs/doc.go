// Package orgs holds organizations, their type-specific extension records
// and organization memberships.
//
// An organization's type (provider, client, guest) is fixed at creation and
// pairs with exactly one extension row, created in the same transaction as
// the organization and its creator's admin membership. Member removal and
// demotion run under row locks so the last active admin can never be lost to
// a race.
package orgs
