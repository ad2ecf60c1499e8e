// Package users holds the user account model and its PostgreSQL store.
//
// The store owns every credential-adjacent column: password hash, token
// version, two-factor secret. Password updates bump the token version in the
// same UPDATE statement so there is no window where a new password coexists
// with still-valid old sessions.
package users
