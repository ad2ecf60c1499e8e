// Package api exposes the HTTP surface: authentication and credential
// lifecycle endpoints, team and membership management, and organization
// management. Handlers stay thin; authorization decisions live in the guard
// and business rules in the stores and services the handlers call.
package api
