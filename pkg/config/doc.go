// Package config loads application configuration from environment variables
// with sensible defaults and fail-fast validation.
package config
