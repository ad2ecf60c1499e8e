package users

import "time"

// User is an account that can authenticate and hold team memberships.
type User struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	HashedPassword string `json:"-"`
	FullName       string `json:"full_name"`
	IsActive       bool   `json:"is_active"`

	// TokenVersion invalidates outstanding sessions when bumped. Every
	// issued token carries the version current at issue time; a mismatch
	// at verification rejects the token.
	TokenVersion int `json:"-"`

	TwoFactorSecret  string `json:"-"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`

	// CurrentTeamID is the team the user last switched to; personal team
	// right after registration.
	CurrentTeamID *int64 `json:"current_team_id,omitempty"`

	Timezone     string     `json:"timezone"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Public is the user shape returned to API clients.
type Public struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name"`
	IsActive         bool       `json:"is_active"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	CurrentTeamID    *int64     `json:"current_team_id,omitempty"`
	Timezone         string     `json:"timezone"`
	LastActiveAt     *time.Time `json:"last_active_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Public converts the user to its API representation.
func (u *User) Public() *Public {
	return &Public{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         u.FullName,
		IsActive:         u.IsActive,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CurrentTeamID:    u.CurrentTeamID,
		Timezone:         u.Timezone,
		LastActiveAt:     u.LastActiveAt,
		CreatedAt:        u.CreatedAt,
	}
}
