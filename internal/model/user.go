// Package model defines the records stored by the athlete API.
package model

import "time"

// Roles a user can sign up with.
const (
	RoleAthlete = "athlete"
	RoleCoach   = "coach"
)

// User represents a registered account.
//
// PasswordHash is empty for accounts created through GitHub sign-in; GitHubID
// is nil for password accounts. The UNIQUE constraint on email guarantees one
// account per address even under concurrent signups.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"-"`
	GitHubID     *int64    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}
