// Package repository declares the storage interfaces the services depend on.
// The sqlstore package implements them for MySQL and SQLite; service tests
// implement them with in-memory fakes.
package repository

import (
	"context"

	"github.com/ironforge/athlete-api/internal/model"
)

// ListOptions pages a list query.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository reads and writes users rows.
type UserRepository interface {
	// Create inserts u and fills in its ID and timestamps. A duplicate email
	// is reported as an apperror Conflict.
	Create(ctx context.Context, u *model.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateFullName(ctx context.Context, id, fullName string) error
	// LinkGitHub attaches a GitHub account id to an existing user.
	LinkGitHub(ctx context.Context, id string, githubID int64) error
}

// ProfileRepository reads and writes the one athlete_profiles row per user.
type ProfileRepository interface {
	// CreateEmpty inserts a row holding only user_id.
	CreateEmpty(ctx context.Context, userID string) error
	// Get returns the row, or an empty Profile when the user has none.
	Get(ctx context.Context, userID string) (model.Profile, error)
	// Update assigns the given columns, creating the row first if missing.
	// Columns outside model.ProfileFields are rejected.
	Update(ctx context.Context, userID string, values []model.FieldValue) error
}

// TrainingRepository is ProfileRepository for training_details.
type TrainingRepository interface {
	CreateEmpty(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (model.Training, error)
	Update(ctx context.Context, userID string, values []model.FieldValue) error
}

// AchievementRepository stores achievements.
type AchievementRepository interface {
	Create(ctx context.Context, a *model.Achievement) error
	// ListRecent orders by award_date DESC, id DESC.
	ListRecent(ctx context.Context, userID string, opts ListOptions) ([]model.Achievement, error)
	// Delete removes the row only when it belongs to userID; otherwise it
	// returns an apperror NotFound.
	Delete(ctx context.Context, userID, id string) error
}

// StatRepository stores performance stats.
type StatRepository interface {
	Create(ctx context.Context, s *model.PerformanceStat) error
	// ListRecent orders by recorded_date DESC, id DESC.
	ListRecent(ctx context.Context, userID string, opts ListOptions) ([]model.PerformanceStat, error)
	// ListForSeries orders by stat_name, recorded_date, id, all ascending,
	// which is the order stats.Build expects.
	ListForSeries(ctx context.Context, userID string, opts ListOptions) ([]model.PerformanceStat, error)
	Delete(ctx context.Context, userID, id string) error
}

// Repositories groups the per-table repositories bound to one handle, either
// the pool or an open transaction.
type Repositories interface {
	Users() UserRepository
	Profiles() ProfileRepository
	Training() TrainingRepository
	Achievements() AchievementRepository
	Stats() StatRepository
}

// Store is the datastore handle owned by the process.
type Store interface {
	Repositories
	// InTx runs fn with repositories bound to one transaction. fn must only
	// use tx; the pool may hold a single connection.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}
