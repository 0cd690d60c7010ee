package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/ironforge/athlete-api/internal/apperror"
	"github.com/ironforge/athlete-api/internal/model"
)

type userRepo repos

const userColumns = `id, full_name, email, password_hash, role, is_active, github_id, created_at, updated_at`

// Create inserts a user. The UNIQUE constraint on email is what settles
// concurrent signups; a violation comes back as Conflict.
func (r userRepo) Create(ctx context.Context, u *model.User) error {
	now := r.now()
	u.ID = xid.New().String()
	u.CreatedAt = now
	u.UpdatedAt = now

	var hash any
	if u.PasswordHash != "" {
		hash = u.PasswordHash
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FullName, u.Email, hash, u.Role, u.IsActive, u.GitHubID, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Email already registered.")
		}
		return fmt.Errorf("sqlstore: inserting user %s: %w", u.Email, err)
	}
	return nil
}

func (r userRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ? LIMIT 1`, email).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlstore: checking email %s: %w", email, err)
	}
	return true, nil
}

func (r userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundMessage("User not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", id, err)
	}
	return u, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundMessage("User not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting user by email: %w", err)
	}
	return u, nil
}

func (r userRepo) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	u, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE github_id = ?`, githubID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundMessage("User not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting user by github id %d: %w", githubID, err)
	}
	return u, nil
}

func (r userRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.updateOne(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, id, hash, r.now(), id)
}

func (r userRepo) UpdateFullName(ctx context.Context, id, fullName string) error {
	return r.updateOne(ctx, `UPDATE users SET full_name = ?, updated_at = ? WHERE id = ?`, id, fullName, r.now(), id)
}

func (r userRepo) LinkGitHub(ctx context.Context, id string, githubID int64) error {
	err := r.updateOne(ctx, `UPDATE users SET github_id = ?, updated_at = ? WHERE id = ?`, id, githubID, r.now(), id)
	if isUniqueViolation(err) {
		return apperror.Conflict("GitHub account is already linked to another user.")
	}
	return err
}

func (r userRepo) updateOne(ctx context.Context, query, id string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: updating user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: updating user %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFoundMessage("User not found.")
	}
	return nil
}

func (r userRepo) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var (
		u        model.User
		hash     sql.NullString
		githubID sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.FullName, &u.Email, &hash, &u.Role, &u.IsActive, &githubID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash.String
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return &u, nil
}
