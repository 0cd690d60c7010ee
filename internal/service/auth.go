// Package service holds the business rules between the HTTP handlers and the
// store:
//
//	handler (HTTP) → service (rules, validation) → repository.Store (SQL)
//
// Services never touch http types. They return apperror values that the
// handlers map onto status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ironforge/athlete-api/internal/apperror"
	"github.com/ironforge/athlete-api/internal/auth"
	"github.com/ironforge/athlete-api/internal/model"
	"github.com/ironforge/athlete-api/internal/repository"
)

// Messages shown to clients by the auth routes.
const (
	MsgInvalidCredentials = "Invalid credentials."
	MsgDeactivated        = "Account is deactivated."
	MsgEmailTaken         = "Email already registered."
	MsgWrongPassword      = "Current password is incorrect."
)

// AuthService signs users up and in. Issuing the session cookies is the
// handler's job; the service only decides who the user is.
type AuthService struct {
	store     repository.Store
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(store repository.Store, passwords *auth.PasswordService, logger *slog.Logger) *AuthService {
	return &AuthService{store: store, passwords: passwords, logger: logger}
}

// SignupInput is the body of POST /api/auth/signup.
type SignupInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Signup creates an account. The duplicate-email check, the insert and, for
// athletes, the empty profile and training rows all commit together. The
// users.email UNIQUE constraint decides concurrent signups: the loser gets
// Conflict from the insert even if both passed the pre-check.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	var errs fieldErrors
	name := validFullName(&errs, "full_name", in.FullName)
	email := normalizeEmail(&errs, in.Email)
	validPassword(&errs, "password", in.Password)
	role := in.Role
	if role == "" {
		role = model.RoleAthlete
	}
	if role != model.RoleAthlete && role != model.RoleCoach {
		errs.add("role", "Role must be athlete or coach.")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{FullName: name, Email: email, PasswordHash: hash, Role: role, IsActive: true}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		exists, err := tx.Users().EmailExists(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			return apperror.Conflict(MsgEmailTaken)
		}
		return createAccount(ctx, tx, user)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict(MsgEmailTaken)
		}
		return nil, fmt.Errorf("service/auth: signing up %s: %w", email, err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID), slog.String("role", user.Role))
	return user, nil
}

// createAccount inserts user and, for athletes, the rows GET /profile reads.
func createAccount(ctx context.Context, tx repository.Repositories, user *model.User) error {
	if err := tx.Users().Create(ctx, user); err != nil {
		return err
	}
	if user.Role != model.RoleAthlete {
		return nil
	}
	if err := tx.Profiles().CreateEmpty(ctx, user.ID); err != nil {
		return err
	}
	return tx.Training().CreateEmpty(ctx, user.ID)
}

// LoginInput is the body of POST /api/auth/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*model.User, error) {
	var errs fieldErrors
	email := normalizeEmail(&errs, in.Email)
	if in.Password == "" {
		errs.add("password", "Password is required.")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized(MsgInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		s.logger.Info("login failed", slog.String("userID", user.ID))
		return nil, apperror.Unauthorized(MsgInvalidCredentials)
	}
	if !user.IsActive {
		return nil, apperror.Forbidden(MsgDeactivated)
	}
	return user, nil
}

// Me returns the signed-in user.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user %s: %w", userID, err)
	}
	return user, nil
}

// ChangePasswordInput is the body of POST /api/auth/change-password.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	var errs fieldErrors
	if in.CurrentPassword == "" {
		errs.add("current_password", "Current password is required.")
	}
	validPassword(&errs, "new_password", in.NewPassword)
	if err := errs.err(); err != nil {
		return err
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: loading user %s: %w", userID, err)
	}
	if err := s.passwords.Verify(user.PasswordHash, in.CurrentPassword); err != nil {
		return apperror.Unauthorized(MsgWrongPassword)
	}

	hash, err := s.passwords.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("service/auth: hashing password: %w", err)
	}
	if err := s.store.Users().UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/auth: updating password for %s: %w", userID, err)
	}

	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

// LoginGitHub resolves a GitHub identity to a user: by GitHub id first, then
// by email (linking the GitHub id to the existing account), otherwise a new
// athlete account without a password.
func (s *AuthService) LoginGitHub(ctx context.Context, ident *auth.GitHubIdentity) (*model.User, error) {
	if ident == nil {
		return nil, fmt.Errorf("service/auth: GitHub identity must not be nil")
	}

	var user *model.User
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		u, err := tx.Users().GetByGitHubID(ctx, ident.ID)
		if err == nil {
			user = u
			return nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return err
		}

		u, err = tx.Users().GetByEmail(ctx, ident.Email)
		switch {
		case err == nil:
			if err := tx.Users().LinkGitHub(ctx, u.ID, ident.ID); err != nil {
				return err
			}
			id := ident.ID
			u.GitHubID = &id
			user = u
			return nil
		case !errors.Is(err, apperror.ErrNotFound):
			return err
		}

		id := ident.ID
		user = &model.User{
			FullName: truncate(ident.DisplayName(), maxFullName),
			Email:    ident.Email,
			Role:     model.RoleAthlete,
			IsActive: true,
			GitHubID: &id,
		}
		return createAccount(ctx, tx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: GitHub login (githubID=%d): %w", ident.ID, err)
	}
	if !user.IsActive {
		return nil, apperror.Forbidden(MsgDeactivated)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", ident.Login),
	)
	return user, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
