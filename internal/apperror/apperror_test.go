package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("stat", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("email", "Valid email is required."),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("Email already registered."),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("Invalid token."),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Forbidden is not Unauthorized",
			err:       Forbidden("CSRF validation failed."),
			target:    ErrUnauthorized,
			wantMatch: false,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("service/auth: login: %w", Unauthorized("Invalid credentials.")),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("stat", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("achievement", "abc123"),
			wantMessage: "achievement not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("title", "Achievement title is required."),
			wantMessage: "Achievement title is required.",
		},
		{
			name:        "BadRequest keeps message",
			err:         BadRequest("No fields to update."),
			wantMessage: "No fields to update.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestInvalid(t *testing.T) {
	if err := Invalid(nil); err != nil {
		t.Fatalf("Invalid(nil) = %v, want nil", err)
	}

	err := Invalid([]FieldError{
		{Field: "email", Message: "Valid email is required."},
		{Field: "password", Message: "Password is required."},
	})
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Invalid() returned %T, want *AppError", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("Invalid() should wrap ErrValidation")
	}
	if len(appErr.Fields) != 2 {
		t.Errorf("len(Fields) = %d, want 2", len(appErr.Fields))
	}
	if appErr.Field != "email" {
		t.Errorf("Field = %q, want first invalid field %q", appErr.Field, "email")
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("stat", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
	if len(err.Fields) != 1 || err.Fields[0].Field != "email" {
		t.Errorf("Fields = %+v, want one entry for email", err.Fields)
	}
}
