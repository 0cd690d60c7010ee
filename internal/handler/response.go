// Package handler turns HTTP requests into service calls and service results
// into JSON.
//
// Every response shares one envelope:
//
//	{"success": true, "message": "...", ...payload}
//	{"success": false, "message": "..."}
//	{"success": false, "errors": [{"field": "...", "message": "..."}]}   (422)
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ironforge/athlete-api/internal/apperror"
	"github.com/ironforge/athlete-api/internal/auth"
)

// MsgInternal is the only detail a production client sees for a 500.
const MsgInternal = "Internal server error."

// envelope is a JSON object response.
type envelope map[string]any

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps the apperror class of err to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status and envelope. Messages of typed errors are
// safe for clients. Anything else is a 500 whose detail is shown only when
// showDetail is set.
func writeError(w http.ResponseWriter, err error, showDetail bool) {
	status := statusFor(err)

	var appErr *apperror.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		msg := MsgInternal
		if showDetail {
			msg = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, envelope{"success": false, "message": msg})
		return
	}

	if status == http.StatusUnprocessableEntity {
		writeJSON(w, status, envelope{"success": false, "message": appErr.Message, "errors": appErr.Fields})
		return
	}
	writeJSON(w, status, envelope{"success": false, "message": appErr.Message})
}

// responder carries what every handler needs to report failures.
type responder struct {
	logger     *slog.Logger
	production bool
}

// fail logs unexpected errors and writes the error envelope.
func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		rs.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("requestID", chimiddleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err, !rs.production)
}

// decodeJSON reads the request body into dst. Unknown fields are ignored;
// the services whitelist what they use.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return apperror.BadRequest("Request body too large.")
	case errors.Is(err, io.EOF):
		return apperror.BadRequest("Request body is required.")
	}
	return apperror.BadRequest("Invalid JSON body.")
}

// callerID returns the authenticated user id set by auth.RequireAuth.
func callerID(r *http.Request) (string, error) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized(auth.MsgNoToken)
	}
	return claims.UserID, nil
}

// NotFound answers unmatched /api routes with the JSON envelope instead of
// falling through to the static frontend.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, apperror.NotFoundMessage("Route not found."), false)
}
