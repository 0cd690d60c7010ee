package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/ironforge/athlete-api/internal/apperror"
	"github.com/ironforge/athlete-api/internal/auth"
	"github.com/ironforge/athlete-api/internal/model"
	"github.com/ironforge/athlete-api/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler serves /api/auth: password signup and login, GitHub sign-in,
// the current user and logout.
//
// Signup, login and the GitHub callback all end in issueSession, which sets
// the session and CSRF cookies and returns the CSRF token (and, outside
// production, the raw session token for bearer clients).
type AuthHandler struct {
	responder
	auth     *service.AuthService
	sessions *auth.SessionManager
	github   *auth.GitHubProvider // nil when GitHub sign-in is not configured
}

func NewAuthHandler(
	svc *service.AuthService,
	sessions *auth.SessionManager,
	github *auth.GitHubProvider,
	logger *slog.Logger,
	production bool,
) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: logger, production: production},
		auth:      svc,
		sessions:  sessions,
		github:    github,
	}
}

// GitHubEnabled reports whether the GitHub routes should be mounted.
func (h *AuthHandler) GitHubEnabled() bool {
	return h.github != nil
}

// HandleSignup creates an account and signs it in.
//
// HTTP: POST /api/auth/signup → 201
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.auth.Signup(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.issueSession(w, r, user, http.StatusCreated, "Account created successfully.")
}

// HandleLogin checks credentials and signs the user in.
//
// HTTP: POST /api/auth/login → 200
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.auth.Login(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.issueSession(w, r, user, http.StatusOK, "Login successful.")
}

func (h *AuthHandler) issueSession(w http.ResponseWriter, r *http.Request, user *model.User, status int, message string) {
	session, err := h.sessions.Issue(w, auth.Claims{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	body := envelope{
		"success":   true,
		"message":   message,
		"csrfToken": session.CSRFToken,
		"user":      user,
	}
	if !h.production {
		body["token"] = session.Token
	}
	writeJSON(w, status, body)
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /api/auth/me (RequireAuth)
//
// A browser that still holds the session cookie but lost the CSRF cookie
// gets a fresh CSRF cookie here, so it can keep making writes.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	body := envelope{"success": true, "user": user}
	switch {
	case auth.HasCookieSession(r) && !auth.HasCSRFCookie(r):
		csrf, err := h.sessions.IssueCSRF(w)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		body["csrfToken"] = csrf
	case auth.HasCSRFCookie(r):
		c, _ := r.Cookie(auth.CSRFCookie)
		body["csrfToken"] = c.Value
	}
	writeJSON(w, http.StatusOK, body)
}

// HandleChangePassword replaces the signed-in user's password.
//
// HTTP: POST /api/auth/change-password (RequireAuth)
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var in service.ChangePasswordInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), userID, in); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Password changed successfully."})
}

// HandleLogout clears both session cookies. It always succeeds: a client
// without a session is already logged out.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Revoke(w)
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Logged out successfully."})
}

// HandleGitHubLogin redirects the browser to GitHub's consent page. The
// state value is kept in a short-lived cookie and checked on callback.
//
// HTTP: GET /api/auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, h.stateCookie(state, 600))
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow: check state, exchange the
// code, resolve the user, issue the session and send the browser home.
//
// HTTP: GET /api/auth/github/callback?code=...&state=...
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		h.fail(w, r, apperror.BadRequest("Invalid OAuth state."))
		return
	}
	// single use
	http.SetCookie(w, h.stateCookie("", -1))

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.fail(w, r, apperror.BadRequest("Missing OAuth code."))
		return
	}

	ident, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.auth.LoginGitHub(r.Context(), ident)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if _, err := h.sessions.Issue(w, auth.Claims{UserID: user.ID, Email: user.Email, Role: user.Role}); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteLaxMode,
	}
}
