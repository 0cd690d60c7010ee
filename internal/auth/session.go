package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ironforge/athlete-api/internal/apperror"
)

// Cookie and header names shared with the browser frontend.
const (
	SessionCookie     = "ams_token"
	CSRFCookie        = "ams_csrf"
	CSRFHeader        = "X-CSRF-Token"
	LegacyTokenHeader = "X-Auth-Token"

	csrfTokenBytes = 24
)

// Messages returned to clients for session failures.
const (
	MsgNoToken      = "No token, authorisation denied."
	MsgTokenExpired = "Token has expired, please log in again."
	MsgInvalidToken = "Invalid token."
	MsgCSRFFailed   = "CSRF validation failed."
)

var bearerPrefix = regexp.MustCompile(`(?i)^Bearer\s+`)

// Session is the credential pair handed to a client at login or signup.
type Session struct {
	Token     string
	CSRFToken string
	ExpiresAt time.Time
}

// SessionManager issues and verifies the two cooperating credentials:
//
//   - the signed session token, accepted as a bearer header or as the
//     httpOnly ams_token cookie
//   - the CSRF token, stored in the script-readable ams_csrf cookie and echoed
//     back by browser clients in the X-CSRF-Token header
//
// Bearer clients never see cookies and skip the CSRF check. Browser clients
// ride on the cookie and must prove, for unsafe methods, that they could read
// ams_csrf.
type SessionManager struct {
	tokens     *TokenService
	production bool
	random     io.Reader
	now        func() time.Time
}

// NewSessionManager creates a SessionManager. production switches cookies to
// Secure + SameSite=None; development uses SameSite=Lax over plain HTTP.
func NewSessionManager(tokens *TokenService, production bool) *SessionManager {
	return &SessionManager{
		tokens:     tokens,
		production: production,
		random:     rand.Reader,
		now:        time.Now,
	}
}

// Issue signs a session token for c, generates a fresh CSRF token and sets
// both cookies on w. Both cookies share path and max-age.
func (m *SessionManager) Issue(w http.ResponseWriter, c Claims) (Session, error) {
	token, err := m.tokens.Generate(c)
	if err != nil {
		return Session{}, err
	}
	csrf, err := m.newCSRFToken()
	if err != nil {
		return Session{}, err
	}

	maxAge := int(m.tokens.TTL().Seconds())
	http.SetCookie(w, m.cookie(SessionCookie, token, maxAge, true))
	http.SetCookie(w, m.cookie(CSRFCookie, csrf, maxAge, false))

	return Session{
		Token:     token,
		CSRFToken: csrf,
		ExpiresAt: m.now().Add(m.tokens.TTL()),
	}, nil
}

// IssueCSRF sets a fresh CSRF cookie without touching the session cookie.
// Used when a cookie session exists but its CSRF companion was lost.
func (m *SessionManager) IssueCSRF(w http.ResponseWriter) (string, error) {
	csrf, err := m.newCSRFToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, m.cookie(CSRFCookie, csrf, int(m.tokens.TTL().Seconds()), false))
	return csrf, nil
}

// Revoke clears both cookies. The attribute set must match the one used at
// issuance or browsers keep the original cookie.
func (m *SessionManager) Revoke(w http.ResponseWriter) {
	for _, c := range []*http.Cookie{
		m.cookie(SessionCookie, "", -1, true),
		m.cookie(CSRFCookie, "", -1, false),
	} {
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

// Verify authenticates r. The token comes from the Authorization header
// (with or without a "Bearer " prefix), then the legacy X-Auth-Token header,
// then the session cookie. Every failure is an apperror.ErrUnauthorized; the
// message tells an expired token apart from an invalid one.
func (m *SessionManager) Verify(r *http.Request) (Claims, error) {
	raw := extractToken(r)
	if raw == "" {
		return Claims{}, apperror.Unauthorized(MsgNoToken)
	}

	claims, err := m.tokens.Validate(raw)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Claims{}, apperror.Unauthorized(MsgTokenExpired)
		}
		return Claims{}, apperror.Unauthorized(MsgInvalidToken)
	}
	return claims, nil
}

// VerifyCSRF reports whether r passes the double-submit check.
//
// Safe methods always pass. Requests carrying a bearer credential pass. A
// request without a session cookie passes (nothing to protect yet, e.g.
// signup). Otherwise the X-CSRF-Token header must equal the ams_csrf cookie.
func (m *SessionManager) VerifyCSRF(r *http.Request) bool {
	if !isUnsafeMethod(r.Method) {
		return true
	}
	if HasBearer(r) {
		return true
	}
	if !HasCookieSession(r) {
		return true
	}

	header := r.Header.Get(CSRFHeader)
	cookie, err := r.Cookie(CSRFCookie)
	if err != nil || header == "" || cookie.Value == "" {
		return false
	}
	return header == cookie.Value
}

// HasBearer reports whether r carries a credential header (Authorization or
// X-Auth-Token), whatever its contents.
func HasBearer(r *http.Request) bool {
	return r.Header.Get("Authorization") != "" || r.Header.Get(LegacyTokenHeader) != ""
}

// HasCookieSession reports whether r carries a non-empty session cookie.
func HasCookieSession(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	return err == nil && c.Value != ""
}

// HasCSRFCookie reports whether r carries a non-empty CSRF cookie.
func HasCSRFCookie(r *http.Request) bool {
	c, err := r.Cookie(CSRFCookie)
	return err == nil && c.Value != ""
}

func extractToken(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if tok := bearerPrefix.ReplaceAllString(h, ""); tok != "" {
			return tok
		}
	}
	if h := strings.TrimSpace(r.Header.Get(LegacyTokenHeader)); h != "" {
		return h
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func isUnsafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (m *SessionManager) newCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		return "", fmt.Errorf("auth: generating csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// cookie builds a cookie with the attribute set shared by issue and revoke.
func (m *SessionManager) cookie(name, value string, maxAge int, httpOnly bool) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if m.production {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   m.production,
		SameSite: sameSite,
	}
}
