package auth

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironforge/athlete-api/internal/apperror"
)

func newTestSessions(t *testing.T, production bool) *SessionManager {
	t.Helper()
	return NewSessionManager(newTestTokenService(t), production)
}

// cookiesByName indexes the Set-Cookie headers of a recorded response.
func cookiesByName(rr *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rr.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

// issue runs Issue against a recorder and returns the session and cookies.
func issue(t *testing.T, m *SessionManager) (Session, map[string]*http.Cookie) {
	t.Helper()
	rr := httptest.NewRecorder()
	s, err := m.Issue(rr, athlete)
	require.NoError(t, err)
	return s, cookiesByName(rr)
}

func TestIssue_SetsPairedCookies(t *testing.T) {
	m := newTestSessions(t, false)

	s, cookies := issue(t, m)

	session := cookies[SessionCookie]
	csrf := cookies[CSRFCookie]
	require.NotNil(t, session)
	require.NotNil(t, csrf)

	assert.Equal(t, s.Token, session.Value)
	assert.Equal(t, s.CSRFToken, csrf.Value)
	assert.Len(t, s.CSRFToken, 48, "24 random bytes, hex-encoded")

	assert.True(t, session.HttpOnly)
	assert.False(t, csrf.HttpOnly, "client script must read the CSRF cookie")

	for _, c := range []*http.Cookie{session, csrf} {
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), c.MaxAge)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.False(t, c.Secure)
	}
}

func TestIssue_ProductionCookies(t *testing.T) {
	m := newTestSessions(t, true)

	_, cookies := issue(t, m)
	for _, name := range []string{SessionCookie, CSRFCookie} {
		c := cookies[name]
		require.NotNil(t, c, name)
		assert.True(t, c.Secure, name)
		assert.Equal(t, http.SameSiteNoneMode, c.SameSite, name)
	}
}

func TestIssue_FreshCSRFEachTime(t *testing.T) {
	m := newTestSessions(t, false)

	a, _ := issue(t, m)
	b, _ := issue(t, m)
	assert.NotEqual(t, a.CSRFToken, b.CSRFToken)
}

func TestIssue_RandomFailure(t *testing.T) {
	m := newTestSessions(t, false)
	m.random = bytes.NewReader(nil)

	_, err := m.Issue(httptest.NewRecorder(), athlete)
	assert.Error(t, err)
}

func TestRevoke_MatchesIssueAttributes(t *testing.T) {
	for _, production := range []bool{false, true} {
		m := newTestSessions(t, production)
		_, issued := issue(t, m)

		rr := httptest.NewRecorder()
		m.Revoke(rr)
		cleared := cookiesByName(rr)

		for _, name := range []string{SessionCookie, CSRFCookie} {
			c := cleared[name]
			require.NotNil(t, c, name)
			assert.Empty(t, c.Value)
			assert.Less(t, c.MaxAge, 0)
			assert.Equal(t, issued[name].Path, c.Path)
			assert.Equal(t, issued[name].SameSite, c.SameSite)
			assert.Equal(t, issued[name].Secure, c.Secure)
			assert.Equal(t, issued[name].HttpOnly, c.HttpOnly)
		}
	}
}

func TestVerify_Sources(t *testing.T) {
	m := newTestSessions(t, false)
	s, _ := issue(t, m)

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+s.Token) }},
		{"lower-case bearer", func(r *http.Request) { r.Header.Set("Authorization", "bearer   "+s.Token) }},
		{"raw authorization", func(r *http.Request) { r.Header.Set("Authorization", s.Token) }},
		{"legacy header", func(r *http.Request) { r.Header.Set(LegacyTokenHeader, s.Token) }},
		{"session cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: s.Token}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.setup(r)

			got, err := m.Verify(r)
			require.NoError(t, err)
			assert.Equal(t, athlete, got)
		})
	}
}

func TestVerify_Failures(t *testing.T) {
	m := newTestSessions(t, false)
	expired, err := m.tokens.GenerateWithDuration(athlete, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantMsg string
	}{
		{"missing", "", MsgNoToken},
		{"expired", expired, MsgTokenExpired},
		{"garbage", "abc.def.ghi", MsgInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}

			_, err := m.Verify(r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantMsg, appErr.Message)
		})
	}
}

func TestVerifyCSRF(t *testing.T) {
	m := newTestSessions(t, false)
	s, _ := issue(t, m)

	withCookies := func(r *http.Request, csrf string) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: s.Token})
		if csrf != "" {
			r.AddCookie(&http.Cookie{Name: CSRFCookie, Value: csrf})
		}
	}

	tests := []struct {
		name   string
		method string
		setup  func(r *http.Request)
		want   bool
	}{
		{
			name:   "GET is never checked",
			method: http.MethodGet,
			setup:  func(r *http.Request) { withCookies(r, s.CSRFToken) },
			want:   true,
		},
		{
			name:   "no session cookie passes",
			method: http.MethodPost,
			setup:  func(r *http.Request) {},
			want:   true,
		},
		{
			name:   "matching header and cookie",
			method: http.MethodPost,
			setup: func(r *http.Request) {
				withCookies(r, s.CSRFToken)
				r.Header.Set(CSRFHeader, s.CSRFToken)
			},
			want: true,
		},
		{
			name:   "mismatched header",
			method: http.MethodPost,
			setup: func(r *http.Request) {
				withCookies(r, s.CSRFToken)
				r.Header.Set(CSRFHeader, "forged")
			},
			want: false,
		},
		{
			name:   "missing header",
			method: http.MethodDelete,
			setup:  func(r *http.Request) { withCookies(r, s.CSRFToken) },
			want:   false,
		},
		{
			name:   "missing csrf cookie",
			method: http.MethodPut,
			setup: func(r *http.Request) {
				withCookies(r, "")
				r.Header.Set(CSRFHeader, s.CSRFToken)
			},
			want: false,
		},
		{
			name:   "bearer skips the check",
			method: http.MethodPost,
			setup: func(r *http.Request) {
				withCookies(r, s.CSRFToken)
				r.Header.Set("Authorization", "Bearer "+s.Token)
				r.Header.Set(CSRFHeader, "anything")
			},
			want: true,
		},
		{
			name:   "legacy header skips the check",
			method: http.MethodPatch,
			setup: func(r *http.Request) {
				withCookies(r, s.CSRFToken)
				r.Header.Set(LegacyTokenHeader, s.Token)
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/athlete/stats", nil)
			tt.setup(r)
			assert.Equal(t, tt.want, m.VerifyCSRF(r))
		})
	}
}

func TestIssueCSRF_OnlySetsCSRFCookie(t *testing.T) {
	m := newTestSessions(t, false)

	rr := httptest.NewRecorder()
	csrf, err := m.IssueCSRF(rr)
	require.NoError(t, err)

	cookies := cookiesByName(rr)
	require.Contains(t, cookies, CSRFCookie)
	assert.NotContains(t, cookies, SessionCookie)
	assert.Equal(t, csrf, cookies[CSRFCookie].Value)
}
