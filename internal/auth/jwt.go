// Package auth issues and verifies the credentials that authenticate API
// requests: the signed session token, its paired CSRF token, bcrypt password
// hashes and the optional GitHub sign-in.
//
// SESSION TOKEN STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:    {"alg":"HS256","typ":"JWT"}
//	- Payload:   {"sub":"<user id>","email":"...","role":"athlete","iat":...,"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
//
// The server verifies the signature and expiry without a database lookup.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultSessionTTL is how long a session token stays valid when
	// JWT_EXPIRES_IN is not configured.
	DefaultSessionTTL = 7 * 24 * time.Hour

	// MinSecretLength is enforced when the service starts.
	MinSecretLength = 32

	issuer = "iron-forge"
)

var (
	// ErrTokenExpired is returned by Validate when the signature is good
	// but the exp claim is in the past.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// Claims is the identity carried by a session token.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret used to sign and verify tokens, plus the lifetime
// applied to newly issued tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret and token
// lifetime. A zero ttl falls back to DefaultSessionTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of tokens issued by Generate. Session cookies use
// the same value as their max-age.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// sessionClaims is the JWT payload. The user id travels in "sub"; email and
// role are private claims.
type sessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Generate signs a session token for c with the configured lifetime.
func (s *TokenService) Generate(c Claims) (string, error) {
	return s.GenerateWithDuration(c, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(c Claims, d time.Duration) (string, error) {
	if c.UserID == "" {
		return "", errors.New("auth: token subject must not be empty")
	}
	now := s.now()

	sc := sessionClaims{
		Email: c.Email,
		Role:  c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sc)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the identity it
// carries.
//
// The jwt library checks the signature, the expiry, the issuer and the
// algorithm (HS256 only, so a token declaring "none" is rejected). An expired
// token yields ErrTokenExpired; anything else yields ErrTokenInvalid.
func (s *TokenService) Validate(tokenStr string) (Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&sessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	sc, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return Claims{}, fmt.Errorf("%w: unexpected claims", ErrTokenInvalid)
	}
	if sc.Subject == "" {
		return Claims{}, fmt.Errorf("%w: token has no subject", ErrTokenInvalid)
	}

	return Claims{UserID: sc.Subject, Email: sc.Email, Role: sc.Role}, nil
}
