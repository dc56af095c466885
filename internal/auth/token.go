package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types embedded in the token_type claim. A token of one type is never
// accepted where another is expected.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeVerify  = "verify"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultVerifyTTL  = 10 * time.Minute
)

// TokenClaims is the claim set carried by every token the service signs.
// Access tokens additionally carry email and name for display purposes;
// those claims are never trusted for authorization decisions.
type TokenClaims struct {
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies stateless HS256 bearer tokens. A
// compromised token stays valid until natural expiry: there is no
// revocation list.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService)

// WithAccessTokenTTL overrides the access token lifetime.
func WithAccessTokenTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTokenTTL overrides the refresh token lifetime.
func WithRefreshTokenTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService constructs a TokenService with the given signing secret.
func NewTokenService(secret, issuer string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	s := &TokenService{
		secret:     []byte(secret),
		issuer:     strings.TrimSpace(issuer),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs a short-lived token carrying the user's id, email
// and display name. Returns the token and its lifetime in seconds.
func (s *TokenService) IssueAccessToken(userID, email, name string) (string, int64, error) {
	token, err := s.sign(userID, TokenTypeAccess, s.accessTTL, email, name)
	if err != nil {
		return "", 0, err
	}
	return token, int64(s.accessTTL.Seconds()), nil
}

// IssueRefreshToken signs a longer-lived token carrying only the user id.
// The narrow claim set avoids staleness if claims were ever misused for
// authorization.
func (s *TokenService) IssueRefreshToken(userID string) (string, int64, error) {
	token, err := s.sign(userID, TokenTypeRefresh, s.refreshTTL, "", "")
	if err != nil {
		return "", 0, err
	}
	return token, int64(s.refreshTTL.Seconds()), nil
}

// IssueVerifyToken signs a token binding an OTP check to a user id so the
// client does not re-submit the email address. The caller passes the lifetime
// of the code the token is bound to so both expire together.
func (s *TokenService) IssueVerifyToken(userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultVerifyTTL
	}
	return s.sign(userID, TokenTypeVerify, ttl, "", "")
}

func (s *TokenService) sign(userID, tokenType string, ttl time.Duration, email, name string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("auth: userID is required")
	}
	now := s.now().UTC()
	claims := TokenClaims{
		Email:     email,
		Name:      name,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the token signature, expiry, issuer and type. It returns
// ErrExpiredToken for an expired token and ErrInvalidToken for everything
// else that fails validation.
func (s *TokenService) Verify(token, wantType string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
