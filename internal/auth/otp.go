package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

const (
	defaultOTPTTL            = 10 * time.Minute
	defaultOTPResendInterval = 30 * time.Second
)

// OTPIssue is returned to the client after a code has been generated or an
// unexpired pending code has been reused.
type OTPIssue struct {
	Token        string
	ExpiryTime   int64 // seconds until the code expires
	IntervalTime int64 // client-facing resend cooldown in seconds
}

// OTPManager drives the per-user verification code state machine stored on
// the user record. At most one code is pending per user.
type OTPManager struct {
	store          Store
	tokens         *TokenService
	ttl            time.Duration
	resendInterval time.Duration
	now            func() time.Time
}

// NewOTPManager wires the code lifecycle against the credential store.
func NewOTPManager(store Store, tokens *TokenService, ttl, resendInterval time.Duration, now func() time.Time) *OTPManager {
	m := &OTPManager{
		store:          store,
		tokens:         tokens,
		ttl:            defaultOTPTTL,
		resendInterval: defaultOTPResendInterval,
		now:            now,
	}
	if ttl > 0 {
		m.ttl = ttl
	}
	if resendInterval > 0 {
		m.resendInterval = resendInterval
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Issue returns the pending code when it has not yet expired, minting a
// fresh one otherwise. Reuse keeps repeated registration submissions within
// the validity window from resetting the pending code.
func (m *OTPManager) Issue(ctx context.Context, user *User) (OTPIssue, error) {
	now := m.now().UTC()
	if !user.OTPPending(now) {
		if err := m.mint(ctx, user, now); err != nil {
			return OTPIssue{}, err
		}
	}
	return m.describe(user, now)
}

// Reissue always mints a fresh code with a full validity window. An explicit
// resend replaces the pending code instead of returning its remainder.
func (m *OTPManager) Reissue(ctx context.Context, user *User) (OTPIssue, error) {
	now := m.now().UTC()
	if err := m.mint(ctx, user, now); err != nil {
		return OTPIssue{}, err
	}
	return m.describe(user, now)
}

func (m *OTPManager) mint(ctx context.Context, user *User, now time.Time) error {
	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	expires := now.Add(m.ttl)
	user.OTPCode = code
	user.OTPExpiresAt = &expires
	return m.store.Users(ctx).Update(ctx, user)
}

func (m *OTPManager) describe(user *User, now time.Time) (OTPIssue, error) {
	token, err := m.tokens.IssueVerifyToken(user.ID, m.ttl)
	if err != nil {
		return OTPIssue{}, err
	}
	return OTPIssue{
		Token:        token,
		ExpiryTime:   int64(user.OTPExpiresAt.Sub(now).Seconds()),
		IntervalTime: int64(m.resendInterval.Seconds()),
	}, nil
}

// Validate resolves the verification token to a user and checks the
// submitted code. On success the code is cleared, the email marked verified
// and any caller mutation applied, all in a single store write; a second
// attempt with the same token fails with ErrOTPExpired.
func (m *OTPManager) Validate(ctx context.Context, token, submitted string, mutate func(*User)) (*User, error) {
	claims, err := m.tokens.Verify(token, TokenTypeVerify)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := m.store.Users(ctx).FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !user.OTPPending(m.now().UTC()) {
		return nil, ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(user.OTPCode), []byte(submitted)) != 1 {
		return nil, ErrOTPMismatch
	}
	user.ClearOTP()
	user.EmailVerified = true
	if mutate != nil {
		mutate(user)
	}
	if err := m.store.Users(ctx).Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// generateOTP returns a fixed-length numeric code from crypto/rand.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
