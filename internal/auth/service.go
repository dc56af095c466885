package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sportsroz.org/internal/ids"
	"sportsroz.org/internal/obs"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Mailer delivers verification codes and temporary passwords. Failures are
// logged but never fail the operation that triggered the send.
type Mailer interface {
	SendOTP(ctx context.Context, email, name, code string) error
	SendTempPassword(ctx context.Context, email, name, password string) error
}

// Service orchestrates the registration, verification, login, refresh and
// password-reset lifecycle against the credential store, the token service
// and the OTP manager.
type Service struct {
	store  Store
	tokens *TokenService
	otp    *OTPManager
	mail   Mailer
	now    func() time.Time

	otpTTL            time.Duration
	otpResendInterval time.Duration

	// requireApproval additionally gates login on admin approval. Email
	// verification is always required.
	requireApproval bool

	// tempPasswordOnVerify rotates the password to a server-generated
	// temporary value after OTP verification, forcing a first-login reset.
	tempPasswordOnVerify bool
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithOTPTTL overrides the verification code lifetime.
func WithOTPTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

// WithOTPResendInterval overrides the client-facing resend cooldown.
func WithOTPResendInterval(interval time.Duration) ServiceOption {
	return func(s *Service) {
		if interval > 0 {
			s.otpResendInterval = interval
		}
	}
}

// WithRequireApproval gates login on admin approval in addition to email
// verification.
func WithRequireApproval(required bool) ServiceOption {
	return func(s *Service) {
		s.requireApproval = required
	}
}

// WithTempPasswordOnVerify enables the temporary-password rotation variant
// of OTP verification.
func WithTempPasswordOnVerify(enabled bool) ServiceOption {
	return func(s *Service) {
		s.tempPasswordOnVerify = enabled
	}
}

// NewService constructs the auth orchestrator.
func NewService(store Store, tokens *TokenService, mail Mailer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	if mail == nil {
		return nil, errors.New("auth: mailer is required")
	}
	s := &Service{
		store:             store,
		tokens:            tokens,
		mail:              mail,
		now:               time.Now,
		otpTTL:            defaultOTPTTL,
		otpResendInterval: defaultOTPResendInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.otp = NewOTPManager(store, tokens, s.otpTTL, s.otpResendInterval, s.now)
	return s, nil
}

// EnsureBuiltins ensures the predefined permission catalog exists.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.Permissions(ctx).Ensure(ctx, BuiltinPermissions)
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Email    string
	Password string
	FullName string
	OfficeID string
}

// RegistrationResult is returned after a successful registration; the OTP
// itself travels only through the mail collaborator.
type RegistrationResult struct {
	UserID       string
	Token        string
	ExpiryTime   int64
	IntervalTime int64
}

// Register creates (or refreshes) an unverified user and issues a
// verification code. A verified user with the same email is a conflict; an
// unverified one has its mutable fields updated and any pending unexpired
// code reused.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegistrationResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return RegistrationResult{}, err
	}
	fullName := strings.TrimSpace(req.FullName)
	if len(fullName) < 2 || len(fullName) > 50 {
		return RegistrationResult{}, InvalidField("fullName", "full name must be between 2 and 50 characters")
	}
	officeID := strings.TrimSpace(req.OfficeID)
	if officeID == "" {
		return RegistrationResult{}, InvalidField("officeId", "office ID is required")
	}

	users := s.store.Users(ctx)
	user, err := users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if user.EmailVerified {
			return RegistrationResult{}, &FieldError{
				Err:    fmt.Errorf("%w: this email is already registered", ErrConflict),
				Fields: map[string]string{"email": "This email is already registered."},
			}
		}
		user.FullName = fullName
		user.OfficeID = officeID
		if err := users.Update(ctx, user); err != nil {
			return RegistrationResult{}, err
		}
	case errors.Is(err, ErrNotFound):
		if err := ValidatePassword(req.Password); err != nil {
			return RegistrationResult{}, err
		}
		hash, err := HashPassword(req.Password)
		if err != nil {
			return RegistrationResult{}, err
		}
		now := s.now().UTC()
		user = &User{
			ID:           ids.New(),
			Email:        email,
			PasswordHash: hash,
			FullName:     fullName,
			OfficeID:     officeID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Create(ctx, user); err != nil {
			// A concurrent registration can win the unique-email race; the
			// store surfaces it as a conflict, same as the verified case.
			if errors.Is(err, ErrConflict) {
				return RegistrationResult{}, &FieldError{
					Err:    fmt.Errorf("%w: this email is already registered", ErrConflict),
					Fields: map[string]string{"email": "This email is already registered."},
				}
			}
			return RegistrationResult{}, err
		}
	default:
		return RegistrationResult{}, err
	}

	issue, err := s.otp.Issue(ctx, user)
	if err != nil {
		return RegistrationResult{}, err
	}
	s.sendOTP(ctx, user)
	obs.CountAuthAttempt("register", "success")

	return RegistrationResult{
		UserID:       user.ID,
		Token:        issue.Token,
		ExpiryTime:   issue.ExpiryTime,
		IntervalTime: issue.IntervalTime,
	}, nil
}

// VerifyOTPResult reports whether the temporary-password variant fired.
type VerifyOTPResult struct {
	TempPasswordSent bool
}

// VerifyOTP validates the submitted code against the pending one. With the
// temporary-password variant enabled, the account password is rotated to a
// random value in the same write that marks the email verified, then mailed,
// forcing a first-login reset.
func (s *Service) VerifyOTP(ctx context.Context, token, code string) (VerifyOTPResult, error) {
	var temp string
	var rotate func(*User)
	if s.tempPasswordOnVerify {
		generated, err := GenerateTempPassword(10)
		if err != nil {
			return VerifyOTPResult{}, err
		}
		hash, err := HashPassword(generated)
		if err != nil {
			return VerifyOTPResult{}, err
		}
		temp = generated
		rotate = func(u *User) { u.PasswordHash = hash }
	}

	user, err := s.otp.Validate(ctx, token, code, rotate)
	if err != nil {
		obs.CountAuthAttempt("verify_otp", "failure")
		return VerifyOTPResult{}, err
	}

	result := VerifyOTPResult{}
	if s.tempPasswordOnVerify {
		if err := s.mail.SendTempPassword(ctx, user.Email, user.FullName, temp); err != nil {
			// User is already verified; delivery failure is logged, not fatal.
			obs.Error("temp password delivery failed", map[string]any{"user_id": user.ID, "err": err.Error()})
		}
		result.TempPasswordSent = true
	}
	obs.CountAuthAttempt("verify_otp", "success")
	return result, nil
}

// ResendOTP mints a fresh verification code with a full validity window for
// a known email, replacing any pending code. Reuse of a pending code is
// reserved for repeated registration submissions.
func (s *Service) ResendOTP(ctx context.Context, email string) (OTPIssue, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return OTPIssue{}, err
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return OTPIssue{}, &FieldError{
				Err:    fmt.Errorf("%w: user not found", ErrNotFound),
				Fields: map[string]string{"email": "No account found with this email address"},
			}
		}
		return OTPIssue{}, err
	}
	issue, err := s.otp.Reissue(ctx, user)
	if err != nil {
		return OTPIssue{}, err
	}
	s.sendOTP(ctx, user)
	return issue, nil
}

// LoginResult carries the issued token pair and the authenticated profile.
type LoginResult struct {
	Tokens TokenPair
	User   *User
}

// Login authenticates email+password and issues a token pair. Unknown email
// and wrong password are indistinguishable to the caller; an unverified (or,
// when approval is required, unapproved) account is forbidden.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		obs.CountAuthAttempt("login", "failure")
		return nil, invalidCredentials()
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		obs.CountAuthAttempt("login", "failure")
		if errors.Is(err, ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		obs.CountAuthAttempt("login", "failure")
		return nil, invalidCredentials()
	}
	if !user.EmailVerified {
		obs.CountAuthAttempt("login", "unverified")
		return nil, &FieldError{
			Err:    fmt.Errorf("%w: please verify your email first", ErrForbidden),
			Fields: map[string]string{"email": "Please verify your email address to continue"},
		}
	}
	if s.requireApproval && !user.Approved {
		obs.CountAuthAttempt("login", "unapproved")
		return nil, fmt.Errorf("%w: account is pending approval", ErrForbidden)
	}
	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, err
	}
	obs.CountAuthAttempt("login", "success")
	return &LoginResult{Tokens: pair, User: user}, nil
}

// Refresh exchanges a valid refresh token for a fresh token pair bound to
// the same user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		obs.CountAuthAttempt("refresh", "failure")
		return TokenPair{}, fmt.Errorf("%w: invalid or expired refresh token", ErrUnauthorized)
	}
	user, err := s.store.Users(ctx).FindByID(ctx, claims.Subject)
	if err != nil {
		obs.CountAuthAttempt("refresh", "failure")
		return TokenPair{}, fmt.Errorf("%w: invalid or expired refresh token", ErrUnauthorized)
	}
	pair, err := s.issueTokenPair(user)
	if err != nil {
		return TokenPair{}, err
	}
	obs.CountAuthAttempt("refresh", "success")
	return pair, nil
}

// ResetPassword replaces the stored hash after verifying the temporary
// password issued during verification.
func (s *Service) ResetPassword(ctx context.Context, email, tempPassword, newPassword string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &FieldError{
				Err:    fmt.Errorf("%w: user not found", ErrNotFound),
				Fields: map[string]string{"email": "No account found with this email address"},
			}
		}
		return err
	}
	if err := VerifyPassword(user.PasswordHash, tempPassword); err != nil {
		return &FieldError{
			Err:    fmt.Errorf("%w: invalid temporary password", ErrUnauthorized),
			Fields: map[string]string{"tempPassword": "The temporary password you entered is incorrect"},
		}
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.store.Users(ctx).Update(ctx, user)
}

// Principal loads a user with the materialized permission set of their role.
// Role and permissions are fetched with explicit lookups on every call.
func (s *Service) Principal(ctx context.Context, userID string) (Principal, error) {
	user, err := s.store.Users(ctx).FindByID(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	principal := Principal{User: user, Permissions: map[string]struct{}{}}
	if user.RoleID == "" {
		return principal, nil
	}
	role, err := s.store.Roles(ctx).FindByID(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return principal, nil
		}
		return Principal{}, err
	}
	principal.Role = role
	perms, err := s.store.Roles(ctx).PermissionsForRole(ctx, role.ID)
	if err != nil {
		return Principal{}, err
	}
	for _, p := range perms {
		principal.Permissions[p.Name] = struct{}{}
	}
	return principal, nil
}

// AuthenticateToken validates an access token and resolves the caller's
// principal. The user record is re-fetched from the store; claims are never
// trusted for authorization.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (Principal, error) {
	claims, err := s.tokens.Verify(token, TokenTypeAccess)
	if err != nil {
		return Principal{}, err
	}
	principal, err := s.Principal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	return principal, nil
}

// Require ensures the user holds the named permission.
func (s *Service) Require(ctx context.Context, userID, perm string) (Principal, error) {
	principal, err := s.Principal(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	if !principal.HasPermission(perm) {
		return Principal{}, ErrForbidden
	}
	return principal, nil
}

func (s *Service) issueTokenPair(user *User) (TokenPair, error) {
	access, accessIn, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.FullName)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshIn, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresIn:  accessIn,
		RefreshToken:     refresh,
		RefreshExpiresIn: refreshIn,
	}, nil
}

func (s *Service) sendOTP(ctx context.Context, user *User) {
	if err := s.mail.SendOTP(ctx, user.Email, user.FullName, user.OTPCode); err != nil {
		obs.Error("otp delivery failed", map[string]any{"user_id": user.ID, "err": err.Error()})
	}
}

func invalidCredentials() error {
	// One message for unknown email and wrong password: no account
	// enumeration through the error shape.
	return &FieldError{
		Err:    fmt.Errorf("%w: invalid credentials", ErrUnauthorized),
		Fields: map[string]string{"email": "Invalid email or password"},
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", InvalidField("email", "Email address is required")
	}
	if !emailPattern.MatchString(email) {
		return "", InvalidField("email", "Please enter a valid email address")
	}
	return email, nil
}
