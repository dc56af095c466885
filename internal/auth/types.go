package auth

import "time"

// User represents a registered member of the organization. OTPCode and
// OTPExpiresAt are either both set or both empty; verification clears both.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	OfficeID     string     `json:"office_id"`
	JerseyName   string     `json:"jersey_name,omitempty"`
	SportTypes   []string   `json:"sport_types,omitempty"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	Contact      string     `json:"contact,omitempty"`
	PictureURL   string     `json:"picture_url,omitempty"`

	EmailVerified bool   `json:"is_email_verified"`
	Approved      bool   `json:"is_approved"`
	RoleID        string `json:"role_id,omitempty"`

	OTPCode      string     `json:"-"`
	OTPExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OTPPending reports whether the user has an unexpired verification code.
func (u *User) OTPPending(now time.Time) bool {
	return u.OTPCode != "" && u.OTPExpiresAt != nil && u.OTPExpiresAt.After(now)
}

// ClearOTP removes any pending verification code.
func (u *User) ClearOTP() {
	u.OTPCode = ""
	u.OTPExpiresAt = nil
}

// Role groups permissions under a unique name.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a fine-grained capability with a dot-namespaced name.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TokenPair carries freshly issued bearer credentials and their lifetimes
// in seconds. Neither token is persisted server-side.
type TokenPair struct {
	AccessToken      string `json:"accessToken"`
	AccessExpiresIn  int64  `json:"accessTokenExpiresIn"`
	RefreshToken     string `json:"refreshToken"`
	RefreshExpiresIn int64  `json:"refreshTokenExpiresIn"`
}

// Principal is a user with the resolved permission set of their role.
type Principal struct {
	User        *User
	Role        *Role
	Permissions map[string]struct{}
}

// HasPermission reports whether the principal may execute the named action.
func (p Principal) HasPermission(name string) bool {
	_, ok := p.Permissions[name]
	return ok
}
