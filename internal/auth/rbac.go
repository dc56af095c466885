package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"sportsroz.org/internal/ids"
)

// RBACService exposes role, permission and user administration. It performs
// input validation and delegates persistence (including uniqueness) to the
// store.
type RBACService struct {
	store Store
	now   func() time.Time
}

// RBACOption configures RBACService behavior.
type RBACOption func(*RBACService)

// WithRBACClock overrides the time source (useful for tests).
func WithRBACClock(fn func() time.Time) RBACOption {
	return func(s *RBACService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewRBACService constructs the administration service.
func NewRBACService(store Store, opts ...RBACOption) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("auth: rbac store is required")
	}
	s := &RBACService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateRole registers a role with a unique name.
func (s *RBACService) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, InvalidField("name", "role name is required")
	}
	now := s.now().UTC()
	role := &Role{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Roles(ctx).Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// ListRoles returns all roles.
func (s *RBACService) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.store.Roles(ctx).List(ctx)
}

// GetRole returns a role with its materialized permission set.
func (s *RBACService) GetRole(ctx context.Context, roleID string) (*Role, []Permission, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, nil, InvalidField("roleId", "role id is required")
	}
	role, err := s.store.Roles(ctx).FindByID(ctx, roleID)
	if err != nil {
		return nil, nil, err
	}
	perms, err := s.store.Roles(ctx).PermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, nil, err
	}
	return role, perms, nil
}

// UpdateRole renames a role or changes its description.
func (s *RBACService) UpdateRole(ctx context.Context, roleID, name, description string) (*Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, InvalidField("roleId", "role id is required")
	}
	role, err := s.store.Roles(ctx).FindByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		role.Name = name
	}
	role.Description = strings.TrimSpace(description)
	role.UpdatedAt = s.now().UTC()
	if err := s.store.Roles(ctx).Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a role.
func (s *RBACService) DeleteRole(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return InvalidField("roleId", "role id is required")
	}
	return s.store.Roles(ctx).Delete(ctx, roleID)
}

// SetRolePermissions replaces a role's permission set.
func (s *RBACService) SetRolePermissions(ctx context.Context, roleID string, permissions []string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return InvalidField("roleId", "role id is required")
	}
	return s.store.Roles(ctx).SetPermissions(ctx, roleID, dedupeStrings(permissions))
}

// CreatePermission adds a permission to the catalog.
func (s *RBACService) CreatePermission(ctx context.Context, name, description string) (*Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, InvalidField("name", "permission name is required")
	}
	if !strings.Contains(name, ".") {
		return nil, InvalidField("name", "permission name must be dot-namespaced, e.g. role.create")
	}
	perm := &Permission{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Permissions(ctx).Create(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// ListPermissions returns the permission catalog.
func (s *RBACService) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.Permissions(ctx).List(ctx)
}

// DeletePermission removes a permission from the catalog.
func (s *RBACService) DeletePermission(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return InvalidField("permissionId", "permission id is required")
	}
	return s.store.Permissions(ctx).Delete(ctx, id)
}

// ListUsers returns all registered users.
func (s *RBACService) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.Users(ctx).List(ctx)
}

// GetUser returns one user.
func (s *RBACService) GetUser(ctx context.Context, userID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, InvalidField("userId", "user id is required")
	}
	return s.store.Users(ctx).FindByID(ctx, userID)
}

// ApproveUser marks a user approved and assigns their role. The auth
// orchestrator respects the resulting state at login when approval gating
// is enabled.
func (s *RBACService) ApproveUser(ctx context.Context, userID, roleID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return nil, InvalidField("roleId", "user id and role id are required")
	}
	if _, err := s.store.Roles(ctx).FindByID(ctx, roleID); err != nil {
		return nil, err
	}
	user, err := s.store.Users(ctx).FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Approved = true
	user.RoleID = roleID
	user.UpdatedAt = s.now().UTC()
	if err := s.store.Users(ctx).Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ProfileUpdate carries the optional profile fields an admin or the user
// may change. Nil pointers leave the field untouched.
type ProfileUpdate struct {
	FullName    *string
	OfficeID    *string
	JerseyName  *string
	SportTypes  []string
	DateOfBirth *time.Time
	Gender      *string
	Contact     *string
	PictureURL  *string
}

// UpdateProfile applies a partial profile update.
func (s *RBACService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, InvalidField("userId", "user id is required")
	}
	user, err := s.store.Users(ctx).FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if len(name) < 2 || len(name) > 50 {
			return nil, InvalidField("fullName", "full name must be between 2 and 50 characters")
		}
		user.FullName = name
	}
	if upd.OfficeID != nil {
		office := strings.TrimSpace(*upd.OfficeID)
		if office == "" {
			return nil, InvalidField("officeId", "office ID is required")
		}
		user.OfficeID = office
	}
	if upd.JerseyName != nil {
		user.JerseyName = strings.TrimSpace(*upd.JerseyName)
	}
	if upd.SportTypes != nil {
		user.SportTypes = dedupeStrings(upd.SportTypes)
	}
	if upd.DateOfBirth != nil {
		user.DateOfBirth = upd.DateOfBirth
	}
	if upd.Gender != nil {
		user.Gender = strings.TrimSpace(*upd.Gender)
	}
	if upd.Contact != nil {
		user.Contact = strings.TrimSpace(*upd.Contact)
	}
	if upd.PictureURL != nil {
		user.PictureURL = strings.TrimSpace(*upd.PictureURL)
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.store.Users(ctx).Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
