// Package memory implements the auth store interfaces in process memory.
// It backs tests and local bring-up when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sportsroz.org/internal/auth"
	"sportsroz.org/internal/ids"
)

// Store keeps all records behind a single mutex. Adequate for tests and
// development; the pg store is the production implementation.
type Store struct {
	mu          sync.Mutex
	users       map[string]*auth.User // keyed by id
	roles       map[string]*auth.Role
	permissions map[string]*auth.Permission // keyed by id
	rolePerms   map[string][]string         // role id -> permission names
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       map[string]*auth.User{},
		roles:       map[string]*auth.Role{},
		permissions: map[string]*auth.Permission{},
		rolePerms:   map[string][]string{},
	}
}

func (s *Store) Users(context.Context) auth.UserStore             { return (*userStore)(s) }
func (s *Store) Roles(context.Context) auth.RoleStore             { return (*roleStore)(s) }
func (s *Store) Permissions(context.Context) auth.PermissionStore { return (*permissionStore)(s) }

type userStore Store

func (s *userStore) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: email already exists", auth.ErrConflict)
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *userStore) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.TrimSpace(strings.ToLower(email))
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *userStore) Update(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return auth.ErrNotFound
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *userStore) List(_ context.Context) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type roleStore Store

func (s *roleStore) Create(_ context.Context, role *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == role.Name {
			return fmt.Errorf("%w: role name already exists", auth.ErrConflict)
		}
	}
	cp := *role
	s.roles[role.ID] = &cp
	return nil
}

func (s *roleStore) FindByID(_ context.Context, id string) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (s *roleStore) List(_ context.Context) ([]*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.Role, 0, len(s.roles))
	for _, role := range s.roles {
		cp := *role
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *roleStore) Update(_ context.Context, role *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; !ok {
		return auth.ErrNotFound
	}
	for id, existing := range s.roles {
		if id != role.ID && existing.Name == role.Name {
			return fmt.Errorf("%w: role name already exists", auth.ErrConflict)
		}
	}
	cp := *role
	s.roles[role.ID] = &cp
	return nil
}

func (s *roleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.roles, id)
	delete(s.rolePerms, id)
	// Mirrors the SQL schema's "on delete set null" on users.role_id.
	for _, u := range s.users {
		if u.RoleID == id {
			u.RoleID = ""
		}
	}
	return nil
}

func (s *roleStore) SetPermissions(_ context.Context, roleID string, permissionNames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	for _, name := range permissionNames {
		if !s.permissionExistsLocked(name) {
			return fmt.Errorf("%w: unknown permission %s", auth.ErrNotFound, name)
		}
	}
	s.rolePerms[roleID] = append([]string(nil), permissionNames...)
	return nil
}

func (s *roleStore) PermissionsForRole(_ context.Context, roleID string) ([]auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return nil, auth.ErrNotFound
	}
	var out []auth.Permission
	for _, name := range s.rolePerms[roleID] {
		for _, p := range s.permissions {
			if p.Name == name {
				out = append(out, *p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *roleStore) permissionExistsLocked(name string) bool {
	for _, p := range s.permissions {
		if p.Name == name {
			return true
		}
	}
	return false
}

type permissionStore Store

func (s *permissionStore) Create(_ context.Context, perm *auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.permissions {
		if existing.Name == perm.Name {
			return fmt.Errorf("%w: permission name already exists", auth.ErrConflict)
		}
	}
	cp := *perm
	s.permissions[perm.ID] = &cp
	return nil
}

func (s *permissionStore) Ensure(_ context.Context, perms []auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, perm := range perms {
		exists := false
		for _, existing := range s.permissions {
			if existing.Name == perm.Name {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		cp := perm
		if cp.ID == "" {
			cp.ID = ids.New()
		}
		s.permissions[cp.ID] = &cp
	}
	return nil
}

func (s *permissionStore) List(_ context.Context) ([]auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *permissionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	perm, ok := s.permissions[id]
	if !ok {
		return auth.ErrNotFound
	}
	delete(s.permissions, id)
	for roleID, names := range s.rolePerms {
		kept := names[:0]
		for _, name := range names {
			if name != perm.Name {
				kept = append(kept, name)
			}
		}
		s.rolePerms[roleID] = kept
	}
	return nil
}
