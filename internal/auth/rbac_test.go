package auth_test

import (
	"context"
	"errors"
	"testing"

	"sportsroz.org/internal/auth"
	"sportsroz.org/internal/store/memory"
)

func newTestRBAC(t *testing.T) (*auth.RBACService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := auth.NewRBACService(store)
	if err != nil {
		t.Fatalf("new rbac: %v", err)
	}
	if err := store.Permissions(context.Background()).Ensure(context.Background(), auth.BuiltinPermissions); err != nil {
		t.Fatalf("seed permissions: %v", err)
	}
	return svc, store
}

func TestRoleLifecycle(t *testing.T) {
	svc, _ := newTestRBAC(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "coach", "manages a team")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if role.ID == "" || role.Name != "coach" {
		t.Fatalf("unexpected role: %+v", role)
	}

	if _, err := svc.CreateRole(ctx, "coach", "duplicate"); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate name error = %v, want ErrConflict", err)
	}

	updated, err := svc.UpdateRole(ctx, role.ID, "head-coach", "runs the program")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "head-coach" {
		t.Fatalf("name = %s after update", updated.Name)
	}

	roles, err := svc.ListRoles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(roles) != 1 {
		t.Fatalf("len(roles) = %d, want 1", len(roles))
	}

	if err := svc.DeleteRole(ctx, role.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := svc.GetRole(ctx, role.ID); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("get after delete = %v, want ErrNotFound", err)
	}
}

func TestSetRolePermissions(t *testing.T) {
	svc, _ := newTestRBAC(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "coach", "")
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	grants := []string{auth.PermUserRead, auth.PermUserApprove, auth.PermUserRead}
	if err := svc.SetRolePermissions(ctx, role.ID, grants); err != nil {
		t.Fatalf("set permissions: %v", err)
	}

	_, perms, err := svc.GetRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("len(perms) = %d, want 2 (duplicates collapsed)", len(perms))
	}

	if err := svc.SetRolePermissions(ctx, role.ID, []string{"nonexistent.permission"}); err == nil {
		t.Fatal("unknown permission name accepted")
	}

	// Replacement is total, not additive.
	if err := svc.SetRolePermissions(ctx, role.ID, []string{auth.PermRoleRead}); err != nil {
		t.Fatalf("replace permissions: %v", err)
	}
	_, perms, err = svc.GetRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if len(perms) != 1 || perms[0].Name != auth.PermRoleRead {
		t.Fatalf("perms after replace = %+v", perms)
	}
}

func TestCreatePermissionRequiresNamespace(t *testing.T) {
	svc, _ := newTestRBAC(t)
	ctx := context.Background()

	if _, err := svc.CreatePermission(ctx, "nonamespace", ""); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("flat name error = %v, want ErrInvalidInput", err)
	}
	perm, err := svc.CreatePermission(ctx, "report.export", "export season reports")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if perm.Name != "report.export" {
		t.Fatalf("unexpected permission: %+v", perm)
	}
	if _, err := svc.CreatePermission(ctx, "report.export", ""); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate error = %v, want ErrConflict", err)
	}
}

func TestApproveUser(t *testing.T) {
	svc, store := newTestRBAC(t)
	ctx := context.Background()

	user := &auth.User{ID: "u1", Email: "jane@example.com", FullName: "Jane Player", EmailVerified: true}
	if err := store.Users(ctx).Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	role, err := svc.CreateRole(ctx, "player", "")
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	if _, err := svc.ApproveUser(ctx, "u1", "missing-role"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("missing role error = %v, want ErrNotFound", err)
	}

	approved, err := svc.ApproveUser(ctx, "u1", role.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved.Approved || approved.RoleID != role.ID {
		t.Fatalf("user not approved: %+v", approved)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, store := newTestRBAC(t)
	ctx := context.Background()

	user := &auth.User{ID: "u1", Email: "jane@example.com", FullName: "Jane Player"}
	if err := store.Users(ctx).Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	jersey := "JP-10"
	updated, err := svc.UpdateProfile(ctx, "u1", auth.ProfileUpdate{
		JerseyName: &jersey,
		SportTypes: []string{"volleyball", "futsal", "volleyball"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.JerseyName != "JP-10" {
		t.Fatalf("jersey = %s", updated.JerseyName)
	}
	if len(updated.SportTypes) != 2 {
		t.Fatalf("sport types = %v, want deduped pair", updated.SportTypes)
	}
	if updated.FullName != "Jane Player" {
		t.Fatal("untouched field was modified")
	}

	bad := "x"
	if _, err := svc.UpdateProfile(ctx, "u1", auth.ProfileUpdate{FullName: &bad}); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("short name error = %v, want ErrInvalidInput", err)
	}
}
