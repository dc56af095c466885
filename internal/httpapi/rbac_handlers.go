package httpapi

import (
	"net/http"
	"strings"
	"time"

	"sportsroz.org/internal/audit"
	"sportsroz.org/internal/auth"
)

// requirePermission checks the caller's resolved permission set. The authn
// middleware has already populated the principal for private routes.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, perm string) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return auth.Principal{}, false
	}
	if !principal.HasPermission(perm) {
		writeError(w, r, http.StatusForbidden, "permission denied: "+perm)
		return auth.Principal{}, false
	}
	return principal, true
}

// resourceID extracts the trailing path segments after prefix, e.g.
// /private/roles/abc/permissions → ["abc", "permissions"].
func resourceID(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

type roleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handleRolesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermRoleRead); !ok {
			return
		}
		roles, err := a.rbac.ListRoles(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	case http.MethodPost:
		principal, ok := a.requirePermission(w, r, auth.PermRoleCreate)
		if !ok {
			return
		}
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.CreateRole(r.Context(), req.Name, req.Description)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role_created", map[string]any{
			"role_id": role.ID, "actor": principal.User.ID,
		})
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	segments := resourceID(r.URL.Path, privatePrefix+"/roles")
	switch len(segments) {
	case 1:
		a.handleRoleByID(w, r, segments[0])
	case 2:
		if segments[1] != "permissions" {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleRolePermissions(w, r, segments[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRoleByID(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermRoleRead); !ok {
			return
		}
		role, perms, err := a.rbac.GetRole(r.Context(), roleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"role": role, "permissions": perms})
	case http.MethodPut:
		principal, ok := a.requirePermission(w, r, auth.PermRoleUpdate)
		if !ok {
			return
		}
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.UpdateRole(r.Context(), roleID, req.Name, req.Description)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role_updated", map[string]any{
			"role_id": roleID, "actor": principal.User.ID,
		})
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		principal, ok := a.requirePermission(w, r, auth.PermRoleDelete)
		if !ok {
			return
		}
		if err := a.rbac.DeleteRole(r.Context(), roleID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role_deleted", map[string]any{
			"role_id": roleID, "actor": principal.User.ID,
		})
		writeJSON(w, http.StatusOK, map[string]any{"message": "Role deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

type rolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	principal, ok := a.requirePermission(w, r, auth.PermRoleUpdate)
	if !ok {
		return
	}
	var req rolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.rbac.SetRolePermissions(r.Context(), roleID, req.Permissions); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role_permissions_set", map[string]any{
		"role_id": roleID, "count": len(req.Permissions), "actor": principal.User.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Role permissions updated"})
}

type permissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handlePermissionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermPermissionRead); !ok {
			return
		}
		perms, err := a.rbac.ListPermissions(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
	case http.MethodPost:
		principal, ok := a.requirePermission(w, r, auth.PermPermissionCreate)
		if !ok {
			return
		}
		var req permissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.rbac.CreatePermission(r.Context(), req.Name, req.Description)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.permission_created", map[string]any{
			"permission_id": perm.ID, "actor": principal.User.ID,
		})
		writeJSON(w, http.StatusCreated, perm)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePermissionResource(w http.ResponseWriter, r *http.Request) {
	segments := resourceID(r.URL.Path, privatePrefix+"/permissions")
	if len(segments) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	principal, ok := a.requirePermission(w, r, auth.PermPermissionDelete)
	if !ok {
		return
	}
	if err := a.rbac.DeletePermission(r.Context(), segments[0]); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.permission_deleted", map[string]any{
		"permission_id": segments[0], "actor": principal.User.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Permission deleted"})
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requirePermission(w, r, auth.PermUserRead); !ok {
		return
	}
	users, err := a.rbac.ListUsers(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type approveUserRequest struct {
	RoleID string `json:"roleId"`
}

type updateProfileRequest struct {
	FullName    *string  `json:"fullName"`
	OfficeID    *string  `json:"officeId"`
	JerseyName  *string  `json:"jerseyName"`
	SportTypes  []string `json:"sportTypes"`
	DateOfBirth *string  `json:"dateOfBirth"`
	Gender      *string  `json:"gender"`
	Contact     *string  `json:"contact"`
	PictureURL  *string  `json:"pictureUrl"`
}

func profileUpdateOf(req updateProfileRequest) (auth.ProfileUpdate, error) {
	upd := auth.ProfileUpdate{
		FullName:   req.FullName,
		OfficeID:   req.OfficeID,
		JerseyName: req.JerseyName,
		SportTypes: req.SportTypes,
		Gender:     req.Gender,
		Contact:    req.Contact,
		PictureURL: req.PictureURL,
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			return auth.ProfileUpdate{}, auth.InvalidField("dateOfBirth", "date of birth must be YYYY-MM-DD")
		}
		upd.DateOfBirth = &dob
	}
	return upd, nil
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	segments := resourceID(r.URL.Path, privatePrefix+"/users")
	switch len(segments) {
	case 1:
		a.handleUserByID(w, r, segments[0])
	case 2:
		if segments[1] != "approve" {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleUserApprove(w, r, segments[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUserByID(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermUserRead); !ok {
			return
		}
		user, err := a.rbac.GetUser(r.Context(), userID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		// Users may edit their own profile; editing others needs user.update.
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if principal.User.ID != userID && !principal.HasPermission(auth.PermUserUpdate) {
			writeError(w, r, http.StatusForbidden, "permission denied: "+auth.PermUserUpdate)
			return
		}
		var req updateProfileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd, err := profileUpdateOf(req)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		user, err := a.rbac.UpdateProfile(r.Context(), userID, upd)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "user.profile_updated", map[string]any{
			"user_id": userID, "actor": principal.User.ID,
		})
		writeJSON(w, http.StatusOK, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleUserApprove(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := a.requirePermission(w, r, auth.PermUserApprove)
	if !ok {
		return
	}
	var req approveUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.rbac.ApproveUser(r.Context(), userID, req.RoleID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.approved", map[string]any{
		"user_id": userID, "role_id": req.RoleID, "actor": principal.User.ID,
	})
	writeJSON(w, http.StatusOK, user)
}
