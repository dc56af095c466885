package auth

// Permission names used by the admin surface.
const (
	PermRoleCreate = "role.create"
	PermRoleRead   = "role.read"
	PermRoleUpdate = "role.update"
	PermRoleDelete = "role.delete"

	PermPermissionCreate = "permission.create"
	PermPermissionRead   = "permission.read"
	PermPermissionUpdate = "permission.update"
	PermPermissionDelete = "permission.delete"

	PermUserApprove = "user.approve"
	PermUserRead    = "user.read"
	PermUserUpdate  = "user.update"
	PermUserDelete  = "user.delete"
)

// BuiltinPermissions is the seed catalog ensured at startup.
var BuiltinPermissions = []Permission{
	{Name: PermRoleCreate, Description: "Create new roles"},
	{Name: PermRoleRead, Description: "View roles"},
	{Name: PermRoleUpdate, Description: "Update existing roles"},
	{Name: PermRoleDelete, Description: "Delete roles"},
	{Name: PermPermissionCreate, Description: "Create new permissions"},
	{Name: PermPermissionRead, Description: "View permissions"},
	{Name: PermPermissionUpdate, Description: "Update existing permissions"},
	{Name: PermPermissionDelete, Description: "Delete permissions"},
	{Name: PermUserApprove, Description: "Approve user registrations"},
	{Name: PermUserRead, Description: "View user details"},
	{Name: PermUserUpdate, Description: "Update user details"},
	{Name: PermUserDelete, Description: "Delete users"},
}
