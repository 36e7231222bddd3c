package models

// Role represents a user's access level in the system.
// Roles form a total order; authorization checks compare ranks, never names.
type Role int8

const (
	// RoleNone is the zero value and means "no requirement" when used as a
	// room policy threshold. It is never assigned to a user.
	RoleNone Role = iota
	RoleViewer
	RoleEditor
	RoleModerator
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleViewer:    "viewer",
	RoleEditor:    "editor",
	RoleModerator: "moderator",
	RoleAdmin:     "admin",
}

var rolesByName = map[string]Role{
	"viewer":    RoleViewer,
	"editor":    RoleEditor,
	"moderator": RoleModerator,
	"admin":     RoleAdmin,
}

// ParseRole maps a role name to its Role. The second return value is false
// for unknown names (including the empty string).
func ParseRole(name string) (Role, bool) {
	r, ok := rolesByName[name]
	return r, ok
}

// String returns the canonical role name, or "" for RoleNone.
func (r Role) String() string {
	return roleNames[r]
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// Identity is the authenticated (user, role) pair attached to a connection.
// A nil *Identity means the connection is anonymous.
type Identity struct {
	UserID string
	Role   Role
}
