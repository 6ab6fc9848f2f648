// Package schema defines the records shared by every Celerix CRM component.
package schema

// Role is the closed set of account roles. It decides every capability check.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSales   Role = "sales"
	RoleSupport Role = "support"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleSales, RoleSupport}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSales, RoleSupport:
		return true
	}
	return false
}

// Identity is the authenticated account a session acts as.
// It is stored under the "currentUser" key while a session is active.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
