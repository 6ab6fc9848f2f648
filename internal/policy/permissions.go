// Package policy maps roles to capabilities and applies read-time visibility.
//
// Every predicate is a total function over schema.Roles. The CRM store does
// not call into this package; presentation surfaces do, before exposing a
// management operation or rendering a list.
package policy

import "github.com/celerix-dev/celerix-crm/pkg/schema"

// CanManageClients reports whether role may create and edit clients.
func CanManageClients(role schema.Role) bool {
	return role == schema.RoleAdmin || role == schema.RoleSales
}

// CanDeleteClients reports whether role may delete clients.
func CanDeleteClients(role schema.Role) bool {
	return role == schema.RoleAdmin
}

// CanManageActivities reports whether role may create, edit and delete activities.
func CanManageActivities(role schema.Role) bool {
	return role == schema.RoleAdmin || role == schema.RoleSales
}

// CanViewAllClients reports whether role sees records created by others.
func CanViewAllClients(role schema.Role) bool {
	return role == schema.RoleAdmin
}

// IsReadOnly reports whether role has no write capability at all.
func IsReadOnly(role schema.Role) bool {
	return role == schema.RoleSupport
}
