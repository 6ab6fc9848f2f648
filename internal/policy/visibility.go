package policy

import "github.com/celerix-dev/celerix-crm/pkg/schema"

// CanSeeClient reports whether id may see c.
func CanSeeClient(id schema.Identity, c schema.Client) bool {
	return CanViewAllClients(id.Role) || c.CreatedBy == id.ID
}

// CanSeeActivity reports whether id may see a.
// Activities follow the same rule as clients.
func CanSeeActivity(id schema.Identity, a schema.Activity) bool {
	return CanViewAllClients(id.Role) || a.CreatedBy == id.ID
}

// CanModifyClient reports whether id may edit c.
func CanModifyClient(id schema.Identity, c schema.Client) bool {
	return CanManageClients(id.Role) && CanSeeClient(id, c)
}

// CanModifyActivity reports whether id may edit or delete a.
func CanModifyActivity(id schema.Identity, a schema.Activity) bool {
	return CanManageActivities(id.Role) && CanSeeActivity(id, a)
}

// VisibleClients returns the clients id may see, in their original order.
func VisibleClients(id schema.Identity, clients []schema.Client) []schema.Client {
	out := make([]schema.Client, 0, len(clients))
	for _, c := range clients {
		if CanSeeClient(id, c) {
			out = append(out, c)
		}
	}
	return out
}

// VisibleActivities returns the activities id may see, in their original order.
func VisibleActivities(id schema.Identity, activities []schema.Activity) []schema.Activity {
	out := make([]schema.Activity, 0, len(activities))
	for _, a := range activities {
		if CanSeeActivity(id, a) {
			out = append(out, a)
		}
	}
	return out
}
