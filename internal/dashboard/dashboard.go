// Package dashboard computes the summary figures shown on the CRM home page.
package dashboard

import (
	"sort"
	"strings"
	"time"

	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// MaxUpcoming caps the upcoming list.
const MaxUpcoming = 5

// Summary aggregates an already-scoped set of clients and activities.
type Summary struct {
	TotalClients      int                         `json:"totalClients"`
	TotalActivities   int                         `json:"totalActivities"`
	Completed         int                         `json:"completed"`
	Upcoming          []schema.Activity           `json:"upcoming"`
	ClientsByTag      map[string]int              `json:"clientsByTag"`
	ActivitiesByType  map[schema.ActivityType]int `json:"activitiesByType"`
	NewClientsByMonth [12]int                     `json:"newClientsByMonth"`
}

// Summarize builds a Summary. Upcoming holds the first MaxUpcoming activities,
// in collection order, that are dated after now and not completed.
// NewClientsByMonth is indexed by local calendar month (January = 0) regardless of year.
func Summarize(clients []schema.Client, activities []schema.Activity, now time.Time) Summary {
	s := Summary{
		TotalClients:     len(clients),
		TotalActivities:  len(activities),
		Upcoming:         []schema.Activity{},
		ClientsByTag:     map[string]int{},
		ActivitiesByType: map[schema.ActivityType]int{},
	}

	for _, c := range clients {
		for _, tag := range c.Tags {
			s.ClientsByTag[tag]++
		}
		s.NewClientsByMonth[c.CreatedAt.Local().Month()-1]++
	}

	for _, a := range activities {
		s.ActivitiesByType[a.Type]++
		if a.Completed {
			s.Completed++
			continue
		}
		if a.Date.After(now) && len(s.Upcoming) < MaxUpcoming {
			s.Upcoming = append(s.Upcoming, a)
		}
	}
	return s
}

// ClientFilter narrows a client list the way the client list view does.
type ClientFilter struct {
	// Search matches name, company or email, case-insensitively.
	Search string
	// Tag must be carried by the client when set.
	Tag string
}

// FilterClients applies f, preserving order.
func FilterClients(clients []schema.Client, f ClientFilter) []schema.Client {
	term := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]schema.Client, 0, len(clients))
	for _, c := range clients {
		if term != "" &&
			!strings.Contains(strings.ToLower(c.Name), term) &&
			!strings.Contains(strings.ToLower(c.Company), term) &&
			!strings.Contains(strings.ToLower(c.Email), term) {
			continue
		}
		if f.Tag != "" && !c.HasTag(f.Tag) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Tags returns the distinct tags of clients, sorted.
func Tags(clients []schema.Client) []string {
	seen := map[string]struct{}{}
	for _, c := range clients {
		for _, t := range c.Tags {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NewestFirst returns a copy of activities sorted by date, latest first.
func NewestFirst(activities []schema.Activity) []schema.Activity {
	out := append([]schema.Activity(nil), activities...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
