package crm

import (
	"context"
	"fmt"

	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/celerix-dev/celerix-crm/pkg/sdk"
)

// NoClientName is shown for activities without a resolvable client.
const NoClientName = "No client"

// ListActivities returns a copy of every activity in insertion order.
func (s *Store) ListActivities() []schema.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]schema.Activity(nil), s.activities...)
}

// Activity looks an activity up by id.
func (s *Store) Activity(id string) (schema.Activity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.activityIndexLocked(id); i >= 0 {
		return s.activities[i], true
	}
	return schema.Activity{}, false
}

// ActivitiesForClient returns the activities linked to clientID, in insertion order.
func (s *Store) ActivitiesForClient(clientID string) []schema.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []schema.Activity
	for _, a := range s.activities {
		if clientID != "" && a.ClientID == clientID {
			out = append(out, a)
		}
	}
	return out
}

// ClientName resolves the soft reference of a. Missing or dangling
// references yield NoClientName.
func (s *Store) ClientName(a schema.Activity) string {
	if a.ClientID == "" {
		return NoClientName
	}
	if c, ok := s.Client(a.ClientID); ok {
		return c.Name
	}
	return NoClientName
}

// AddActivity appends a new activity created by the active identity and persists the collection.
func (s *Store) AddActivity(ctx context.Context, fields schema.ActivityFields) (schema.Activity, error) {
	if !fields.Type.Valid() {
		return schema.Activity{}, fmt.Errorf("%w: %q", ErrInvalidActivityType, fields.Type)
	}
	actor, ok := s.actor.Current()
	if !ok {
		return schema.Activity{}, ErrNoActiveIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := schema.Activity{
		ID:          s.newID(),
		Title:       fields.Title,
		Description: fields.Description,
		Date:        fields.Date,
		Type:        fields.Type,
		ClientID:    fields.ClientID,
		CreatedBy:   actor.ID,
		Completed:   fields.Completed,
	}

	s.activities = append(cloneSlice(s.activities), a)
	s.metrics.ObserveMutation(sdk.KeyActivities, "add", len(s.activities))

	return a, s.persistActivitiesLocked(ctx)
}

// UpdateActivity merges patch into the activity with the given id.
// An unknown id leaves the collection unchanged; the collection is persisted either way.
func (s *Store) UpdateActivity(ctx context.Context, id string, patch schema.ActivityPatch) error {
	if patch.Type != nil && !patch.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidActivityType, *patch.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.activityIndexLocked(id); i >= 0 {
		next := cloneSlice(s.activities)
		patch.Apply(&next[i])
		s.activities = next
		s.metrics.ObserveMutation(sdk.KeyActivities, "update", len(s.activities))
	}
	return s.persistActivitiesLocked(ctx)
}

// DeleteActivity removes the activity with the given id.
func (s *Store) DeleteActivity(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.activityIndexLocked(id); i >= 0 {
		next := make([]schema.Activity, 0, len(s.activities)-1)
		next = append(next, s.activities[:i]...)
		next = append(next, s.activities[i+1:]...)
		s.activities = next
		s.metrics.ObserveMutation(sdk.KeyActivities, "delete", len(s.activities))
	}
	return s.persistActivitiesLocked(ctx)
}

func (s *Store) activityIndexLocked(id string) int {
	for i, a := range s.activities {
		if a.ID == id {
			return i
		}
	}
	return -1
}
