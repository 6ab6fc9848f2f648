package crm

import (
	"context"

	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/celerix-dev/celerix-crm/pkg/sdk"
)

// ListClients returns a copy of every client in insertion order.
func (s *Store) ListClients() []schema.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]schema.Client, len(s.clients))
	for i, c := range s.clients {
		out[i] = c.Clone()
	}
	return out
}

// Client looks a client up by id.
func (s *Store) Client(id string) (schema.Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.clientIndexLocked(id); i >= 0 {
		return s.clients[i].Clone(), true
	}
	return schema.Client{}, false
}

// AddClient appends a new client created by the active identity and persists the collection.
func (s *Store) AddClient(ctx context.Context, fields schema.ClientFields) (schema.Client, error) {
	actor, ok := s.actor.Current()
	if !ok {
		return schema.Client{}, ErrNoActiveIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	c := schema.Client{
		ID:        s.newID(),
		Name:      fields.Name,
		Company:   fields.Company,
		Email:     fields.Email,
		Phone:     fields.Phone,
		Address:   fields.Address,
		Notes:     fields.Notes,
		Tags:      append([]string{}, fields.Tags...),
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.clients = append(cloneSlice(s.clients), c)
	s.metrics.ObserveMutation(sdk.KeyClients, "add", len(s.clients))

	return c.Clone(), s.persistClientsLocked(ctx)
}

// UpdateClient merges patch into the client with the given id and refreshes UpdatedAt.
// An unknown id leaves the collection unchanged; the collection is persisted either way.
func (s *Store) UpdateClient(ctx context.Context, id string, patch schema.ClientPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.clientIndexLocked(id); i >= 0 {
		next := cloneSlice(s.clients)
		c := next[i].Clone()
		patch.Apply(&c)
		c.UpdatedAt = s.now().UTC()
		next[i] = c
		s.clients = next
		s.metrics.ObserveMutation(sdk.KeyClients, "update", len(s.clients))
	}
	return s.persistClientsLocked(ctx)
}

// DeleteClient removes the client with the given id. Activities that
// reference it are left alone.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.clientIndexLocked(id); i >= 0 {
		next := make([]schema.Client, 0, len(s.clients)-1)
		next = append(next, s.clients[:i]...)
		next = append(next, s.clients[i+1:]...)
		s.clients = next
		s.metrics.ObserveMutation(sdk.KeyClients, "delete", len(s.clients))
	}
	return s.persistClientsLocked(ctx)
}

func (s *Store) clientIndexLocked(id string) int {
	for i, c := range s.clients {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func cloneSlice[T any](in []T) []T {
	return append(make([]T, 0, len(in)+1), in...)
}
