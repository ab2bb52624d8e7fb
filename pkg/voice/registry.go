package voice

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNotFound is returned when a voice identifier is not registered.
var ErrNotFound = errors.New("voice not found")

// Registry is an in-memory mapping from voice identifier to [Voice] that
// remembers insertion order.
//
// Registry performs no locking. The owner must not mutate it while a
// generation that reads it is in flight.
type Registry struct {
	voices map[string]Voice
	order  []string
}

// NewRegistry returns a registry pre-populated with voices. Later duplicates
// replace earlier ones.
func NewRegistry(voices ...Voice) *Registry {
	r := &Registry{voices: make(map[string]Voice, len(voices))}
	r.UpsertMany(voices)
	return r
}

// UpsertMany inserts or replaces each voice by identifier.
func (r *Registry) UpsertMany(voices []Voice) {
	for _, v := range voices {
		r.Upsert(v)
	}
}

// Upsert inserts v, or replaces the voice with the same identifier while
// keeping its original position.
func (r *Registry) Upsert(v Voice) {
	if _, ok := r.voices[v.ID]; !ok {
		r.order = append(r.order, v.ID)
	}
	r.voices[v.ID] = v
}

// Remove deletes the voice with the given identifier. It returns an error
// wrapping [ErrNotFound] when the identifier is absent.
func (r *Registry) Remove(id string) error {
	if _, ok := r.voices[id]; !ok {
		return fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}
	delete(r.voices, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	return nil
}

// List returns all voices in insertion order.
func (r *Registry) List() []Voice {
	out := make([]Voice, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.voices[id])
	}
	return out
}

// Resolve returns the voice for id and whether it exists.
func (r *Registry) Resolve(id string) (Voice, bool) {
	v, ok := r.voices[id]
	return v, ok
}

// Len returns the number of registered voices.
func (r *Registry) Len() int { return len(r.voices) }
