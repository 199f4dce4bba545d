// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import (
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/samber/oops"
)

// Error codes returned by the registry.
const (
	CodeInvalidIdentifiable   = "INVALID_IDENTIFIABLE"
	CodeDuplicateIdentifiable = "DUPLICATE_IDENTIFIABLE"
)

// Registry is the directory from registered entities to their handles.
// One registry is shared by every component of a runtime.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]Identifiable
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]Identifiable),
	}
}

// Register adds an entity to the registry.
//
// Registering the same instance again succeeds without creating a second
// entry. Registering a different instance under an ID that is already taken
// fails with CodeDuplicateIdentifiable and leaves the first entry in place.
// Identifiables whose dynamic type is not comparable cannot be identified
// later and are rejected with CodeInvalidIdentifiable.
func (r *Registry) Register(entity Identifiable) error {
	if isNil(entity) {
		return oops.Code(CodeInvalidIdentifiable).Errorf("identifiable is nil")
	}
	id := entity.ID()
	if id == "" {
		return oops.Code(CodeInvalidIdentifiable).
			With("type", reflect.TypeOf(entity).String()).
			Errorf("identifiable has an empty ID")
	}

	if !reflect.TypeOf(entity).Comparable() {
		return oops.Code(CodeInvalidIdentifiable).
			With("id", id).
			With("type", reflect.TypeOf(entity).String()).
			Errorf("identifiable type is not comparable")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entities[id]; ok {
		if sameInstance(existing, entity) {
			return nil
		}
		slog.Warn("rejected duplicate identifiable",
			"id", id,
			"existing_type", reflect.TypeOf(existing).String(),
			"new_type", reflect.TypeOf(entity).String())
		return oops.Code(CodeDuplicateIdentifiable).
			With("id", id).
			Errorf("another instance is already registered as %q", id)
	}

	r.entities[id] = entity
	return nil
}

// Unregister removes the entity if exactly this instance is registered.
// It reports whether an entry was removed.
func (r *Registry) Unregister(entity Identifiable) bool {
	if isNil(entity) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := entity.ID()
	existing, ok := r.entities[id]
	if !ok || !sameInstance(existing, entity) {
		return false
	}
	delete(r.entities, id)
	return true
}

// Identify returns a self-minted handle for entity. It only succeeds when
// this exact instance was registered.
func (r *Registry) Identify(entity Identifiable) (Identification, bool) {
	if isNil(entity) {
		return Identification{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id := entity.ID()
	existing, ok := r.entities[id]
	if !ok || !sameInstance(existing, entity) {
		return Identification{}, false
	}
	return Identification{id: id, selfMinted: true}, true
}

// Lookup returns a handle for the entity registered under id. The handle is
// never self-minted.
func (r *Registry) Lookup(id string) (Identification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.entities[id]; !ok {
		return Identification{}, false
	}
	return Identification{id: id}, true
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// IDs returns the registered IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sameInstance compares two registered values by identity.
func sameInstance(a, b Identifiable) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func isNil(entity Identifiable) bool {
	if entity == nil {
		return true
	}
	v := reflect.ValueOf(entity)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
