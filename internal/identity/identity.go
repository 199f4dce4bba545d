// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package identity issues the identification handles used to address
// add-ons, managers and listeners throughout the runtime.
//
// An Identification obtained through Registry.Identify is "self-minted": the
// holder proved it owns the registered instance. Handles obtained through
// Registry.Lookup only name an entity and are never accepted as event sources.
package identity

// Identifiable is any entity that can be registered with a Registry.
type Identifiable interface {
	// ID returns the unique, stable identifier of the entity.
	ID() string
}

// Identification is an opaque handle for a registered entity.
//
// The zero value is the absent identification.
type Identification struct {
	id         string
	selfMinted bool
}

// Named returns a handle that only names an entity. Such handles are never
// self-minted; they are used for provider and consumer constraints.
func Named(id string) Identification {
	return Identification{id: id}
}

// ID returns the identifier the handle refers to.
func (i Identification) ID() string {
	return i.id
}

// IsSelfMinted reports whether the handle was issued to the entity itself.
func (i Identification) IsSelfMinted() bool {
	return i.selfMinted
}

// IsZero reports whether the handle is the absent identification.
func (i Identification) IsZero() bool {
	return i.id == ""
}

// Equal reports whether both handles refer to the same entity. The
// self-minted flag does not take part in the comparison.
func (i Identification) Equal(other Identification) bool {
	return i.id == other.id
}

// String implements fmt.Stringer.
func (i Identification) String() string {
	if i.id == "" {
		return "<none>"
	}
	return i.id
}

// Entity is a minimal Identifiable for components that have no richer type
// of their own. Each *Entity is a distinct instance, so only its creator can
// obtain a self-minted handle for it.
type Entity struct {
	id string
}

// NewEntity creates an entity with the given ID.
func NewEntity(id string) *Entity {
	return &Entity{id: id}
}

// ID implements Identifiable.
func (e *Entity) ID() string {
	return e.id
}
