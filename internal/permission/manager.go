// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package permission checks add-on permissions and arbitrates exclusive
// claims on shared resources such as audio output.
//
// Grant patterns use gobwas/glob with '.' as the segment separator:
//   - '*' matches a single segment
//   - '**' matches zero or more segments
//
// Examples:
//   - "claim.audio" matches only "claim.audio"
//   - "claim.*" matches "claim.audio" but not "claim.audio.line"
//   - "**" matches any permission
package permission

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/holomush/izou/internal/identity"
)

// ClaimPrefix is prepended to a resource name to form the permission an
// add-on needs to claim it.
const ClaimPrefix = "claim."

// Checker is the permission contract used by add-on facing code.
type Checker interface {
	CheckPermission(ctx context.Context, permission string, addon identity.Identification) error
}

type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// Manager holds grants per add-on and the current resource claims.
//
// Manager is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	grants map[string][]compiledGrant
	claims map[string]string // resource -> holder add-on ID
}

// NewManager creates an empty permission manager.
func NewManager() *Manager {
	return &Manager{
		grants: make(map[string][]compiledGrant),
		claims: make(map[string]string),
	}
}

// SetGrants replaces the permissions of addon. Nothing changes when any
// pattern is invalid.
func (m *Manager) SetGrants(addon string, patterns []string) error {
	if addon == "" {
		return oops.Code(CodeInvalidGrant).Errorf("add-on ID cannot be empty")
	}

	compiled := make([]compiledGrant, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			return oops.Code(CodeInvalidGrant).
				With("addon", addon).
				With("index", i).
				Errorf("empty permission pattern")
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return oops.Code(CodeInvalidGrant).
				With("addon", addon).
				With("pattern", pattern).
				Wrapf(err, "compile permission pattern")
		}
		compiled[i] = compiledGrant{pattern: pattern, glob: g}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[addon] = compiled
	return nil
}

// RemoveGrants drops every grant of addon.
func (m *Manager) RemoveGrants(addon string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, addon)
}

// Grants returns a copy of the patterns granted to addon, or nil.
func (m *Manager) Grants(addon string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	grants, ok := m.grants[addon]
	if !ok {
		return nil
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}

// AddOns returns the add-ons that have grants, sorted.
func (m *Manager) AddOns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	addons := make([]string, 0, len(m.grants))
	for id := range m.grants {
		addons = append(addons, id)
	}
	sort.Strings(addons)
	return addons
}

// CheckPermission returns CodePermissionDenied unless one of addon's grants
// matches permission.
func (m *Manager) CheckPermission(ctx context.Context, permission string, addon identity.Identification) error {
	m.mu.RLock()
	allowed := m.allowed(permission, addon.ID())
	m.mu.RUnlock()

	if !allowed {
		slog.DebugContext(ctx, "permission denied",
			"permission", permission,
			"addon", addon.ID())
		return ErrPermissionDenied(permission, addon.ID())
	}
	return nil
}

func (m *Manager) allowed(permission, addon string) bool {
	if permission == "" || addon == "" {
		return false
	}
	return slices.ContainsFunc(m.grants[addon], func(g compiledGrant) bool {
		return g.glob.Match(permission)
	})
}

// Claim gives addon exclusive use of resource. The add-on needs the
// permission "claim.<resource>". Claiming a resource it already holds is a
// no-op; a resource held by another add-on fails with CodeResourceConflict.
func (m *Manager) Claim(ctx context.Context, resource string, addon identity.Identification) error {
	if err := m.CheckPermission(ctx, ClaimPrefix+resource, addon); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if holder, ok := m.claims[resource]; ok && holder != addon.ID() {
		return ErrResourceConflict(resource, holder, addon.ID())
	}
	m.claims[resource] = addon.ID()
	slog.DebugContext(ctx, "resource claimed", "resource", resource, "addon", addon.ID())
	return nil
}

// Release frees resource if addon holds it.
func (m *Manager) Release(resource string, addon identity.Identification) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if holder, ok := m.claims[resource]; ok && holder == addon.ID() {
		delete(m.claims, resource)
		return true
	}
	return false
}

// Holder returns the add-on currently holding resource.
func (m *Manager) Holder(resource string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	holder, ok := m.claims[resource]
	return holder, ok
}

// ReleaseAll frees every resource held by addon and returns how many were
// released.
func (m *Manager) ReleaseAll(addon identity.Identification) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	released := 0
	for resource, holder := range m.claims {
		if holder == addon.ID() {
			delete(m.claims, resource)
			released++
		}
	}
	return released
}
