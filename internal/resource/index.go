// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resource

import (
	"slices"

	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/identity"
)

// entry is the registration record of one builder.
type entry struct {
	builder   Builder
	provider  identity.Identification
	resources []core.Resource
	events    []string
}

// index is an immutable snapshot of the registrations. Writers build a new
// index and swap it in; readers never lock.
type index struct {
	entries    []*entry
	byResource map[string][]*entry
	byEvent    map[string][]*entry
}

func newIndex(entries []*entry) *index {
	idx := &index{
		entries:    entries,
		byResource: make(map[string][]*entry),
		byEvent:    make(map[string][]*entry),
	}
	for _, e := range entries {
		for _, r := range e.resources {
			if !slices.Contains(idx.byResource[r.ID], e) {
				idx.byResource[r.ID] = append(idx.byResource[r.ID], e)
			}
		}
		for _, ev := range e.events {
			if !slices.Contains(idx.byEvent[ev], e) {
				idx.byEvent[ev] = append(idx.byEvent[ev], e)
			}
		}
	}
	return idx
}

// position returns the registration position of e, used to keep fan-out
// results in a stable order.
func (idx *index) position(e *entry) int {
	return slices.Index(idx.entries, e)
}

// forInformation returns the builders triggered by any of info, without
// duplicates, in registration order.
func (idx *index) forInformation(info []string) []*entry {
	var matched []*entry
	for _, s := range info {
		for _, e := range idx.byEvent[s] {
			if !slices.Contains(matched, e) {
				matched = append(matched, e)
			}
		}
	}
	slices.SortFunc(matched, func(a, b *entry) int {
		return idx.position(a) - idx.position(b)
	})
	return matched
}

// forRequest returns the builders that can serve the request, honouring a
// provider constraint, in registration order.
func (idx *index) forRequest(request core.Resource) []*entry {
	var matched []*entry
	for _, e := range idx.byResource[request.ID] {
		if request.MatchesProvider(e.provider) {
			matched = append(matched, e)
		}
	}
	return matched
}
