// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package distributor

import (
	"slices"
	"sync"
	"sync/atomic"
)

// subscriptions maps information strings to listeners. Readers take a
// snapshot without locking; writers replace the whole map. A dispatch that
// is already running may therefore miss or include a concurrent change.
type subscriptions struct {
	mu   sync.Mutex
	byID atomic.Pointer[map[string][]Listener]
}

func newSubscriptions() *subscriptions {
	s := &subscriptions{}
	empty := map[string][]Listener{}
	s.byID.Store(&empty)
	return s
}

func (s *subscriptions) add(ids []string, l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.clone()
	for _, id := range ids {
		if id == "" || containsListener(next[id], l.ID()) {
			continue
		}
		next[id] = append(slices.Clone(next[id]), l)
	}
	s.byID.Store(&next)
}

// remove drops l from ids, or from every id when ids is empty.
func (s *subscriptions) remove(ids []string, l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.clone()
	if len(ids) == 0 {
		for id := range next {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		listeners := slices.DeleteFunc(slices.Clone(next[id]), func(x Listener) bool {
			return x.ID() == l.ID()
		})
		if len(listeners) == 0 {
			delete(next, id)
		} else {
			next[id] = listeners
		}
	}
	s.byID.Store(&next)
}

// matching returns the union of listeners subscribed to any of info, each
// listener once.
func (s *subscriptions) matching(info []string) []Listener {
	byID := *s.byID.Load()
	var out []Listener
	for _, id := range info {
		for _, l := range byID[id] {
			if !containsListener(out, l.ID()) {
				out = append(out, l)
			}
		}
	}
	return out
}

func (s *subscriptions) clone() map[string][]Listener {
	current := *s.byID.Load()
	next := make(map[string][]Listener, len(current))
	for id, listeners := range current {
		next[id] = listeners
	}
	return next
}

func containsListener(listeners []Listener, id string) bool {
	return slices.ContainsFunc(listeners, func(l Listener) bool { return l.ID() == id })
}
