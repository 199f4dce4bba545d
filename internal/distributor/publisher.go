// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package distributor

import (
	"sync/atomic"

	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/identity"
)

// Publisher is the capability to enqueue events. It is issued once per
// identification by RegisterPublisher.
type Publisher struct {
	id      identity.Identification
	d       *Distributor
	revoked atomic.Bool
}

// ID returns the identification the publisher was issued to.
func (p *Publisher) ID() identity.Identification {
	return p.id
}

// Publish enqueues event for the dispatch loop.
func (p *Publisher) Publish(event *core.Event) error {
	if p.revoked.Load() {
		return ErrPublisherRevoked(p.id.ID())
	}
	return p.d.enqueue(event)
}

// RegisterPublisher issues the publish capability for id.
func (d *Distributor) RegisterPublisher(id identity.Identification) (*Publisher, error) {
	if id.IsZero() {
		return nil, errInvalidIdentification(id)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.publishers[id.ID()]; ok {
		return nil, ErrAlreadyRegistered(id.ID())
	}
	p := &Publisher{id: id, d: d}
	d.publishers[id.ID()] = p
	d.logger.Debug("publisher registered", "publisher", id.ID())
	return p, nil
}

// UnregisterPublisher revokes the capability held by id. It is a no-op when
// id holds none.
func (d *Distributor) UnregisterPublisher(id identity.Identification) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.publishers[id.ID()]; ok {
		p.revoked.Store(true)
		delete(d.publishers, id.ID())
		d.logger.Debug("publisher unregistered", "publisher", id.ID())
	}
}
