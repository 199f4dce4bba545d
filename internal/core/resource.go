// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core

import (
	"fmt"

	"github.com/holomush/izou/internal/identity"
)

// Resource is a named data container attached to events or returned from
// explicit requests.
//
// A resource without payload is a request template; the same shape with a
// payload is a fulfilled resource.
type Resource struct {
	// ID names what the resource is, e.g. "weather.forecast".
	ID string
	// Provider is who can or did produce the resource. Zero means any.
	Provider identity.Identification
	// Consumer is who asked for the resource. Zero means unknown.
	Consumer identity.Identification
	// Payload is the resource data. Nil for request templates.
	Payload any
}

// NewRequest creates a request template for the resource ID.
func NewRequest(id string) Resource {
	return Resource{ID: id}
}

// WithProvider returns a copy constrained to (or produced by) provider.
func (r Resource) WithProvider(provider identity.Identification) Resource {
	r.Provider = provider
	return r
}

// WithConsumer returns a copy recording the consumer.
func (r Resource) WithConsumer(consumer identity.Identification) Resource {
	r.Consumer = consumer
	return r
}

// Fulfill returns a copy carrying payload.
func (r Resource) Fulfill(payload any) Resource {
	r.Payload = payload
	return r
}

// IsRequest reports whether the resource is a template without payload.
func (r Resource) IsRequest() bool {
	return r.Payload == nil
}

// MatchesProvider reports whether a builder owned by provider may serve
// this resource: either no provider is required or the IDs are equal.
func (r Resource) MatchesProvider(provider identity.Identification) bool {
	return r.Provider.IsZero() || r.Provider.Equal(provider)
}

// String implements fmt.Stringer.
func (r Resource) String() string {
	state := "request"
	if !r.IsRequest() {
		state = "fulfilled"
	}
	return fmt.Sprintf("%s[%s provider=%s consumer=%s]", r.ID, state, r.Provider, r.Consumer)
}
