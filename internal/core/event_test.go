// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/identity"
	"github.com/holomush/izou/pkg/errutil"
)

func sourceFor(t *testing.T, id string) identity.Identification {
	t.Helper()
	reg := identity.NewRegistry()
	entity := identity.NewEntity(id)
	require.NoError(t, reg.Register(entity))
	src, ok := reg.Identify(entity)
	require.True(t, ok)
	return src
}

func TestNewEvent(t *testing.T) {
	src := sourceFor(t, "clock")

	event, err := core.NewEvent("clock.tick", src, "morning", "", "weekday")
	require.NoError(t, err)

	assert.Equal(t, "clock.tick", event.Type())
	assert.True(t, event.Source().Equal(src))
	assert.Equal(t, []string{"morning", "weekday"}, event.Descriptors())
	assert.False(t, event.Timestamp().IsZero())
	assert.NotZero(t, event.ID())
}

func TestNewEvent_EmptyType(t *testing.T) {
	_, err := core.NewEvent("", identity.Identification{})
	errutil.AssertErrorCode(t, err, core.CodeInvalidEvent)
}

func TestEvent_IDsAreOrdered(t *testing.T) {
	src := sourceFor(t, "clock")
	first, err := core.NewEvent("a", src)
	require.NoError(t, err)
	second, err := core.NewEvent("a", src)
	require.NoError(t, err)

	assert.Equal(t, -1, first.ID().Compare(second.ID()))
}

func TestEvent_Information(t *testing.T) {
	tests := []struct {
		name        string
		eventType   string
		descriptors []string
		want        []string
	}{
		{"type only", "wake", nil, []string{"wake"}},
		{"type and descriptors", "wake", []string{"alarm", "user"}, []string{"wake", "alarm", "user"}},
		{"duplicates removed", "wake", []string{"alarm", "wake", "alarm"}, []string{"wake", "alarm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := core.NewEvent(tt.eventType, identity.Identification{}, tt.descriptors...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.Information())
		})
	}
}

func TestEvent_DescriptorsAreCopies(t *testing.T) {
	event, err := core.NewEvent("wake", identity.Identification{}, "alarm")
	require.NoError(t, err)

	descs := event.Descriptors()
	descs[0] = "changed"

	assert.True(t, event.HasDescriptor("alarm"))
	assert.False(t, event.HasDescriptor("changed"))
}

func TestEvent_AddResources(t *testing.T) {
	event, err := core.NewEvent("wake", identity.Identification{})
	require.NoError(t, err)

	event.AddResources(core.NewRequest("weather").Fulfill("sunny"))
	event.AddResources()
	event.AddResources(core.NewRequest("news").Fulfill("headline"), core.NewRequest("weather").Fulfill("windy"))

	resources := event.Resources()
	require.Len(t, resources, 3)
	assert.Equal(t, "weather", resources[0].ID)

	weather := event.ResourcesByID("weather")
	require.Len(t, weather, 2)
	assert.Equal(t, "windy", weather[1].Payload)
	assert.Empty(t, event.ResourcesByID("missing"))
}

func TestEvent_AddResourcesConcurrently(t *testing.T) {
	event, err := core.NewEvent("wake", identity.Identification{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event.AddResources(core.NewRequest("r").Fulfill(i))
			_ = event.Resources()
		}()
	}
	wg.Wait()

	assert.Len(t, event.Resources(), 20)
}
