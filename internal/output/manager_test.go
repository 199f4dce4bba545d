// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package output_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/identity"
	"github.com/holomush/izou/internal/output"
	"github.com/holomush/izou/internal/worker"
)

type recordingPlugin struct {
	id     string
	render func(ctx context.Context, event *core.Event) error

	mu   sync.Mutex
	seen []string
}

func (p *recordingPlugin) ID() string { return p.id }

func (p *recordingPlugin) RenderOutput(ctx context.Context, event *core.Event) error {
	p.mu.Lock()
	p.seen = append(p.seen, event.Type())
	p.mu.Unlock()
	if p.render != nil {
		return p.render(ctx, event)
	}
	return nil
}

func (p *recordingPlugin) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

func newEvent(t *testing.T, eventType string, descriptors ...string) *core.Event {
	t.Helper()
	event, err := core.NewEvent(eventType, identity.Named("src"), descriptors...)
	require.NoError(t, err)
	return event
}

func newManager(t *testing.T, opts ...output.Option) *output.Manager {
	t.Helper()
	pool := worker.New("output-test", 4)
	t.Cleanup(func() { _ = pool.Close(context.Background()) })
	return output.New(pool, opts...)
}

func TestManager_RoutesByInterest(t *testing.T) {
	m := newManager(t)
	all := &recordingPlugin{id: "all"}
	speech := &recordingPlugin{id: "speech"}
	m.AddPlugin(all)
	m.AddPlugin(speech, "speak", "urgent")

	m.PassDataToOutputPlugins(context.Background(), newEvent(t, "speak"))
	m.PassDataToOutputPlugins(context.Background(), newEvent(t, "tick"))
	m.PassDataToOutputPlugins(context.Background(), newEvent(t, "alarm", "urgent"))
	m.Wait()

	assert.ElementsMatch(t, []string{"speak", "tick", "alarm"}, all.events())
	assert.ElementsMatch(t, []string{"speak", "alarm"}, speech.events())
}

func TestManager_FailuresDoNotPropagate(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := worker.New("output-failures", 4)
	m := output.New(pool, output.WithTimeout(20*time.Millisecond))
	failing := &recordingPlugin{id: "failing", render: func(context.Context, *core.Event) error {
		return errors.New("device busy")
	}}
	slow := &recordingPlugin{id: "slow", render: func(ctx context.Context, _ *core.Event) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	panicking := &recordingPlugin{id: "panicking", render: func(context.Context, *core.Event) error {
		panic("driver crash")
	}}
	healthy := &recordingPlugin{id: "healthy"}
	for _, p := range []*recordingPlugin{failing, slow, panicking, healthy} {
		m.AddPlugin(p)
	}

	m.PassDataToOutputPlugins(context.Background(), newEvent(t, "speak"))
	m.Wait()

	assert.Equal(t, []string{"speak"}, healthy.events())
	assert.Equal(t, []string{"speak"}, slow.events())
	require.NoError(t, pool.Close(context.Background()))
}

func TestManager_DeliveryOutlivesCallerContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := worker.New("output-detached", 2)
	m := output.New(pool, output.WithTimeout(time.Second))
	var live []bool
	var mu sync.Mutex
	plugin := &recordingPlugin{id: "display", render: func(ctx context.Context, _ *core.Event) error {
		mu.Lock()
		defer mu.Unlock()
		live = append(live, ctx.Err() == nil)
		return nil
	}}
	m.AddPlugin(plugin)

	ctx, cancel := context.WithCancel(context.Background())
	m.PassDataToOutputPlugins(ctx, newEvent(t, "speak"))
	m.PassDataToOutputPlugins(ctx, newEvent(t, "tick"))
	cancel()
	m.Wait()

	assert.ElementsMatch(t, []string{"speak", "tick"}, plugin.events())
	assert.Equal(t, []bool{true, true}, live, "plugins render with a live context after the caller returns")
	require.NoError(t, pool.Close(context.Background()))
}

func TestManager_AddReplaceRemove(t *testing.T) {
	m := newManager(t)
	first := &recordingPlugin{id: "display"}
	second := &recordingPlugin{id: "display"}

	m.AddPlugin(first)
	m.AddPlugin(second, "speak")
	m.AddPlugin(nil)
	assert.Equal(t, []string{"display"}, m.Plugins())

	m.PassDataToOutputPlugins(context.Background(), newEvent(t, "speak"))
	m.Wait()
	assert.Empty(t, first.events())
	assert.Equal(t, []string{"speak"}, second.events())

	assert.True(t, m.RemovePlugin("display"))
	assert.False(t, m.RemovePlugin("display"))
	assert.Empty(t, m.Plugins())

	m.PassDataToOutputPlugins(context.Background(), nil)
}
