// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package permission_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/izou/internal/identity"
	"github.com/holomush/izou/internal/permission"
	"github.com/holomush/izou/pkg/errutil"
)

func TestManager_CheckPermission(t *testing.T) {
	m := permission.NewManager()
	require.NoError(t, m.SetGrants("music", []string{"claim.audio", "events.fire.*", "net.**"}))

	music := identity.Named("music")
	tests := []struct {
		name       string
		permission string
		addon      identity.Identification
		allowed    bool
	}{
		{"exact match", "claim.audio", music, true},
		{"single segment wildcard", "events.fire.tick", music, true},
		{"single segment does not cross", "events.fire.tick.now", music, false},
		{"super wildcard", "net.http.get", music, true},
		{"no grant", "claim.display", music, false},
		{"unknown add-on", "claim.audio", identity.Named("other"), false},
		{"empty permission", "", music, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.CheckPermission(context.Background(), tt.permission, tt.addon)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, permission.CodePermissionDenied)
			errutil.AssertErrorContext(t, err, "addon", tt.addon.ID())
		})
	}
}

func TestManager_SetGrantsIsAtomic(t *testing.T) {
	m := permission.NewManager()
	require.NoError(t, m.SetGrants("music", []string{"claim.audio"}))

	errutil.AssertErrorCode(t, m.SetGrants("music", []string{"claim.display", "[unclosed"}), permission.CodeInvalidGrant)
	errutil.AssertErrorCode(t, m.SetGrants("music", []string{""}), permission.CodeInvalidGrant)
	errutil.AssertErrorCode(t, m.SetGrants("", []string{"x"}), permission.CodeInvalidGrant)

	assert.Equal(t, []string{"claim.audio"}, m.Grants("music"))
	assert.Equal(t, []string{"music"}, m.AddOns())

	grants := m.Grants("music")
	grants[0] = "changed"
	assert.Equal(t, []string{"claim.audio"}, m.Grants("music"))

	m.RemoveGrants("music")
	assert.Nil(t, m.Grants("music"))
	assert.Empty(t, m.AddOns())
}

func TestManager_Claims(t *testing.T) {
	m := permission.NewManager()
	require.NoError(t, m.SetGrants("music", []string{"claim.*"}))
	require.NoError(t, m.SetGrants("alarm", []string{"claim.audio"}))
	music := identity.Named("music")
	alarm := identity.Named("alarm")
	ctx := context.Background()

	require.NoError(t, m.Claim(ctx, "audio", music))
	require.NoError(t, m.Claim(ctx, "audio", music), "re-claim by holder")

	err := m.Claim(ctx, "audio", alarm)
	errutil.AssertErrorCode(t, err, permission.CodeResourceConflict)
	errutil.AssertErrorContext(t, err, "holder", "music")

	errutil.AssertErrorCode(t, m.Claim(ctx, "display", alarm), permission.CodePermissionDenied)

	holder, ok := m.Holder("audio")
	require.True(t, ok)
	assert.Equal(t, "music", holder)

	assert.False(t, m.Release("audio", alarm))
	assert.True(t, m.Release("audio", music))
	require.NoError(t, m.Claim(ctx, "audio", alarm))

	require.NoError(t, m.Claim(ctx, "display", music))
	require.NoError(t, m.Claim(ctx, "socket", music))
	assert.Equal(t, 2, m.ReleaseAll(music))
	_, ok = m.Holder("display")
	assert.False(t, ok)
}

func TestManager_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	m := permission.NewManager()
	addons := []string{"a", "b", "c", "d", "e"}
	for _, id := range addons {
		require.NoError(t, m.SetGrants(id, []string{"claim.audio"}))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for _, id := range addons {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Claim(context.Background(), "audio", identity.Named(id)) == nil {
				mu.Lock()
				winners = append(winners, id)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	holder, _ := m.Holder("audio")
	assert.Equal(t, winners[0], holder)
}
