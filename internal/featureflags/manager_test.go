package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0,all=100%,none=0%,over=250%")

	tests := []struct {
		flag string
		want bool
	}{
		{"a", true}, {"c", true}, {"e", true}, {"all", true}, {"over", true},
		{"b", false}, {"d", false}, {"f", false}, {"none", false},
		{"missing", false},
		{" A ", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Enabled(tt.flag, 7), tt.flag)
	}
}

func TestEnabled_PercentageRollout(t *testing.T) {
	m := NewManager("social_suggestions=30%")

	first := m.Enabled(SocialSuggestions, 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled(SocialSuggestions, 42), "bucket must be stable per user")
	}
	assert.False(t, m.Enabled(SocialSuggestions, 0), "partial rollouts need a user")

	on := 0
	for id := uint(1); id <= 1000; id++ {
		if m.Enabled(SocialSuggestions, id) {
			on++
		}
	}
	assert.InDelta(t, 300, on, 100)
}

func TestNewManager_SkipsMalformedEntries(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off,=on,w=maybe,v=abc%")

	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, m.Raw())
}

func TestSnapshot_IncludesKnownFlags(t *testing.T) {
	m := NewManager("realtime=on,beta_export=on")

	snap := m.Snapshot(1)
	assert.Equal(t, map[string]bool{
		Realtime:          true,
		OAuthGoogle:       false,
		SocialSuggestions: false,
		"beta_export":     true,
	}, snap)
	assert.Equal(t, []string{"beta_export", OAuthGoogle, Realtime, SocialSuggestions}, m.Names())
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.EnabledGlobally(Realtime))
	assert.Empty(t, m.Raw())
	assert.Len(t, m.Snapshot(1), len(Known()))
}
