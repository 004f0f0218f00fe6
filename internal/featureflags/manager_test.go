package featureflags

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, "u1"), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, "u1"), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	assert.True(t, m.Enabled("always", "u1"))
	assert.True(t, m.Enabled("always", ""))
	assert.False(t, m.Enabled("never", "u1"))
	assert.False(t, m.Enabled("junk", "u1"))

	first := m.Enabled("canary", "user-42")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", "user-42"), "rollout must be deterministic per subject")
	}

	assert.False(t, m.Enabled("canary", ""), "percentage rollout requires a subject")
}

func TestEnabled_NilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(AtomicCounters, "u1"))
	assert.Empty(t, m.Raw())
	assert.Empty(t, m.Snapshot("u1"))
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,Atomic_Counters=ON, y = 20% ,z=off ")

	raw := m.Raw()
	assert.Len(t, raw, 3)
	assert.Equal(t, "on", raw[AtomicCounters])
	assert.Equal(t, "20%", raw["y"])
	assert.Equal(t, []string{AtomicCounters, "y", "z"}, m.Names())

	snap := m.Snapshot("u123")
	assert.Len(t, snap, 3)
	assert.True(t, snap[AtomicCounters])
	assert.False(t, snap["z"])
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		value   string
		percent int
	}{
		{"on", 100},
		{"1", 100},
		{"off", 0},
		{"40%", 40},
		{"250%", 100},
		{"-5%", 0},
		{"maybe", 0},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			r := parseRule(tt.value)
			assert.Equal(t, tt.percent, r.percent)
			assert.Equal(t, tt.value, r.raw)
		})
	}
}

func TestEnabled_RolloutIsRoughlyProportional(t *testing.T) {
	m := NewManager("half=50%")
	on := 0
	for i := 0; i < 1000; i++ {
		if m.Enabled("half", "user-"+strconv.Itoa(i)) {
			on++
		}
	}
	assert.InDelta(t, 500, on, 100)
}
