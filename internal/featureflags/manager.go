// Package featureflags evaluates runtime switches that harden the default
// read-then-write behaviour of counters and chat room creation.
package featureflags

import (
	"hash/fnv"
	"maps"
	"slices"
	"strconv"
	"strings"
)

const (
	// AtomicCounters makes view, comment and unread counters use in-database increments.
	AtomicCounters = "atomic_counters"
	// DeterministicChatRooms keys direct rooms by the sorted participant pair.
	DeterministicChatRooms = "deterministic_chat_rooms"
)

// rule is a parsed flag value. percent is 0..100; anything unparseable is 0.
type rule struct {
	raw     string
	percent int
}

func parseRule(value string) rule {
	r := rule{raw: value}
	switch value {
	case "on", "true", "1":
		r.percent = 100
	case "off", "false", "0":
	default:
		if n, ok := strings.CutSuffix(value, "%"); ok {
			if pct, err := strconv.Atoi(n); err == nil {
				r.percent = min(max(pct, 0), 100)
			}
		}
	}
	return r
}

// enabledFor buckets subject deterministically, so a user keeps the same
// answer across requests. Partial rollouts need a subject.
func (r rule) enabledFor(name, subject string) bool {
	switch {
	case r.percent >= 100:
		return true
	case r.percent <= 0 || subject == "":
		return false
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + subject))
	return int(h.Sum32()%100) < r.percent
}

// Manager holds flags parsed from FEATURE_FLAGS, a comma separated list such
// as "atomic_counters=on,deterministic_chat_rooms=25%". Values are on/off
// (also true/false, 1/0) or a rollout percentage.
type Manager struct {
	rules map[string]rule
}

func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, entry := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(entry, "=")
		name, value = canonical(name), canonical(value)
		if !ok || name == "" || value == "" {
			continue
		}
		rules[name] = parseRule(value)
	}
	return &Manager{rules: rules}
}

// Enabled evaluates name for subject, usually a user, post or room id.
// Unknown flags are off.
func (m *Manager) Enabled(name, subject string) bool {
	if m == nil {
		return false
	}
	name = canonical(name)
	r, ok := m.rules[name]
	return ok && r.enabledFor(name, subject)
}

// Names lists configured flags alphabetically.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(m.rules))
}

// Raw returns the configured values as written, lowercased.
func (m *Manager) Raw() map[string]string {
	out := map[string]string{}
	if m == nil {
		return out
	}
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for subject.
func (m *Manager) Snapshot(subject string) map[string]bool {
	out := map[string]bool{}
	for _, name := range m.Names() {
		out[name] = m.Enabled(name, subject)
	}
	return out
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
