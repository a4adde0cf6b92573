// Package featureflags evaluates the FEATURE_FLAGS switches of the TaskHub API.
//
// FEATURE_FLAGS is a comma-separated list such as
// "realtime=on,oauth_google=off,social_suggestions=25%". A flag is on, off or
// rolled out to a stable percentage of users. Unset flags are off.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// Realtime gates the websocket ticket and notification stream endpoints.
	Realtime = "realtime"
	// OAuthGoogle gates the Google sign-in endpoints.
	OAuthGoogle = "oauth_google"
	// SocialSuggestions gates GET /api/social/suggestions; percentage rollouts apply per caller.
	SocialSuggestions = "social_suggestions"
)

// Known lists every flag the API consults.
func Known() []string {
	return []string{OAuthGoogle, Realtime, SocialSuggestions}
}

// rule is a parsed flag value. percent is 0..100; on and off are 100 and 0.
type rule struct {
	raw     string
	percent int
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, percent: 100}, true
	case "off", "false", "0":
		return rule{raw: value, percent: 0}, true
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if !strings.HasSuffix(value, "%") || err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: min(max(pct, 0), 100)}, true
}

// Manager holds the parsed flags. A nil Manager reports every flag off.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Malformed entries are skipped.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}
	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(entry, "=")
		key, value = normalize(key), normalize(value)
		if !ok || key == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			m.rules[key] = r
		}
	}
	return m
}

// Enabled reports whether name is on for userID. Partial rollouts never apply
// to userID 0, and a user stays in the same bucket for a given flag.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	name = normalize(name)
	r, ok := m.rules[name]
	switch {
	case !ok || r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < r.percent
}

// EnabledGlobally evaluates a flag without a user, so only fully-on flags pass.
func (m *Manager) EnabledGlobally(name string) bool {
	return m.Enabled(name, 0)
}

// Raw returns the configured value of every parsed flag.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string)
	if m == nil {
		return out
	}
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every known and configured flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	for _, name := range m.Names() {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

// Names returns the known flags plus any extra configured ones, sorted.
func (m *Manager) Names() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, name := range Known() {
		add(name)
	}
	if m != nil {
		for name := range m.rules {
			add(name)
		}
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
