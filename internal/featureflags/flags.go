// Package featureflags evaluates runtime toggles configured through FEATURE_FLAGS.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Known flags.
const (
	// SuppressSelfNotifications skips notifications for engagement with one's own post.
	SuppressSelfNotifications = "suppress_self_notifications"
	// LiveEcho echoes unknown inbound WebSocket frames back to their sender.
	LiveEcho = "live_echo"
)

// defaults apply when a known flag is absent from the configuration.
var defaults = map[string]bool{
	SuppressSelfNotifications: false,
	LiveEcho:                  true,
}

// rule is a parsed flag value: fully on, fully off, or a percentage rollout.
type rule struct {
	percent int
}

// Flags holds the parsed configuration, e.g. "suppress_self_notifications=on,live_echo=25%".
type Flags struct {
	rules map[string]rule
}

// Parse builds Flags from a comma-separated key=value list. Malformed entries are skipped.
func Parse(raw string) *Flags {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		r, ok := parseRule(value)
		if !ok {
			continue
		}
		rules[key] = r
	}
	return &Flags{rules: rules}
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{percent: 100}, true
	case "off", "false", "0":
		return rule{percent: 0}, true
	}
	pctRaw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil {
		return rule{}, false
	}
	return rule{percent: min(max(pct, 0), 100)}, true
}

// Enabled reports whether the flag is on for userID. Percentage rollouts bucket users
// deterministically, and anonymous callers (userID 0) are only in fully enabled flags.
func (f *Flags) Enabled(name string, userID uint) bool {
	name = normalize(name)
	if f == nil {
		return defaults[name]
	}
	r, ok := f.rules[name]
	if !ok {
		return defaults[name]
	}
	switch {
	case r.percent >= 100:
		return true
	case r.percent <= 0, userID == 0:
		return false
	default:
		return rolloutBucket(name, userID) < r.percent
	}
}

// On reports whether the flag is enabled globally, ignoring per-user rollout.
func (f *Flags) On(name string) bool {
	name = normalize(name)
	if f == nil {
		return defaults[name]
	}
	if r, ok := f.rules[name]; ok {
		return r.percent >= 100
	}
	return defaults[name]
}

// Snapshot returns the evaluated state of every known or configured flag for one user.
func (f *Flags) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(defaults))
	for name := range defaults {
		out[name] = f.Enabled(name, userID)
	}
	if f != nil {
		for name := range f.rules {
			out[name] = f.Enabled(name, userID)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", name, userID)))
	return int(h.Sum32() % 100)
}
