package ratelimit

import (
	"strings"
)

// MatchRule finds the rule for a request. GET /health is never limited.
// Exact paths win over prefixes; a rule path ending in "/" matches every path
// below it. Returns nil when no rule applies.
func MatchRule(path, method string, rules []Rule) *Rule {
	if path == "/health" && method == "GET" {
		return &Rule{}
	}

	for i := range rules {
		if rules[i].Method == method && rules[i].Path == path {
			return &rules[i]
		}
	}

	var best *Rule
	for i := range rules {
		r := &rules[i]
		if r.Method != method || !strings.HasSuffix(r.Path, "/") || !strings.HasPrefix(path, r.Path) {
			continue
		}
		if best == nil || len(r.Path) > len(best.Path) {
			best = r
		}
	}
	return best
}
