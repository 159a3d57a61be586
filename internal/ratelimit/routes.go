package ratelimit

import (
	"fmt"
	"net/http"
	"strings"
)

// Rule selects the requests that are counted: an exact method and path.
type Rule struct {
	Method string
	Path   string
}

func (r Rule) String() string {
	return r.Method + " " + r.Path
}

// Match reports whether req is counted by this rule.
func (r Rule) Match(req *http.Request) bool {
	return req.Method == r.Method && req.URL.Path == r.Path
}

// ParseRoutes parses "METHOD /path" entries. Blank entries are skipped.
func ParseRoutes(entries []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(entries))
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		fields := strings.Fields(raw)
		if len(fields) != 2 {
			return nil, fmt.Errorf("rate limit route %q: expected \"METHOD /path\"", raw)
		}
		method := strings.ToUpper(fields[0])
		path := fields[1]
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("rate limit route %q: path must start with /", raw)
		}
		if len(path) > 1 {
			path = strings.TrimRight(path, "/")
		}
		rules = append(rules, Rule{Method: method, Path: path})
	}
	return rules, nil
}
