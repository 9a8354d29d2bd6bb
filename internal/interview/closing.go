package interview

import "strings"

// IsClosing reports whether reply contains any of phrases, ignoring case.
func IsClosing(reply string, phrases []string) bool {
	lower := strings.ToLower(reply)
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
