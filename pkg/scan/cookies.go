package scan

import (
	"strings"

	"github.com/pyneda/consentscan/pkg/report"
)

func cookieKey(c report.CookieInfo) string {
	return c.Name + "|" + strings.ToLower(strings.TrimPrefix(c.Domain, "."))
}

// MergeCookies combines pre- and post-consent captures keyed by name and
// domain. A cookie seen before consent keeps its pre-consent record; cookies
// only seen afterwards are appended as set at consent time.
func MergeCookies(pre, post []report.CookieInfo) []report.CookieInfo {
	merged := make([]report.CookieInfo, 0, len(pre)+len(post))
	seen := make(map[string]bool, len(pre)+len(post))
	for _, c := range pre {
		key := cookieKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		c.PreConsent = true
		merged = append(merged, c)
	}
	for _, c := range post {
		key := cookieKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		c.PreConsent = false
		merged = append(merged, c)
	}
	return merged
}
