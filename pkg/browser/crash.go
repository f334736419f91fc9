package browser

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// DefaultCrashSignatures are error fragments meaning the engine or its
// connection is gone, as opposed to a page level failure.
var DefaultCrashSignatures = []string{
	"protocol error",
	"target closed",
	"target page, context or browser has been closed",
	"process closed",
	"browser has disconnected",
	"browser has been closed",
	"websocket: close",
	"use of closed network connection",
	"connection closed",
	"session with given id not found",
	"broken pipe",
}

// CrashMatcher classifies errors as engine crashes by case insensitive substring match
type CrashMatcher struct {
	signatures []string
}

// NewCrashMatcher builds a matcher for the given signatures, defaulting to DefaultCrashSignatures
func NewCrashMatcher(signatures ...string) *CrashMatcher {
	if len(signatures) == 0 {
		signatures = DefaultCrashSignatures
	}
	m := &CrashMatcher{}
	for _, s := range signatures {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			m.signatures = append(m.signatures, s)
		}
	}
	return m
}

// CrashMatcherFromConfig uses browser.crash_signatures when set, the defaults otherwise
func CrashMatcherFromConfig() *CrashMatcher {
	return NewCrashMatcher(viper.GetStringSlice("browser.crash_signatures")...)
}

// IsCrashSignature reports whether err indicates the engine is unusable.
// Timeouts and cancellations never count as crashes.
func (m *CrashMatcher) IsCrashSignature(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, signature := range m.signatures {
		if strings.Contains(msg, signature) {
			return true
		}
	}
	return false
}

// Signatures returns the configured signatures
func (m *CrashMatcher) Signatures() []string {
	return append([]string(nil), m.signatures...)
}
