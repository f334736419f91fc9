package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestCrashMatcherDefaults(t *testing.T) {
	m := NewCrashMatcher()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"target closed", errors.New("Target closed"), true},
		{"protocol error", errors.New("Protocol error (Page.navigate): Session closed"), true},
		{"closed context", errors.New("Target page, context or browser has been closed"), true},
		{"websocket", errors.New("websocket: close 1006 (abnormal closure)"), true},
		{"wrapped", fmt.Errorf("navigate: %w", errors.New("use of closed network connection")), true},
		{"plain timeout", errors.New("navigation timeout after 30s"), false},
		{"deadline", context.DeadlineExceeded, false},
		{"wrapped deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), false},
		{"dns failure", errors.New("net::ERR_NAME_NOT_RESOLVED"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.IsCrashSignature(tt.err))
		})
	}
}

func TestCrashMatcherCustomSignatures(t *testing.T) {
	m := NewCrashMatcher("  Engine Exploded ", "")
	assert.True(t, m.IsCrashSignature(errors.New("the engine exploded badly")))
	assert.False(t, m.IsCrashSignature(errors.New("target closed")))
	assert.Equal(t, []string{"engine exploded"}, m.Signatures())
}

func TestCrashMatcherFromConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	assert.Equal(t, DefaultCrashSignatures, CrashMatcherFromConfig().Signatures())

	viper.Set("browser.crash_signatures", []string{"renderer gone"})
	m := CrashMatcherFromConfig()
	assert.True(t, m.IsCrashSignature(errors.New("Renderer gone")))
}
