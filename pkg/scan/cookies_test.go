package scan

import (
	"testing"

	"github.com/pyneda/consentscan/pkg/report"
	"github.com/stretchr/testify/assert"
)

func TestMergeCookies(t *testing.T) {
	pre := []report.CookieInfo{
		{Name: "sid", Domain: ".example.com", Secure: true},
		{Name: "_ga", Domain: "example.com"},
	}
	post := []report.CookieInfo{
		{Name: "_ga", Domain: ".Example.com", Secure: true},
		{Name: "_ga", Domain: "analytics.example.net"},
		{Name: "_fbp", Domain: ".example.com", PreConsent: true},
	}

	merged := MergeCookies(pre, post)
	assert.Len(t, merged, 4)

	assert.Equal(t, "sid", merged[0].Name)
	assert.True(t, merged[0].PreConsent)
	assert.Equal(t, "_ga", merged[1].Name)
	assert.True(t, merged[1].PreConsent)
	assert.False(t, merged[1].Secure, "pre-consent entry wins")

	assert.Equal(t, "analytics.example.net", merged[2].Domain)
	assert.False(t, merged[2].PreConsent)
	assert.Equal(t, "_fbp", merged[3].Name)
	assert.False(t, merged[3].PreConsent)
}

func TestMergeCookiesEmpty(t *testing.T) {
	assert.Empty(t, MergeCookies(nil, nil))
	merged := MergeCookies(nil, []report.CookieInfo{{Name: "a", Domain: "x"}})
	assert.Len(t, merged, 1)
	assert.False(t, merged[0].PreConsent)
}
