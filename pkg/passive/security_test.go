package passive

import (
	"testing"

	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/browser/browsertest"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeHTTPS(t *testing.T) {
	page := &browsertest.Page{
		CurrentURL: "https://example.com/",
		Response: &browser.Response{
			URL:        "https://example.com/",
			StatusCode: 200,
			Headers: map[string]string{
				"strict-transport-security": "max-age=31536000",
				"content-security-policy":   "default-src 'self'; frame-ancestors 'none'",
				"x-content-type-options":    "nosniff",
			},
		},
	}

	info, err := NewSecurityAnalyzer().AnalyzeHTTPS(page, "https://example.com")
	require.NoError(t, err)
	assert.True(t, info.Enabled)
	assert.True(t, info.HSTS)
	assert.Equal(t, 200, info.StatusCode)
	assert.Equal(t, []string{"Strict-Transport-Security", "Content-Security-Policy", "X-Content-Type-Options"}, info.SecurityHeaders)
	assert.Equal(t, []string{"Referrer-Policy", "Permissions-Policy"}, info.MissingHeaders, "frame-ancestors covers X-Frame-Options")
}

func TestAnalyzeHTTPSPlainHTTP(t *testing.T) {
	page := &browsertest.Page{
		CurrentURL: "http://example.com/",
		Response:   &browser.Response{URL: "http://example.com/", StatusCode: 200, Headers: map[string]string{}},
	}
	info, err := NewSecurityAnalyzer().AnalyzeHTTPS(page, "https://example.com")
	require.NoError(t, err)
	assert.False(t, info.Enabled)
	assert.False(t, info.HSTS)
	assert.NotContains(t, info.MissingHeaders, "Strict-Transport-Security")
	assert.Contains(t, info.MissingHeaders, "Content-Security-Policy")
}

func TestAnalyzeHTTPSWithoutResponse(t *testing.T) {
	page := &browsertest.Page{}
	info, err := NewSecurityAnalyzer().AnalyzeHTTPS(page, "https://example.com")
	require.NoError(t, err)
	assert.True(t, info.Enabled)
	assert.Empty(t, info.MissingHeaders)
}

func TestTrackMixedContent(t *testing.T) {
	a := NewSecurityAnalyzer()
	a.TrackMixedContent(browser.Request{URL: "http://cdn.example.net/a.js", ResourceType: "Script"}, true)
	a.TrackMixedContent(browser.Request{URL: "http://cdn.example.net/a.js", ResourceType: "Script"}, true)
	a.TrackMixedContent(browser.Request{URL: "https://cdn.example.net/b.js", ResourceType: "Script"}, true)
	a.TrackMixedContent(browser.Request{URL: "http://cdn.example.net/c.png", ResourceType: "Image"}, false)

	mixed := a.MixedContent()
	require.Len(t, mixed, 1)
	assert.Equal(t, "http://cdn.example.net/a.js", mixed[0].URL)
	assert.Equal(t, "Script", mixed[0].ResourceType)
}

func TestAnalyzeCookies(t *testing.T) {
	info := NewSecurityAnalyzer().AnalyzeCookies([]report.CookieInfo{
		{Name: "good", Secure: true, HTTPOnly: true, SameSite: "Strict"},
		{Name: "bad"},
	})
	assert.Equal(t, 2, info.Total)
	assert.Equal(t, []string{"bad"}, info.MissingSecure)
	assert.Equal(t, []string{"bad"}, info.MissingHTTPOnly)
	assert.Equal(t, []string{"bad"}, info.MissingSameSite)
	assert.True(t, info.HasInsecureCookies())
}
