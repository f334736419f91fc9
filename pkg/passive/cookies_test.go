package passive

import (
	"testing"
	"time"

	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/browser/browsertest"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCookie(t *testing.T) {
	tests := []struct {
		name     string
		expected report.CookieCategory
	}{
		{"PHPSESSID", report.CookieCategoryNecessary},
		{"session_id", report.CookieCategoryNecessary},
		{"__Host-token", report.CookieCategoryNecessary},
		{"OptanonConsent", report.CookieCategoryNecessary},
		{"_ga", report.CookieCategoryAnalytics},
		{"_ga_ABC123", report.CookieCategoryAnalytics},
		{"_gat_UA-1", report.CookieCategoryAnalytics},
		{"_hjSessionUser_1", report.CookieCategoryAnalytics},
		{"_fbp", report.CookieCategoryMarketing},
		{"IDE", report.CookieCategoryMarketing},
		{"_gcl_au", report.CookieCategoryMarketing},
		{"pll_language", report.CookieCategoryPreferences},
		{"something_custom", report.CookieCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyCookie(tt.name))
		})
	}
}

func TestCookieCollector(t *testing.T) {
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	page := &browsertest.Page{
		CurrentURL: "https://www.example.co.uk/home",
		CookieJar: []browser.Cookie{
			{Name: "sid", Domain: "www.example.co.uk", Session: true, Secure: true, HTTPOnly: true, SameSite: "Lax"},
			{Name: "_ga", Domain: ".example.co.uk", Expires: expires},
			{Name: "IDE", Domain: ".doubleclick.net", Expires: expires, Secure: true, SameSite: "None"},
		},
	}

	cookies, err := NewCookieCollector().Collect(page, true)
	require.NoError(t, err)
	require.Len(t, cookies, 3)

	assert.Equal(t, report.CookieCategoryNecessary, cookies[0].Category)
	assert.Nil(t, cookies[0].Expires)
	assert.False(t, cookies[0].ThirdParty)
	assert.True(t, cookies[0].PreConsent)

	assert.Equal(t, report.CookieCategoryAnalytics, cookies[1].Category)
	require.NotNil(t, cookies[1].Expires)
	assert.Equal(t, expires, *cookies[1].Expires)
	assert.False(t, cookies[1].ThirdParty)

	assert.Equal(t, report.CookieCategoryMarketing, cookies[2].Category)
	assert.True(t, cookies[2].ThirdParty)
}

func TestCookieCollectorError(t *testing.T) {
	page := &browsertest.Page{CookiesErr: assert.AnError}
	_, err := NewCookieCollector().Collect(page, false)
	assert.ErrorIs(t, err, assert.AnError)
}
