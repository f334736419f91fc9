package passive

import (
	"testing"

	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/browser/browsertest"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"
)

func TestCheckOutdated(t *testing.T) {
	tests := []struct {
		tech     report.Technology
		outdated bool
		min      string
	}{
		{report.Technology{Name: "jQuery", Version: "1.12.4"}, true, "3.5.0"},
		{report.Technology{Name: "jQuery", Version: "3.7.1"}, false, "3.5.0"},
		{report.Technology{Name: "WordPress", Version: "5.8"}, true, "6.4.0"},
		{report.Technology{Name: "PHP", Version: "8.2.10"}, false, "8.1.0"},
		{report.Technology{Name: "jQuery"}, false, ""},
		{report.Technology{Name: "Unknown Lib", Version: "0.1.0"}, false, ""},
		{report.Technology{Name: "jQuery", Version: "not-a-version"}, false, ""},
	}
	for _, tt := range tests {
		tech := tt.tech
		CheckOutdated(&tech)
		assert.Equal(t, tt.outdated, tech.Outdated, "%s %s", tech.Name, tech.Version)
		assert.Equal(t, tt.min, tech.MinVersion, "%s %s", tech.Name, tech.Version)
	}
}

func TestTechnologyDetector(t *testing.T) {
	page := &browsertest.Page{
		Content: `<html><head></head><body><p>hello</p></body></html>`,
		EvalResults: map[string]gson.JSON{
			runtimeProbes[0].Script: gson.New("3.4.1"),
			runtimeProbes[1].Script: gson.New("18.2.0"),
		},
	}
	d := NewTechnologyDetector()
	d.TrackRequest(browser.Request{URL: "https://code.jquery.com/jquery-1.12.4.min.js", ResourceType: "Script"})
	d.TrackRequest(browser.Request{URL: "https://cdn.jsdelivr.net/npm/bootstrap@5.3.2/dist/js/bootstrap.bundle.min.js", ResourceType: "Script"})
	d.TrackRequest(browser.Request{URL: "https://example.com/logo-1.0.0.png", ResourceType: "Image"})

	result, err := d.Detect(page)
	require.NoError(t, err)

	byName := map[string]report.Technology{}
	for _, tech := range result.Technologies {
		byName[tech.Name] = tech
	}

	jquery, ok := byName["jQuery"]
	require.True(t, ok)
	assert.Equal(t, "1.12.4", jquery.Version, "script evidence is recorded before runtime probes")
	assert.Equal(t, SourceScript, jquery.Source)
	assert.True(t, jquery.Outdated)

	bootstrap, ok := byName["Bootstrap"]
	require.True(t, ok)
	assert.Equal(t, "5.3.2", bootstrap.Version)
	assert.False(t, bootstrap.Outdated)

	react, ok := byName["React"]
	require.True(t, ok)
	assert.Equal(t, SourceRuntime, react.Source)
	assert.False(t, react.Outdated)

	assert.Len(t, result.Outdated(), 1)
}
