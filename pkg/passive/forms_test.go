package passive

import (
	"testing"

	"github.com/pyneda/consentscan/pkg/browser/browsertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formsHTML = `<html><body>
<form action="/newsletter" method="post">
  <input type="email" name="subscriber">
  <input type="checkbox" id="gdpr"><label for="gdpr">I agree to the processing of my data</label>
  <button>Subscribe</button>
</form>
<form action="http://legacy.example.com/contact">
  <input name="first_name"><input name="phone"><textarea name="message"></textarea>
  <a href="/privacy">Privacy notice</a>
</form>
<form role="search"><input type="search" name="q"></form>
</body></html>`

func TestFormAnalyzer(t *testing.T) {
	page := &browsertest.Page{CurrentURL: "https://example.com/", Content: formsHTML}

	result, err := NewFormAnalyzer().Analyze(page)
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)

	newsletter := result.Forms[0]
	assert.Equal(t, "POST", newsletter.Method)
	assert.Equal(t, []string{"email"}, newsletter.PersonalDataFields)
	assert.True(t, newsletter.HasConsentCheckbox)
	assert.False(t, newsletter.HasPrivacyLink)
	assert.False(t, newsletter.InsecureSubmission)
	assert.True(t, newsletter.CollectsPersonalData)

	contact := result.Forms[1]
	assert.Equal(t, "GET", contact.Method)
	assert.Equal(t, []string{"name", "phone"}, contact.PersonalDataFields)
	assert.False(t, contact.HasConsentCheckbox)
	assert.True(t, contact.HasPrivacyLink)
	assert.True(t, contact.InsecureSubmission)

	search := result.Forms[2]
	assert.False(t, search.CollectsPersonalData)
	assert.Empty(t, search.PersonalDataFields)
}

func TestIsInsecureSubmission(t *testing.T) {
	tests := []struct {
		page     string
		action   string
		insecure bool
	}{
		{"https://example.com/", "", false},
		{"https://example.com/", "/submit", false},
		{"https://example.com/", "http://example.com/submit", true},
		{"http://example.com/", "", true},
		{"http://example.com/", "https://secure.example.com/submit", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.insecure, isInsecureSubmission(tt.page, tt.action), "%s %s", tt.page, tt.action)
	}
}
