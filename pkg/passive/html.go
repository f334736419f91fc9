package passive

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pyneda/consentscan/pkg/browser"
)

var privacyLinkPattern = regexp.MustCompile(`(?i)privacy|datenschutz|privacidad|privacit|confidentialit|privacybeleid|rgpd|gdpr|dsgvo|protecci[oó]n de datos`)

var whitespacePattern = regexp.MustCompile(`\s+`)

// pageDocument parses the current DOM of the page
func pageDocument(page browser.Page) (*goquery.Document, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	return doc, nil
}

// cleanText collapses whitespace in the text content of a selection
func cleanText(s *goquery.Selection) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s.Text(), " "))
}

// resolveURL resolves href against the page URL, returning href unchanged on failure
func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
