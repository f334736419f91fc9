package passive

import (
	"strings"
	"sync"

	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/report"
)

type headerCheck struct {
	Header string
	// Satisfied reports whether the response covers the header's purpose some other way
	Satisfied func(resp *browser.Response) bool
	HTTPSOnly bool
}

var securityHeaderChecks = []headerCheck{
	{Header: "Strict-Transport-Security", HTTPSOnly: true},
	{Header: "Content-Security-Policy"},
	{Header: "X-Content-Type-Options"},
	{
		Header: "X-Frame-Options",
		Satisfied: func(resp *browser.Response) bool {
			return strings.Contains(strings.ToLower(resp.Header("Content-Security-Policy")), "frame-ancestors")
		},
	},
	{Header: "Referrer-Policy"},
	{Header: "Permissions-Policy"},
}

// SecurityAnalyzer checks the main document response, cookie flags and
// plain http subresources of https pages
type SecurityAnalyzer struct {
	mu    sync.Mutex
	seen  map[string]bool
	mixed []report.MixedContent
}

func NewSecurityAnalyzer() *SecurityAnalyzer {
	return &SecurityAnalyzer{seen: make(map[string]bool)}
}

func (a *SecurityAnalyzer) AnalyzeHTTPS(page browser.Page, targetURL string) (report.HTTPSInfo, error) {
	finalURL := page.URL()
	resp := page.MainResponse()
	if resp != nil && resp.URL != "" {
		finalURL = resp.URL
	}
	if finalURL == "" {
		finalURL = targetURL
	}

	info := report.HTTPSInfo{
		Enabled:         strings.HasPrefix(strings.ToLower(finalURL), "https://"),
		SecurityHeaders: []string{},
		MissingHeaders:  []string{},
	}
	if resp == nil {
		return info, nil
	}
	info.StatusCode = resp.StatusCode
	for _, check := range securityHeaderChecks {
		if check.HTTPSOnly && !info.Enabled {
			continue
		}
		if resp.Header(check.Header) != "" {
			info.SecurityHeaders = append(info.SecurityHeaders, check.Header)
			continue
		}
		if check.Satisfied != nil && check.Satisfied(resp) {
			continue
		}
		info.MissingHeaders = append(info.MissingHeaders, check.Header)
	}
	info.HSTS = resp.Header("Strict-Transport-Security") != "" && info.Enabled
	return info, nil
}

func (a *SecurityAnalyzer) TrackMixedContent(req browser.Request, pageIsHTTPS bool) {
	if !pageIsHTTPS || !strings.HasPrefix(strings.ToLower(req.URL), "http://") {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seen[req.URL] {
		return
	}
	a.seen[req.URL] = true
	a.mixed = append(a.mixed, report.MixedContent{URL: req.URL, ResourceType: req.ResourceType})
}

func (a *SecurityAnalyzer) MixedContent() []report.MixedContent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]report.MixedContent{}, a.mixed...)
}

func (a *SecurityAnalyzer) AnalyzeCookies(cookies []report.CookieInfo) report.CookieSecurityInfo {
	info := report.CookieSecurityInfo{
		Total:           len(cookies),
		MissingSecure:   []string{},
		MissingHTTPOnly: []string{},
		MissingSameSite: []string{},
	}
	for _, cookie := range cookies {
		if !cookie.Secure {
			info.MissingSecure = append(info.MissingSecure, cookie.Name)
		}
		if !cookie.HTTPOnly {
			info.MissingHTTPOnly = append(info.MissingHTTPOnly, cookie.Name)
		}
		if cookie.SameSite == "" {
			info.MissingSameSite = append(info.MissingSameSite, cookie.Name)
		}
	}
	return info
}
