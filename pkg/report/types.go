package report

import "time"

// ScanResult is the complete outcome of one compliance scan. It is built once
// by the scan pipeline and is not modified afterwards.
type ScanResult struct {
	URL                string              `json:"url"`
	ScanStartedAt      time.Time           `json:"scan_started_at"`
	Duration           time.Duration       `json:"duration"`
	Cookies            []CookieInfo        `json:"cookies"`
	Trackers           []TrackerInfo       `json:"trackers"`
	ThirdPartyRequests []ThirdPartyRequest `json:"third_party_requests"`
	ConsentBanner      BannerInfo          `json:"consent_banner"`
	PrivacyPolicy      PolicyInfo          `json:"privacy_policy"`
	Security           SecurityInfo        `json:"security"`
	Forms              FormsResult         `json:"forms"`
	DataTransfers      DataTransferInfo    `json:"data_transfers"`
	Technologies       TechDetectionResult `json:"technologies"`
	Issues             []Issue             `json:"issues"`
	RiskLevel          RiskLevel           `json:"risk_level"`
	Score              int                 `json:"score"`
}

// Issue is a single compliance finding
type Issue struct {
	Code           string    `json:"code"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Risk           RiskLevel `json:"risk"`
	Recommendation string    `json:"recommendation"`
}

type CookieCategory string

const (
	CookieCategoryNecessary   CookieCategory = "necessary"
	CookieCategoryAnalytics   CookieCategory = "analytics"
	CookieCategoryMarketing   CookieCategory = "marketing"
	CookieCategoryPreferences CookieCategory = "preferences"
	CookieCategoryUnknown     CookieCategory = "unknown"
)

// IsEssential reports whether cookies of this category can be set without consent
func (c CookieCategory) IsEssential() bool {
	return c == CookieCategoryNecessary
}

type CookieInfo struct {
	Name       string         `json:"name"`
	Domain     string         `json:"domain"`
	Path       string         `json:"path"`
	Value      string         `json:"-"`
	Expires    *time.Time     `json:"expires,omitempty"`
	Session    bool           `json:"session"`
	Secure     bool           `json:"secure"`
	HTTPOnly   bool           `json:"http_only"`
	SameSite   string         `json:"same_site,omitempty"`
	Category   CookieCategory `json:"category"`
	ThirdParty bool           `json:"third_party"`
	PreConsent bool           `json:"pre_consent"`
}

type TrackerInfo struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Host       string `json:"host"`
	Country    string `json:"country,omitempty"`
	PreConsent bool   `json:"pre_consent"`
	Requests   int    `json:"requests"`
}

type ThirdPartyRequest struct {
	URL          string `json:"url"`
	Host         string `json:"host"`
	Method       string `json:"method"`
	ResourceType string `json:"resource_type"`
	PreConsent   bool   `json:"pre_consent"`
}

type BannerInfo struct {
	Found           bool   `json:"found"`
	Provider        string `json:"provider,omitempty"`
	Selector        string `json:"selector,omitempty"`
	HasAcceptButton bool   `json:"has_accept_button"`
	HasRejectButton bool   `json:"has_reject_button"`
	HasSettings     bool   `json:"has_settings"`
	Text            string `json:"text,omitempty"`
}

type PolicyInfo struct {
	Found   bool           `json:"found"`
	URL     string         `json:"url,omitempty"`
	Title   string         `json:"title,omitempty"`
	Content *PolicyContent `json:"content,omitempty"`
}

type PolicyContent struct {
	WordCount       int      `json:"word_count"`
	SectionsFound   []string `json:"sections_found"`
	SectionsMissing []string `json:"sections_missing"`
	ContactEmails   []string `json:"contact_emails,omitempty"`
	LastUpdated     string   `json:"last_updated,omitempty"`
	Links           []string `json:"links,omitempty"`
}

// IsComplete reports whether every expected section was found
func (p PolicyContent) IsComplete() bool {
	return len(p.SectionsMissing) == 0
}

type SecurityInfo struct {
	HTTPS          HTTPSInfo          `json:"https"`
	MixedContent   []MixedContent     `json:"mixed_content"`
	CookieSecurity CookieSecurityInfo `json:"cookie_security"`
}

type HTTPSInfo struct {
	Enabled         bool     `json:"enabled"`
	StatusCode      int      `json:"status_code"`
	HSTS            bool     `json:"hsts"`
	SecurityHeaders []string `json:"security_headers"`
	MissingHeaders  []string `json:"missing_headers"`
}

type MixedContent struct {
	URL          string `json:"url"`
	ResourceType string `json:"resource_type"`
}

type CookieSecurityInfo struct {
	Total           int      `json:"total"`
	MissingSecure   []string `json:"missing_secure"`
	MissingHTTPOnly []string `json:"missing_http_only"`
	MissingSameSite []string `json:"missing_same_site"`
}

// HasInsecureCookies reports whether at least one cookie lacks a protection flag
func (c CookieSecurityInfo) HasInsecureCookies() bool {
	return len(c.MissingSecure) > 0 || len(c.MissingHTTPOnly) > 0 || len(c.MissingSameSite) > 0
}

type FormsResult struct {
	Total int        `json:"total"`
	Forms []FormInfo `json:"forms"`
}

type FormInfo struct {
	Action               string   `json:"action"`
	Method               string   `json:"method"`
	PersonalDataFields   []string `json:"personal_data_fields"`
	HasConsentCheckbox   bool     `json:"has_consent_checkbox"`
	HasPrivacyLink       bool     `json:"has_privacy_link"`
	InsecureSubmission   bool     `json:"insecure_submission"`
	CollectsPersonalData bool     `json:"collects_personal_data"`
}

type DataTransferInfo struct {
	Destinations      []DataTransferDestination `json:"destinations"`
	NonAdequateCount  int                       `json:"non_adequate_count"`
	CountriesDetected []string                  `json:"countries_detected"`
}

type DataTransferDestination struct {
	Domain   string `json:"domain"`
	Provider string `json:"provider"`
	Country  string `json:"country"`
	Adequate bool   `json:"adequate"`
	Requests int    `json:"requests"`
}

type TechDetectionResult struct {
	Technologies []Technology `json:"technologies"`
}

type Technology struct {
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	Category   string `json:"category,omitempty"`
	Source     string `json:"source"`
	Outdated   bool   `json:"outdated"`
	MinVersion string `json:"min_version,omitempty"`
}

// Outdated returns the detected technologies flagged as outdated
func (t TechDetectionResult) Outdated() []Technology {
	var outdated []Technology
	for _, tech := range t.Technologies {
		if tech.Outdated {
			outdated = append(outdated, tech)
		}
	}
	return outdated
}
