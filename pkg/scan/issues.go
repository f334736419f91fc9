package scan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pyneda/consentscan/pkg/report"
)

const (
	IssueTrackersBeforeConsent   = "TRACKERS_BEFORE_CONSENT"
	IssueCookiesBeforeConsent    = "NON_ESSENTIAL_COOKIES_BEFORE_CONSENT"
	IssueNoConsentBanner         = "NO_CONSENT_BANNER"
	IssueNoRejectOption          = "NO_REJECT_OPTION"
	IssueNoPrivacyPolicy         = "NO_PRIVACY_POLICY"
	IssuePrivacyPolicyIncomplete = "PRIVACY_POLICY_INCOMPLETE"
	IssueNoHTTPS                 = "NO_HTTPS"
	IssueMixedContent            = "MIXED_CONTENT"
	IssueInsecureCookies         = "INSECURE_COOKIES"
	IssueMissingSecurityHeaders  = "MISSING_SECURITY_HEADERS"
	IssueInsecureForm            = "INSECURE_FORM"
	IssueFormWithoutConsent      = "FORM_WITHOUT_CONSENT"
	IssueDataTransferOutsideEU   = "DATA_TRANSFER_OUTSIDE_EU"
	IssueOutdatedTechnology      = "OUTDATED_TECHNOLOGY"
)

// listLimit caps how many names are quoted in an issue description
const listLimit = 5

// GenerateIssues derives the issue list from the collected evidence. It is a
// pure function: the same result always yields the same issues in the same order.
func GenerateIssues(result *report.ScanResult) []report.Issue {
	issues := []report.Issue{}
	if result == nil {
		return issues
	}
	add := func(code, title, description string, risk report.RiskLevel, recommendation string) {
		issues = append(issues, report.Issue{
			Code:           code,
			Title:          title,
			Description:    description,
			Risk:           risk,
			Recommendation: recommendation,
		})
	}

	var preConsentTrackers []string
	for _, tracker := range result.Trackers {
		if tracker.PreConsent {
			preConsentTrackers = append(preConsentTrackers, tracker.Name)
		}
	}
	if len(preConsentTrackers) > 0 {
		add(IssueTrackersBeforeConsent,
			"Trackers loaded before consent",
			fmt.Sprintf("%d tracker(s) received requests before the visitor gave consent: %s", len(preConsentTrackers), joinLimited(preConsentTrackers)),
			report.RiskCritical,
			"Block tracking scripts until the visitor has accepted the corresponding consent category.")
	}

	var preConsentCookies, nonEssentialCookies []string
	for _, cookie := range result.Cookies {
		if cookie.Category.IsEssential() || cookie.Category == report.CookieCategoryUnknown {
			continue
		}
		nonEssentialCookies = append(nonEssentialCookies, cookie.Name)
		if cookie.PreConsent {
			preConsentCookies = append(preConsentCookies, cookie.Name)
		}
	}
	if len(preConsentCookies) > 0 {
		add(IssueCookiesBeforeConsent,
			"Non-essential cookies set before consent",
			fmt.Sprintf("%d non-essential cookie(s) were set before consent: %s", len(preConsentCookies), joinLimited(preConsentCookies)),
			report.RiskCritical,
			"Only set strictly necessary cookies until the visitor has given consent.")
	}

	banner := result.ConsentBanner
	if !banner.Found && (len(result.Trackers) > 0 || len(nonEssentialCookies) > 0) {
		add(IssueNoConsentBanner,
			"No consent banner",
			"The site uses non-essential cookies or trackers but no consent banner was detected.",
			report.RiskHigh,
			"Add a consent management platform that asks for consent before loading non-essential services.")
	}
	if banner.Found && !banner.HasRejectButton {
		add(IssueNoRejectOption,
			"Consent banner without reject option",
			"The consent banner does not offer a first-level option to reject non-essential cookies.",
			report.RiskHigh,
			"Offer a reject button as prominent as the accept button.")
	}

	policy := result.PrivacyPolicy
	if !policy.Found {
		add(IssueNoPrivacyPolicy,
			"No privacy policy",
			"No link to a privacy policy was found on the page.",
			report.RiskHigh,
			"Publish a privacy policy and link it from every page.")
	} else if policy.Content != nil && !policy.Content.IsComplete() {
		add(IssuePrivacyPolicyIncomplete,
			"Incomplete privacy policy",
			fmt.Sprintf("The privacy policy at %s is missing sections: %s", policy.URL, joinLimited(policy.Content.SectionsMissing)),
			report.RiskMedium,
			"Cover every mandatory topic in the privacy policy.")
	}

	security := result.Security
	if !security.HTTPS.Enabled {
		add(IssueNoHTTPS,
			"Site not served over HTTPS",
			"The page was delivered without TLS, exposing visitor data in transit.",
			report.RiskHigh,
			"Serve the site exclusively over HTTPS and redirect plain HTTP requests.")
	}
	if len(security.MixedContent) > 0 {
		urls := make([]string, 0, len(security.MixedContent))
		for _, mc := range security.MixedContent {
			urls = append(urls, mc.URL)
		}
		add(IssueMixedContent,
			"Mixed content",
			fmt.Sprintf("%d resource(s) were loaded over HTTP on an HTTPS page: %s", len(urls), joinLimited(urls)),
			report.RiskMedium,
			"Load every subresource over HTTPS.")
	}
	if len(security.CookieSecurity.MissingSecure) > 0 {
		add(IssueInsecureCookies,
			"Cookies without Secure flag",
			fmt.Sprintf("%d cookie(s) lack the Secure attribute: %s", len(security.CookieSecurity.MissingSecure), joinLimited(security.CookieSecurity.MissingSecure)),
			report.RiskMedium,
			"Set the Secure attribute on every cookie, and HttpOnly and SameSite where possible.")
	}
	if len(security.HTTPS.MissingHeaders) > 0 {
		add(IssueMissingSecurityHeaders,
			"Missing security headers",
			fmt.Sprintf("The response is missing: %s", joinLimited(security.HTTPS.MissingHeaders)),
			report.RiskLow,
			"Send the missing security headers on every response.")
	}

	var insecureForms, formsWithoutConsent []string
	for _, form := range result.Forms.Forms {
		if !form.CollectsPersonalData {
			continue
		}
		if form.InsecureSubmission {
			insecureForms = append(insecureForms, formName(form))
		}
		if !form.HasConsentCheckbox && !form.HasPrivacyLink {
			formsWithoutConsent = append(formsWithoutConsent, formName(form))
		}
	}
	if len(insecureForms) > 0 {
		add(IssueInsecureForm,
			"Personal data submitted insecurely",
			fmt.Sprintf("%d form(s) collecting personal data submit over plain HTTP: %s", len(insecureForms), joinLimited(insecureForms)),
			report.RiskHigh,
			"Submit forms only to HTTPS endpoints.")
	}
	if len(formsWithoutConsent) > 0 {
		add(IssueFormWithoutConsent,
			"Form without consent information",
			fmt.Sprintf("%d form(s) collect personal data without a consent checkbox or privacy link: %s", len(formsWithoutConsent), joinLimited(formsWithoutConsent)),
			report.RiskMedium,
			"Link the privacy policy next to the form and ask for consent where it is the legal basis.")
	}

	if result.DataTransfers.NonAdequateCount > 0 {
		var destinations []string
		for _, dest := range result.DataTransfers.Destinations {
			if !dest.Adequate {
				destinations = append(destinations, fmt.Sprintf("%s (%s)", dest.Domain, dest.Country))
			}
		}
		add(IssueDataTransferOutsideEU,
			"Data transfers outside the EU",
			fmt.Sprintf("Requests were sent to %d destination(s) in countries without an adequacy decision: %s", result.DataTransfers.NonAdequateCount, joinLimited(destinations)),
			report.RiskMedium,
			"Document the transfer mechanism (standard contractual clauses) or choose providers hosted in the EU.")
	}

	if outdated := result.Technologies.Outdated(); len(outdated) > 0 {
		names := make([]string, 0, len(outdated))
		for _, tech := range outdated {
			names = append(names, fmt.Sprintf("%s %s", tech.Name, tech.Version))
		}
		sort.Strings(names)
		add(IssueOutdatedTechnology,
			"Outdated technology",
			fmt.Sprintf("Outdated components detected: %s", joinLimited(names)),
			report.RiskLow,
			"Update the listed components to a supported version.")
	}

	return issues
}

func formName(form report.FormInfo) string {
	if form.Action == "" {
		return "(inline form)"
	}
	return form.Action
}

func joinLimited(items []string) string {
	if len(items) <= listLimit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:listLimit], ", "), len(items)-listLimit)
}
