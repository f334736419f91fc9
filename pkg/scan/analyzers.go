package scan

import (
	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/report"
)

// CookieCollector reads the cookies currently set in the page's context
type CookieCollector interface {
	Collect(page browser.Page, preConsent bool) ([]report.CookieInfo, error)
}

// BannerDetector finds a consent banner and accepts it
type BannerDetector interface {
	Detect(page browser.Page) (report.BannerInfo, error)
	ClickAccept(page browser.Page) error
}

// PolicyAnalyzer finds the privacy policy link and analyzes the policy page
type PolicyAnalyzer interface {
	Detect(page browser.Page) (report.PolicyInfo, error)
	// AnalyzeContent inspects a page already navigated to the policy URL
	AnalyzeContent(page browser.Page, policyURL string) (report.PolicyContent, error)
}

// SecurityAnalyzer checks transport security. TrackMixedContent is called
// concurrently from the network observer.
type SecurityAnalyzer interface {
	AnalyzeHTTPS(page browser.Page, targetURL string) (report.HTTPSInfo, error)
	TrackMixedContent(req browser.Request, pageIsHTTPS bool)
	MixedContent() []report.MixedContent
	AnalyzeCookies(cookies []report.CookieInfo) report.CookieSecurityInfo
}

type FormAnalyzer interface {
	Analyze(page browser.Page) (report.FormsResult, error)
}

// DataTransferAnalyzer accumulates request destinations during one scan
type DataTransferAnalyzer interface {
	AnalyzeRequest(req browser.Request)
	Result() report.DataTransferInfo
}

// TechnologyDetector accumulates script evidence and fingerprints the page
type TechnologyDetector interface {
	TrackRequest(req browser.Request)
	Detect(page browser.Page) (report.TechDetectionResult, error)
}

// TrackerDetector matches requests against known tracker hosts
type TrackerDetector interface {
	TrackRequest(req browser.Request, preConsent bool)
	Trackers() []report.TrackerInfo
}

// Analyzers is the set of collaborators used by one scan run
type Analyzers struct {
	Cookies      CookieCollector
	Banner       BannerDetector
	Policy       PolicyAnalyzer
	Security     SecurityAnalyzer
	Forms        FormAnalyzer
	DataTransfer DataTransferAnalyzer
	Technology   TechnologyDetector
	Trackers     TrackerDetector
}

// AnalyzerFactory returns fresh collaborators for each run so no state leaks between scans
type AnalyzerFactory func() Analyzers
