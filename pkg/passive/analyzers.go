// Package passive holds the default collaborators used by scans. They only
// read page state and observed traffic, they never submit forms or change
// anything beyond accepting the consent banner.
package passive

import (
	"github.com/pyneda/consentscan/pkg/scan"
)

// NewAnalyzers returns a fresh set of default collaborators for one scan run
func NewAnalyzers() scan.Analyzers {
	return scan.Analyzers{
		Cookies:      NewCookieCollector(),
		Banner:       NewBannerDetector(),
		Policy:       NewPolicyAnalyzer(),
		Security:     NewSecurityAnalyzer(),
		Forms:        NewFormAnalyzer(),
		DataTransfer: NewDataTransferAnalyzer(),
		Technology:   NewTechnologyDetector(),
		Trackers:     NewTrackerDetector(),
	}
}

var _ scan.AnalyzerFactory = NewAnalyzers
