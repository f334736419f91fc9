package scan

import (
	"sync"
	"sync/atomic"

	"github.com/pyneda/consentscan/lib"
	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/report"
)

// networkObserver receives every request issued by the scanned page. Until
// consent is granted each request is tagged as pre-consent.
type networkObserver struct {
	targetHost  string
	pageIsHTTPS bool
	analyzers   Analyzers
	consent     atomic.Bool

	mu         sync.Mutex
	thirdParty []report.ThirdPartyRequest
}

func newNetworkObserver(targetHost string, pageIsHTTPS bool, analyzers Analyzers) *networkObserver {
	return &networkObserver{
		targetHost:  targetHost,
		pageIsHTTPS: pageIsHTTPS,
		analyzers:   analyzers,
	}
}

func (o *networkObserver) handle(req browser.Request) {
	if req.Host == "" {
		return
	}
	preConsent := !o.consent.Load()
	req.ThirdParty = lib.IsThirdPartyHost(req.Host, o.targetHost)

	if req.ThirdParty {
		o.mu.Lock()
		o.thirdParty = append(o.thirdParty, report.ThirdPartyRequest{
			URL:          req.URL,
			Host:         req.Host,
			Method:       req.Method,
			ResourceType: req.ResourceType,
			PreConsent:   preConsent,
		})
		o.mu.Unlock()
	}

	o.analyzers.Trackers.TrackRequest(req, preConsent)
	o.analyzers.Security.TrackMixedContent(req, o.pageIsHTTPS)
	o.analyzers.DataTransfer.AnalyzeRequest(req)
	o.analyzers.Technology.TrackRequest(req)
}

func (o *networkObserver) grantConsent() {
	o.consent.Store(true)
}

func (o *networkObserver) thirdPartyRequests() []report.ThirdPartyRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]report.ThirdPartyRequest{}, o.thirdParty...)
}
