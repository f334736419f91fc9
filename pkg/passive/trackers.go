package passive

import (
	"sync"

	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/report"
)

// TrackerDetector aggregates requests to known tracking providers, one entry
// per provider in first seen order.
type TrackerDetector struct {
	mu       sync.Mutex
	order    []string
	trackers map[string]*report.TrackerInfo
}

func NewTrackerDetector() *TrackerDetector {
	return &TrackerDetector{trackers: make(map[string]*report.TrackerInfo)}
}

func (d *TrackerDetector) TrackRequest(req browser.Request, preConsent bool) {
	if !req.ThirdParty {
		return
	}
	provider, ok := LookupProvider(req.Host)
	if !ok || !provider.Tracker {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	info, exists := d.trackers[provider.Name]
	if !exists {
		info = &report.TrackerInfo{
			Name:     provider.Name,
			Category: provider.Category,
			Host:     req.Host,
			Country:  provider.Country,
		}
		d.trackers[provider.Name] = info
		d.order = append(d.order, provider.Name)
	}
	info.Requests++
	info.PreConsent = info.PreConsent || preConsent
}

func (d *TrackerDetector) Trackers() []report.TrackerInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	trackers := make([]report.TrackerInfo, 0, len(d.order))
	for _, name := range d.order {
		trackers = append(trackers, *d.trackers[name])
	}
	return trackers
}
