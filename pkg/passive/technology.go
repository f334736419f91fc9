package passive

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	wappalyzer "github.com/projectdiscovery/wappalyzergo"
	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/rs/zerolog/log"
)

const (
	SourceWappalyzer = "wappalyzer"
	SourceScript     = "script"
	SourceRuntime    = "runtime"
)

type scriptPattern struct {
	Name     string
	Category string
	Pattern  *regexp.Regexp
}

var scriptPatterns = []scriptPattern{
	{"jQuery", "javascript-library", regexp.MustCompile(`(?i)jquery[.-]?(\d+\.\d+\.\d+)(?:\.slim)?(?:\.min)?\.js`)},
	{"jQuery", "javascript-library", regexp.MustCompile(`(?i)/jquery/(\d+\.\d+\.\d+)/`)},
	{"jQuery UI", "javascript-library", regexp.MustCompile(`(?i)jquery-ui[.-]?(\d+\.\d+\.\d+)`)},
	{"Bootstrap", "ui-framework", regexp.MustCompile(`(?i)bootstrap(?:\.bundle)?[/@-](\d+\.\d+\.\d+)`)},
	{"AngularJS", "javascript-framework", regexp.MustCompile(`(?i)angular(?:js)?[/@](1\.\d+\.\d+)`)},
	{"React", "javascript-framework", regexp.MustCompile(`(?i)react(?:-dom)?@(\d+\.\d+\.\d+)`)},
	{"Vue.js", "javascript-framework", regexp.MustCompile(`(?i)vue@(\d+\.\d+\.\d+)`)},
	{"Lodash", "javascript-library", regexp.MustCompile(`(?i)lodash(?:\.js)?[/@](\d+\.\d+\.\d+)`)},
	{"Moment.js", "javascript-library", regexp.MustCompile(`(?i)moment(?:\.js)?[/@](\d+\.\d+\.\d+)`)},
}

type runtimeProbe struct {
	Name     string
	Category string
	Script   string
}

var runtimeProbes = []runtimeProbe{
	{"jQuery", "javascript-library", `() => (window.jQuery && window.jQuery.fn && window.jQuery.fn.jquery) || ""`},
	{"React", "javascript-framework", `() => (window.React && window.React.version) || ""`},
	{"Vue.js", "javascript-framework", `() => (window.Vue && window.Vue.version) || ""`},
	{"AngularJS", "javascript-framework", `() => (window.angular && window.angular.version && window.angular.version.full) || ""`},
	{"Lodash", "javascript-library", `() => (window._ && window._.VERSION) || ""`},
	{"Moment.js", "javascript-library", `() => (window.moment && window.moment.version) || ""`},
}

// minimumVersions lists the oldest release still considered maintained
var minimumVersions = map[string]string{
	"jquery":             "3.5.0",
	"jquery ui":          "1.13.2",
	"bootstrap":          "4.3.1",
	"angularjs":          "1.8.3",
	"react":              "17.0.0",
	"vue.js":             "3.0.0",
	"lodash":             "4.17.21",
	"moment.js":          "2.29.4",
	"wordpress":          "6.4.0",
	"php":                "8.1.0",
	"drupal":             "10.0.0",
	"joomla":             "4.4.0",
	"nginx":              "1.24.0",
	"apache http server": "2.4.58",
}

const maxTrackedScripts = 500

var (
	wappalyzerOnce   sync.Once
	wappalyzerClient *wappalyzer.Wappalyze
)

func getWappalyzer() *wappalyzer.Wappalyze {
	wappalyzerOnce.Do(func() {
		client, err := wappalyzer.New()
		if err != nil {
			log.Error().Err(err).Msg("Could not initialize wappalyzer, fingerprinting disabled")
			return
		}
		wappalyzerClient = client
	})
	return wappalyzerClient
}

// TechnologyDetector combines wappalyzer fingerprints of the main document
// with versioned script URLs and runtime globals
type TechnologyDetector struct {
	mu      sync.Mutex
	scripts []string
}

func NewTechnologyDetector() *TechnologyDetector {
	return &TechnologyDetector{}
}

func (d *TechnologyDetector) TrackRequest(req browser.Request) {
	if !strings.EqualFold(req.ResourceType, "script") {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.scripts) < maxTrackedScripts {
		d.scripts = append(d.scripts, req.URL)
	}
}

func (d *TechnologyDetector) Detect(page browser.Page) (report.TechDetectionResult, error) {
	detected := newTechnologySet()

	html, err := page.HTML()
	if err != nil {
		return report.TechDetectionResult{}, err
	}
	if client := getWappalyzer(); client != nil {
		headers := map[string][]string{}
		if resp := page.MainResponse(); resp != nil {
			for name, value := range resp.Headers {
				headers[name] = []string{value}
			}
		}
		for fingerprint := range client.Fingerprint(headers, []byte(html)) {
			name, version, _ := strings.Cut(fingerprint, ":")
			detected.add(report.Technology{Name: name, Version: version, Source: SourceWappalyzer})
		}
	}

	d.mu.Lock()
	scripts := append([]string{}, d.scripts...)
	d.mu.Unlock()
	for _, script := range scripts {
		for _, pattern := range scriptPatterns {
			if match := pattern.Pattern.FindStringSubmatch(script); len(match) > 1 {
				detected.add(report.Technology{Name: pattern.Name, Version: match[1], Category: pattern.Category, Source: SourceScript})
			}
		}
	}

	for _, probe := range runtimeProbes {
		value, err := page.Eval(probe.Script)
		if err != nil {
			log.Debug().Err(err).Str("technology", probe.Name).Msg("Runtime technology probe failed")
			continue
		}
		if version, ok := value.Val().(string); ok && version != "" {
			detected.add(report.Technology{Name: probe.Name, Version: version, Category: probe.Category, Source: SourceRuntime})
		}
	}

	return report.TechDetectionResult{Technologies: detected.list()}, nil
}

// CheckOutdated flags tech when its version is below the maintained minimum
func CheckOutdated(tech *report.Technology) {
	minimum, ok := minimumVersions[strings.ToLower(tech.Name)]
	if !ok || tech.Version == "" {
		return
	}
	version, err := semver.NewVersion(tech.Version)
	if err != nil {
		return
	}
	minVersion, err := semver.NewVersion(minimum)
	if err != nil {
		return
	}
	tech.MinVersion = minimum
	tech.Outdated = version.LessThan(minVersion)
}

// technologySet merges detections of the same technology, keeping the
// first one that carries a version
type technologySet struct {
	items map[string]*report.Technology
}

func newTechnologySet() *technologySet {
	return &technologySet{items: map[string]*report.Technology{}}
}

func (s *technologySet) add(tech report.Technology) {
	key := strings.ToLower(tech.Name)
	existing, ok := s.items[key]
	if ok && (existing.Version != "" || tech.Version == "") {
		if existing.Category == "" {
			existing.Category = tech.Category
		}
		return
	}
	if ok && tech.Category == "" {
		tech.Category = existing.Category
	}
	CheckOutdated(&tech)
	s.items[key] = &tech
}

func (s *technologySet) list() []report.Technology {
	list := make([]report.Technology, 0, len(s.items))
	for _, tech := range s.items {
		list = append(list, *tech)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}
