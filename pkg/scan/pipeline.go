package scan

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pyneda/consentscan/lib"
	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// PipelineConfig bounds the time spent on a single scan
type PipelineConfig struct {
	NavigationTimeout time.Duration
	ConsentSettle     time.Duration
}

// DefaultPipelineConfig returns the navigation settings from configuration
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		NavigationTimeout: viper.GetDuration("navigation.timeout"),
		ConsentSettle:     viper.GetDuration("navigation.consent_settle"),
	}
}

// Pipeline drives one page through the consent flow and turns what it
// observes into a ScanResult.
type Pipeline struct {
	session   *browser.Session
	analyzers AnalyzerFactory
	config    PipelineConfig
}

func NewPipeline(session *browser.Session, analyzers AnalyzerFactory, config PipelineConfig) *Pipeline {
	if config.NavigationTimeout <= 0 {
		config.NavigationTimeout = 30 * time.Second
	}
	if config.ConsentSettle < 0 {
		config.ConsentSettle = 0
	}
	return &Pipeline{
		session:   session,
		analyzers: analyzers,
		config:    config,
	}
}

// Run scans rawURL. Any failure is returned as a *ScanError and no partial
// result is produced.
func (p *Pipeline) Run(ctx context.Context, rawURL string) (*report.ScanResult, error) {
	targetURL := NormalizeURL(rawURL)
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Hostname() == "" {
		if err == nil {
			err = errors.New("missing host")
		}
		return nil, &ScanError{Kind: ErrorKindNavigationFailure, Phase: "normalize", URL: targetURL, Err: err}
	}

	started := time.Now().UTC()
	scanLog := log.With().Str("url", targetURL).Logger()
	analyzers := p.analyzers()

	engine, err := p.session.Acquire(ctx)
	if err != nil {
		return nil, &ScanError{Kind: ErrorKindEngineCrash, Phase: "acquire", URL: targetURL, Err: err}
	}
	bctx, err := p.session.NewContext(engine)
	if err != nil {
		return nil, p.classify(engine, "context", targetURL, err, ErrorKindNavigationFailure)
	}
	defer p.session.CloseContext(engine, bctx)

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, p.classify(engine, "open page", targetURL, err, ErrorKindNavigationFailure)
	}
	defer closePage(page, scanLog)

	observer := newNetworkObserver(lib.StripWWW(parsed.Hostname()), parsed.Scheme == "https", analyzers)
	page.OnRequest(observer.handle)

	scanLog.Debug().Msg("Navigating to target")
	if err := p.navigate(ctx, page, targetURL); err != nil {
		return nil, p.navigationError(engine, "navigation", targetURL, err)
	}

	// Phase A: state before any interaction
	preCookies, err := analyzers.Cookies.Collect(page, true)
	if err != nil {
		return nil, p.collaboratorError(engine, "pre-consent cookies", targetURL, err)
	}
	banner, err := analyzers.Banner.Detect(page)
	if err != nil {
		return nil, p.collaboratorError(engine, "banner detection", targetURL, err)
	}
	policy, err := analyzers.Policy.Detect(page)
	if err != nil {
		return nil, p.collaboratorError(engine, "policy detection", targetURL, err)
	}
	scanLog.Debug().Int("cookies", len(preCookies)).Bool("banner", banner.Found).Bool("policy", policy.Found).Msg("Pre-consent state collected")

	// Phase B: accept consent
	if banner.Found && banner.HasAcceptButton {
		// requests triggered by the accept click count as consented
		observer.grantConsent()
		if err := analyzers.Banner.ClickAccept(page); err != nil {
			return nil, p.collaboratorError(engine, "consent", targetURL, err)
		}
		if err := sleepContext(ctx, p.config.ConsentSettle); err != nil {
			return nil, p.collaboratorError(engine, "consent", targetURL, err)
		}
		scanLog.Debug().Str("provider", banner.Provider).Msg("Consent accepted")
	}

	// Phase C: state after consent
	postCookies, err := analyzers.Cookies.Collect(page, false)
	if err != nil {
		return nil, p.collaboratorError(engine, "post-consent cookies", targetURL, err)
	}
	cookies := MergeCookies(preCookies, postCookies)

	// Phase D: transport security
	httpsInfo, err := analyzers.Security.AnalyzeHTTPS(page, targetURL)
	if err != nil {
		return nil, p.collaboratorError(engine, "security", targetURL, err)
	}
	security := report.SecurityInfo{
		HTTPS:          httpsInfo,
		MixedContent:   analyzers.Security.MixedContent(),
		CookieSecurity: analyzers.Security.AnalyzeCookies(cookies),
	}

	// Phase E: forms
	forms, err := analyzers.Forms.Analyze(page)
	if err != nil {
		return nil, p.collaboratorError(engine, "forms", targetURL, err)
	}

	// Phase F: privacy policy content
	if policy.Found && policy.URL != "" {
		content, err := p.analyzePolicy(ctx, engine, bctx, analyzers.Policy, policy.URL, scanLog)
		if err != nil {
			return nil, err
		}
		policy.Content = content
	}

	// Phase G: data transfers and technologies
	technologies, err := analyzers.Technology.Detect(page)
	if err != nil {
		return nil, p.collaboratorError(engine, "technology", targetURL, err)
	}

	result := &report.ScanResult{
		URL:                targetURL,
		ScanStartedAt:      started,
		Cookies:            cookies,
		Trackers:           analyzers.Trackers.Trackers(),
		ThirdPartyRequests: observer.thirdPartyRequests(),
		ConsentBanner:      banner,
		PrivacyPolicy:      policy,
		Security:           security,
		Forms:              forms,
		DataTransfers:      analyzers.DataTransfer.Result(),
		Technologies:       technologies,
	}
	result.Issues = GenerateIssues(result)
	result.RiskLevel = report.OverallRisk(result.Issues)
	result.Score = report.Score(result.Issues)
	result.Duration = time.Since(started)

	scanLog.Info().Int("issues", len(result.Issues)).Int("score", result.Score).Str("risk", result.RiskLevel.String()).Dur("duration", result.Duration).Msg("Scan pipeline finished")
	return result, nil
}

func (p *Pipeline) navigate(ctx context.Context, page browser.Page, target string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.config.NavigationTimeout)
	defer cancel()
	return page.Navigate(navCtx, target)
}

// analyzePolicy opens the policy in a separate page of the same context
func (p *Pipeline) analyzePolicy(ctx context.Context, engine browser.Engine, bctx browser.Context, analyzer PolicyAnalyzer, policyURL string, scanLog zerolog.Logger) (*report.PolicyContent, error) {
	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, p.classify(engine, "policy page", policyURL, err, ErrorKindCollaboratorFailure)
	}
	defer closePage(page, scanLog)

	if err := p.navigate(ctx, page, policyURL); err != nil {
		return nil, p.navigationError(engine, "policy navigation", policyURL, err)
	}
	content, err := analyzer.AnalyzeContent(page, policyURL)
	if err != nil {
		return nil, p.collaboratorError(engine, "policy content", policyURL, err)
	}
	return &content, nil
}

func (p *Pipeline) navigationError(engine browser.Engine, phase, target string, err error) error {
	if p.session.ReportError(engine, err) {
		return &ScanError{Kind: ErrorKindEngineCrash, Phase: phase, URL: target, Err: err}
	}
	if isTimeout(err) {
		return &ScanError{Kind: ErrorKindNavigationTimeout, Phase: phase, URL: target, Err: err}
	}
	return &ScanError{Kind: ErrorKindNavigationFailure, Phase: phase, URL: target, Err: err}
}

func (p *Pipeline) collaboratorError(engine browser.Engine, phase, target string, err error) error {
	return p.classify(engine, phase, target, err, ErrorKindCollaboratorFailure)
}

// classify reports crash-like errors to the session so the engine gets
// replaced, falling back to kind otherwise.
func (p *Pipeline) classify(engine browser.Engine, phase, target string, err error, kind ErrorKind) error {
	if p.session.ReportError(engine, err) {
		kind = ErrorKindEngineCrash
	}
	return &ScanError{Kind: kind, Phase: phase, URL: target, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func closePage(page browser.Page, scanLog zerolog.Logger) {
	if err := page.Close(); err != nil {
		scanLog.Debug().Err(err).Msg("Failed to close page")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting for consent to settle: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
