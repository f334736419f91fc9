package passive

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pyneda/consentscan/lib"
	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/rs/zerolog/log"
)

// ErrAcceptNotClicked is returned when no accept control could be clicked
var ErrAcceptNotClicked = errors.New("consent accept control not clickable")

// ConsentPlatform describes the markup of a consent management platform
type ConsentPlatform struct {
	Provider string
	Selector string
	Accept   string
	Reject   string
	Settings string
}

var consentPlatforms = []ConsentPlatform{
	{Provider: "OneTrust", Selector: "#onetrust-banner-sdk", Accept: "#onetrust-accept-btn-handler", Reject: "#onetrust-reject-all-handler", Settings: "#onetrust-pc-btn-handler"},
	{Provider: "Cookiebot", Selector: "#CybotCookiebotDialog", Accept: "#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll", Reject: "#CybotCookiebotDialogBodyButtonDecline", Settings: "#CybotCookiebotDialogBodyLevelButtonCustomize"},
	{Provider: "Didomi", Selector: "#didomi-host", Accept: "#didomi-notice-agree-button", Reject: "#didomi-notice-disagree-button", Settings: "#didomi-notice-learn-more-button"},
	{Provider: "Quantcast", Selector: ".qc-cmp2-container", Accept: ".qc-cmp2-summary-buttons button[mode='primary']", Reject: ".qc-cmp2-summary-buttons button[mode='secondary']", Settings: ".qc-cmp2-summary-buttons button[mode='link']"},
	{Provider: "CookieYes", Selector: ".cky-consent-container", Accept: ".cky-btn-accept", Reject: ".cky-btn-reject", Settings: ".cky-btn-customize"},
	{Provider: "Complianz", Selector: "#cmplz-cookiebanner-container", Accept: ".cmplz-accept", Reject: ".cmplz-deny", Settings: ".cmplz-view-preferences"},
	{Provider: "Osano", Selector: ".osano-cm-dialog", Accept: ".osano-cm-accept-all", Reject: ".osano-cm-denyAll", Settings: ".osano-cm-manage"},
	{Provider: "TrustArc", Selector: "#truste-consent-track", Accept: "#truste-consent-button", Reject: "#truste-consent-required", Settings: "#truste-show-consent"},
	{Provider: "Borlabs", Selector: "#BorlabsCookieBox", Accept: "#BorlabsCookieBox a[data-cookie-accept-all]", Reject: "#BorlabsCookieBox a[data-cookie-refuse]", Settings: "#BorlabsCookieBox a[data-cookie-individual]"},
	{Provider: "Iubenda", Selector: "#iubenda-cs-banner", Accept: ".iubenda-cs-accept-btn", Reject: ".iubenda-cs-reject-btn", Settings: ".iubenda-cs-customize-btn"},
}

// genericBannerSelector matches home grown banners, filtered by text afterwards
const genericBannerSelector = `[id*=cookie], [class*=cookie], [id*=consent], [class*=consent], [aria-label*=cookie], [role=dialog]`

const buttonSelector = `button, a, [role=button], input[type=button], input[type=submit]`

var (
	acceptPattern   = regexp.MustCompile(`(?i)^\s*(accept|accept all|accept cookies|allow|allow all|agree|i agree|ok|okay|got it|aceptar|acepto|aceptar todo|akzeptieren|alle akzeptieren|tout accepter|accepter|accetta|accetto|aceitar)\b`)
	rejectPattern   = regexp.MustCompile(`(?i)\b(reject|decline|deny|refuse|disagree|necessary only|only necessary|essential only|rechazar|ablehnen|refuser|rifiuta|rejeitar)\b`)
	settingsPattern = regexp.MustCompile(`(?i)\b(settings|preferences|customi[sz]e|manage|options|configurar|einstellungen|param[eè]tres|personalizza)\b`)
	cookieWordRegex = regexp.MustCompile(`(?i)cookie|consent|datenschutz|privacidad`)
)

// BannerDetector recognises consent banners of known platforms and falls back
// to generic cookie banners. Detect remembers the banner for ClickAccept.
type BannerDetector struct {
	platform *ConsentPlatform
	selector string
}

func NewBannerDetector() *BannerDetector {
	return &BannerDetector{}
}

func (d *BannerDetector) Detect(page browser.Page) (report.BannerInfo, error) {
	doc, err := pageDocument(page)
	if err != nil {
		return report.BannerInfo{}, err
	}

	for i := range consentPlatforms {
		platform := &consentPlatforms[i]
		banner := doc.Find(platform.Selector).First()
		if banner.Length() == 0 {
			continue
		}
		d.platform = platform
		d.selector = platform.Selector
		info := report.BannerInfo{
			Found:           true,
			Provider:        platform.Provider,
			Selector:        platform.Selector,
			HasAcceptButton: doc.Find(platform.Accept).Length() > 0 || hasButton(banner, acceptPattern),
			HasRejectButton: doc.Find(platform.Reject).Length() > 0 || hasButton(banner, rejectPattern),
			HasSettings:     doc.Find(platform.Settings).Length() > 0 || hasButton(banner, settingsPattern),
			Text:            lib.Truncate(cleanText(banner), 300),
		}
		return info, nil
	}

	var info report.BannerInfo
	doc.Find(genericBannerSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := cleanText(s)
		if text == "" || !cookieWordRegex.MatchString(text) || !hasButton(s, acceptPattern, rejectPattern) {
			return true
		}
		selector := genericSelectorFor(s)
		if selector == "" {
			return true
		}
		d.selector = selector
		info = report.BannerInfo{
			Found:           true,
			Provider:        "generic",
			Selector:        selector,
			HasAcceptButton: hasButton(s, acceptPattern),
			HasRejectButton: hasButton(s, rejectPattern),
			HasSettings:     hasButton(s, settingsPattern),
			Text:            lib.Truncate(text, 300),
		}
		return false
	})
	return info, nil
}

func (d *BannerDetector) ClickAccept(page browser.Page) error {
	if d.platform != nil {
		clicked, err := page.Click(d.platform.Accept)
		if err != nil {
			return fmt.Errorf("click %s accept: %w", d.platform.Provider, err)
		}
		if clicked {
			return nil
		}
	}
	if d.selector == "" {
		return ErrAcceptNotClicked
	}
	clicked, err := page.ClickText(scopedButtons(d.selector), acceptPattern.String())
	if err != nil {
		return fmt.Errorf("click accept in %s: %w", d.selector, err)
	}
	if !clicked {
		log.Warn().Str("selector", d.selector).Msg("Consent banner detected but accept control could not be clicked")
		return ErrAcceptNotClicked
	}
	return nil
}

func hasButton(s *goquery.Selection, patterns ...*regexp.Regexp) bool {
	found := false
	s.Find(buttonSelector).EachWithBreak(func(i int, b *goquery.Selection) bool {
		label := cleanText(b)
		if label == "" {
			label, _ = b.Attr("value")
		}
		for _, pattern := range patterns {
			if pattern.MatchString(label) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// genericSelectorFor builds a selector that finds s again in the live page
func genericSelectorFor(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" && !strings.ContainsAny(id, " \"'") {
		return "#" + id
	}
	if class, ok := s.Attr("class"); ok {
		for _, name := range strings.Fields(class) {
			lower := strings.ToLower(name)
			if strings.Contains(lower, "cookie") || strings.Contains(lower, "consent") {
				return goquery.NodeName(s) + "." + name
			}
		}
	}
	return ""
}

func scopedButtons(scope string) string {
	parts := strings.Split(buttonSelector, ", ")
	for i, part := range parts {
		parts[i] = scope + " " + part
	}
	return strings.Join(parts, ", ")
}
