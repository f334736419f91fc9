package passive

import (
	"strings"

	"github.com/pyneda/consentscan/lib"
	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/report"
)

type cookiePattern struct {
	// Name is matched exactly, or as a prefix when it ends with "*"
	Name     string
	Category report.CookieCategory
}

var cookiePatterns = []cookiePattern{
	{"phpsessid", report.CookieCategoryNecessary},
	{"jsessionid", report.CookieCategoryNecessary},
	{"asp.net_sessionid", report.CookieCategoryNecessary},
	{"session*", report.CookieCategoryNecessary},
	{"sid", report.CookieCategoryNecessary},
	{"csrftoken", report.CookieCategoryNecessary},
	{"xsrf-token", report.CookieCategoryNecessary},
	{"_csrf", report.CookieCategoryNecessary},
	{"__cf_bm", report.CookieCategoryNecessary},
	{"cf_clearance", report.CookieCategoryNecessary},
	{"__host-*", report.CookieCategoryNecessary},
	{"__secure-*", report.CookieCategoryNecessary},
	{"wordpress_logged_in_*", report.CookieCategoryNecessary},
	{"wordpress_sec_*", report.CookieCategoryNecessary},
	{"laravel_session", report.CookieCategoryNecessary},
	{"cookieconsent_status", report.CookieCategoryNecessary},
	{"cookieconsent", report.CookieCategoryNecessary},
	{"optanonconsent", report.CookieCategoryNecessary},
	{"optanonalertboxclosed", report.CookieCategoryNecessary},
	{"euconsent-v2", report.CookieCategoryNecessary},
	{"didomi_token", report.CookieCategoryNecessary},
	{"cmplz_*", report.CookieCategoryNecessary},
	{"cookieyes-consent", report.CookieCategoryNecessary},

	{"_ga", report.CookieCategoryAnalytics},
	{"_ga_*", report.CookieCategoryAnalytics},
	{"_gid", report.CookieCategoryAnalytics},
	{"_gat*", report.CookieCategoryAnalytics},
	{"__utm*", report.CookieCategoryAnalytics},
	{"_hj*", report.CookieCategoryAnalytics},
	{"_clck", report.CookieCategoryAnalytics},
	{"_clsk", report.CookieCategoryAnalytics},
	{"mp_*", report.CookieCategoryAnalytics},
	{"ajs_*", report.CookieCategoryAnalytics},
	{"amplitude_id*", report.CookieCategoryAnalytics},
	{"_pk_*", report.CookieCategoryAnalytics},
	{"_ym_*", report.CookieCategoryAnalytics},
	{"s_cc", report.CookieCategoryAnalytics},
	{"s_sq", report.CookieCategoryAnalytics},

	{"_fbp", report.CookieCategoryMarketing},
	{"_fbc", report.CookieCategoryMarketing},
	{"fr", report.CookieCategoryMarketing},
	{"ide", report.CookieCategoryMarketing},
	{"test_cookie", report.CookieCategoryMarketing},
	{"_gcl_*", report.CookieCategoryMarketing},
	{"nid", report.CookieCategoryMarketing},
	{"muid", report.CookieCategoryMarketing},
	{"_uetsid", report.CookieCategoryMarketing},
	{"_uetvid", report.CookieCategoryMarketing},
	{"_ttp", report.CookieCategoryMarketing},
	{"_tt_*", report.CookieCategoryMarketing},
	{"li_*", report.CookieCategoryMarketing},
	{"bcookie", report.CookieCategoryMarketing},
	{"lidc", report.CookieCategoryMarketing},
	{"personalization_id", report.CookieCategoryMarketing},
	{"_pin_unauth", report.CookieCategoryMarketing},
	{"_scid", report.CookieCategoryMarketing},
	{"hubspotutk", report.CookieCategoryMarketing},
	{"__hs*", report.CookieCategoryMarketing},
	{"cto_*", report.CookieCategoryMarketing},

	{"lang", report.CookieCategoryPreferences},
	{"language", report.CookieCategoryPreferences},
	{"locale", report.CookieCategoryPreferences},
	{"pll_language", report.CookieCategoryPreferences},
	{"wp-wpml_current_language", report.CookieCategoryPreferences},
	{"wp-settings-*", report.CookieCategoryPreferences},
	{"theme", report.CookieCategoryPreferences},
}

// ClassifyCookie assigns a category by cookie name, case insensitive
func ClassifyCookie(name string) report.CookieCategory {
	name = strings.ToLower(name)
	for _, pattern := range cookiePatterns {
		if prefix, ok := strings.CutSuffix(pattern.Name, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return pattern.Category
			}
			continue
		}
		if name == pattern.Name {
			return pattern.Category
		}
	}
	return report.CookieCategoryUnknown
}

// CookieCollector reads every cookie of the page's browsing context
type CookieCollector struct{}

func NewCookieCollector() *CookieCollector {
	return &CookieCollector{}
}

func (c *CookieCollector) Collect(page browser.Page, preConsent bool) ([]report.CookieInfo, error) {
	cookies, err := page.Cookies()
	if err != nil {
		return nil, err
	}
	siteHost, _ := lib.GetHostFromURL(page.URL())
	siteDomain := ""
	if siteHost != "" {
		siteDomain = lib.RegistrableDomain(siteHost)
	}

	collected := make([]report.CookieInfo, 0, len(cookies))
	for _, cookie := range cookies {
		info := report.CookieInfo{
			Name:       cookie.Name,
			Domain:     cookie.Domain,
			Path:       cookie.Path,
			Value:      cookie.Value,
			Session:    cookie.Session,
			Secure:     cookie.Secure,
			HTTPOnly:   cookie.HTTPOnly,
			SameSite:   cookie.SameSite,
			Category:   ClassifyCookie(cookie.Name),
			PreConsent: preConsent,
		}
		if !cookie.Session && !cookie.Expires.IsZero() {
			expires := cookie.Expires
			info.Expires = &expires
		}
		cookieDomain := lib.RegistrableDomain(strings.TrimPrefix(cookie.Domain, "."))
		info.ThirdParty = siteDomain != "" && cookieDomain != siteDomain
		collected = append(collected, info)
	}
	return collected, nil
}
