package passive

import (
	"strings"
)

// Provider is a known third party service. Tracker providers are reported by
// the tracker detector, every provider feeds the data transfer analysis.
type Provider struct {
	Name     string
	Category string
	Country  string
	Tracker  bool
	Domains  []string
}

var providers = []Provider{
	{Name: "Google Analytics", Category: "analytics", Country: "US", Tracker: true, Domains: []string{"google-analytics.com", "analytics.google.com"}},
	{Name: "Google Tag Manager", Category: "tag_manager", Country: "US", Tracker: true, Domains: []string{"googletagmanager.com"}},
	{Name: "Google Ads", Category: "advertising", Country: "US", Tracker: true, Domains: []string{"doubleclick.net", "googleadservices.com", "googlesyndication.com", "adservice.google.com"}},
	{Name: "Meta Pixel", Category: "advertising", Country: "US", Tracker: true, Domains: []string{"connect.facebook.net", "facebook.com"}},
	{Name: "Microsoft Clarity", Category: "analytics", Country: "US", Tracker: true, Domains: []string{"clarity.ms"}},
	{Name: "Microsoft Advertising", Category: "advertising", Country: "US", Tracker: true, Domains: []string{"bat.bing.com"}},
	{Name: "LinkedIn Insight", Category: "advertising", Country: "US", Tracker: true, Domains: []string{"snap.licdn.com", "px.ads.linkedin.com"}},
	{Name: "TikTok Pixel", Category: "advertising", Country: "US", Tracker: true, Domains: []string{"analytics.tiktok.com"}},
	{Name: "X Ads", Category: "advertising", Country: "US", Tracker: true, Domains: []string{"static.ads-twitter.com", "analytics.twitter.com", "ads-api.x.com"}},
	{Name: "Pinterest Tag", Category: "advertising", Country: "US", Tracker: true, Domains: []string{"ct.pinterest.com", "s.pinimg.com"}},
	{Name: "Hotjar", Category: "analytics", Country: "MT", Tracker: true, Domains: []string{"hotjar.com", "hotjar.io"}},
	{Name: "Yandex Metrica", Category: "analytics", Country: "RU", Tracker: true, Domains: []string{"mc.yandex.ru", "mc.yandex.com"}},
	{Name: "Baidu Analytics", Category: "analytics", Country: "CN", Tracker: true, Domains: []string{"hm.baidu.com"}},
	{Name: "Segment", Category: "analytics", Country: "US", Tracker: true, Domains: []string{"cdn.segment.com", "api.segment.io"}},
	{Name: "Mixpanel", Category: "analytics", Country: "US", Tracker: true, Domains: []string{"mixpanel.com", "mxpnl.com"}},
	{Name: "Amplitude", Category: "analytics", Country: "US", Tracker: true, Domains: []string{"amplitude.com"}},
	{Name: "Adobe Analytics", Category: "analytics", Country: "US", Tracker: true, Domains: []string{"omtrdc.net", "demdex.net", "2o7.net"}},
	{Name: "HubSpot", Category: "marketing", Country: "US", Tracker: true, Domains: []string{"hs-scripts.com", "hs-analytics.net", "hubspot.com"}},
	{Name: "Criteo", Category: "advertising", Country: "FR", Tracker: true, Domains: []string{"criteo.com", "criteo.net"}},
	{Name: "Taboola", Category: "advertising", Country: "US", Tracker: true, Domains: []string{"taboola.com"}},
	{Name: "Outbrain", Category: "advertising", Country: "US", Tracker: true, Domains: []string{"outbrain.com"}},
	{Name: "Matomo Cloud", Category: "analytics", Country: "DE", Tracker: true, Domains: []string{"matomo.cloud"}},

	{Name: "Google Fonts", Category: "fonts", Country: "US", Domains: []string{"fonts.googleapis.com", "fonts.gstatic.com"}},
	{Name: "Google reCAPTCHA", Category: "security", Country: "US", Domains: []string{"recaptcha.net", "www.gstatic.com"}},
	{Name: "YouTube", Category: "media", Country: "US", Domains: []string{"youtube.com", "ytimg.com", "youtube-nocookie.com"}},
	{Name: "Vimeo", Category: "media", Country: "US", Domains: []string{"vimeo.com", "vimeocdn.com"}},
	{Name: "Cloudflare", Category: "cdn", Country: "US", Domains: []string{"cloudflare.com", "cdnjs.cloudflare.com", "cloudflareinsights.com"}},
	{Name: "jsDelivr", Category: "cdn", Country: "US", Domains: []string{"jsdelivr.net"}},
	{Name: "unpkg", Category: "cdn", Country: "US", Domains: []string{"unpkg.com"}},
	{Name: "Amazon CloudFront", Category: "cdn", Country: "US", Domains: []string{"cloudfront.net"}},
	{Name: "Amazon Web Services", Category: "hosting", Country: "US", Domains: []string{"amazonaws.com"}},
	{Name: "Akamai", Category: "cdn", Country: "US", Domains: []string{"akamaihd.net", "akamaized.net"}},
	{Name: "Fastly", Category: "cdn", Country: "US", Domains: []string{"fastly.net", "fastly-insights.com"}},
	{Name: "Stripe", Category: "payments", Country: "US", Domains: []string{"stripe.com", "stripe.network"}},
	{Name: "PayPal", Category: "payments", Country: "US", Domains: []string{"paypal.com", "paypalobjects.com"}},
	{Name: "Alibaba Cloud", Category: "hosting", Country: "CN", Domains: []string{"alicdn.com", "aliyuncs.com"}},
	{Name: "Tencent Cloud", Category: "hosting", Country: "CN", Domains: []string{"qq.com", "myqcloud.com"}},
	{Name: "Bunny CDN", Category: "cdn", Country: "SI", Domains: []string{"b-cdn.net", "bunnycdn.com"}},
	{Name: "OVHcloud", Category: "hosting", Country: "FR", Domains: []string{"ovh.net"}},
	{Name: "Hetzner", Category: "hosting", Country: "DE", Domains: []string{"your-server.de"}},
}

// LookupProvider returns the provider serving host. The longest matching
// domain wins so that specific entries beat generic ones.
func LookupProvider(host string) (Provider, bool) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	var (
		best    Provider
		bestLen int
	)
	for _, provider := range providers {
		for _, domain := range provider.Domains {
			if len(domain) <= bestLen {
				continue
			}
			if host == domain || strings.HasSuffix(host, "."+domain) {
				best = provider
				bestLen = len(domain)
			}
		}
	}
	return best, bestLen > 0
}
