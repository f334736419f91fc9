package lib

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// GetHostFromURL returns the lowercase hostname (without port) of the given URL
func GetHostFromURL(u string) (string, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return "", err
	}
	return strings.ToLower(parsed.Hostname()), nil
}

// StripWWW removes a leading "www." label from a host
func StripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// IsThirdPartyHost reports whether host differs from target once a leading
// "www." is removed from both. Subdomains other than www count as third party.
func IsThirdPartyHost(host, target string) bool {
	return StripWWW(host) != StripWWW(target)
}

// RegistrableDomain returns the eTLD+1 of a host, falling back to the host itself
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// HostMatchesSuffix reports whether host equals suffix or is a subdomain of it
func HostMatchesSuffix(host, suffix string) bool {
	host = strings.ToLower(host)
	suffix = strings.ToLower(suffix)
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}
