package passive

import (
	"sort"
	"strings"
	"sync"

	"github.com/pyneda/consentscan/lib"
	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/report"
)

// adequateCountries holds EU/EEA members plus countries with an adequacy
// decision. The United States is excluded since its adequacy only covers
// certified recipients, which cannot be verified from the outside.
var adequateCountries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true, "CZ": true, "DK": true,
	"EE": true, "FI": true, "FR": true, "DE": true, "GR": true, "HU": true, "IE": true,
	"IT": true, "LV": true, "LT": true, "LU": true, "MT": true, "NL": true, "PL": true,
	"PT": true, "RO": true, "SK": true, "SI": true, "ES": true, "SE": true,
	"IS": true, "LI": true, "NO": true,
	"AD": true, "AR": true, "CA": true, "FO": true, "GG": true, "IL": true, "IM": true,
	"JP": true, "JE": true, "NZ": true, "KR": true, "CH": true, "GB": true, "UY": true,
}

// countryTLDs maps country code top level domains whose owner is not a known provider
var countryTLDs = map[string]string{
	"de": "DE", "fr": "FR", "es": "ES", "it": "IT", "nl": "NL", "be": "BE", "at": "AT",
	"pt": "PT", "pl": "PL", "se": "SE", "dk": "DK", "fi": "FI", "ie": "IE", "cz": "CZ",
	"gr": "GR", "hu": "HU", "ro": "RO", "bg": "BG", "sk": "SK", "si": "SI", "hr": "HR",
	"lt": "LT", "lv": "LV", "ee": "EE", "lu": "LU", "mt": "MT", "cy": "CY", "no": "NO",
	"is": "IS", "ch": "CH", "uk": "GB", "jp": "JP", "kr": "KR", "nz": "NZ", "ca": "CA",
	"il": "IL", "ar": "AR", "uy": "UY", "cn": "CN", "ru": "RU", "in": "IN", "br": "BR",
	"tr": "TR", "ua": "UA", "by": "BY", "ir": "IR", "vn": "VN", "id": "ID", "au": "AU",
	"us": "US", "mx": "MX", "za": "ZA", "sg": "SG", "hk": "HK", "tw": "TW",
}

// IsAdequateCountry reports whether personal data may flow to country without
// additional safeguards
func IsAdequateCountry(country string) bool {
	return adequateCountries[strings.ToUpper(country)]
}

// CountryForHost resolves the destination country of a host, first by known
// provider and then by country code top level domain
func CountryForHost(host string) (country string, provider string) {
	if p, ok := LookupProvider(host); ok {
		return p.Country, p.Name
	}
	domain := lib.RegistrableDomain(host)
	if idx := strings.LastIndex(domain, "."); idx >= 0 {
		if c, ok := countryTLDs[domain[idx+1:]]; ok {
			return c, ""
		}
	}
	return "", ""
}

// DataTransferAnalyzer groups third party requests by registrable domain and
// checks where they are sent to. Destinations without a resolvable country
// are ignored.
type DataTransferAnalyzer struct {
	mu           sync.Mutex
	order        []string
	destinations map[string]*report.DataTransferDestination
}

func NewDataTransferAnalyzer() *DataTransferAnalyzer {
	return &DataTransferAnalyzer{destinations: make(map[string]*report.DataTransferDestination)}
}

func (a *DataTransferAnalyzer) AnalyzeRequest(req browser.Request) {
	if !req.ThirdParty || req.Host == "" {
		return
	}
	domain := lib.RegistrableDomain(req.Host)

	a.mu.Lock()
	defer a.mu.Unlock()
	if dest, ok := a.destinations[domain]; ok {
		dest.Requests++
		return
	}
	country, provider := CountryForHost(req.Host)
	if country == "" {
		return
	}
	a.destinations[domain] = &report.DataTransferDestination{
		Domain:   domain,
		Provider: provider,
		Country:  country,
		Adequate: IsAdequateCountry(country),
		Requests: 1,
	}
	a.order = append(a.order, domain)
}

func (a *DataTransferAnalyzer) Result() report.DataTransferInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	info := report.DataTransferInfo{
		Destinations:      make([]report.DataTransferDestination, 0, len(a.order)),
		CountriesDetected: []string{},
	}
	countries := map[string]bool{}
	for _, domain := range a.order {
		dest := *a.destinations[domain]
		info.Destinations = append(info.Destinations, dest)
		if !dest.Adequate {
			info.NonAdequateCount++
		}
		if !countries[dest.Country] {
			countries[dest.Country] = true
			info.CountriesDetected = append(info.CountriesDetected, dest.Country)
		}
	}
	sort.Strings(info.CountriesDetected)
	return info
}
