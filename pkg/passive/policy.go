package passive

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	cregex "github.com/mingrammer/commonregex"
	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/report"
	"mvdan.cc/xurls/v2"
)

type policySection struct {
	Name    string
	Pattern *regexp.Regexp
}

var policySections = []policySection{
	{"data controller", regexp.MustCompile(`(?i)controller|responsible for (the )?processing|verantwortlich|responsable del tratamiento|responsable du traitement`)},
	{"purposes of processing", regexp.MustCompile(`(?i)purposes?|zweck|finalidad|finalit[eé]`)},
	{"legal basis", regexp.MustCompile(`(?i)legal basis|lawful basis|legitimate interest|rechtsgrundlage|base jur[ií]dica|base l[eé]gale|legitimaci[oó]n`)},
	{"data retention", regexp.MustCompile(`(?i)retention|retain|stored for|speicherdauer|plazo de conservaci[oó]n|dur[eé]e de conservation`)},
	{"data subject rights", regexp.MustCompile(`(?i)right to (access|erasure|rectification|object|portability)|your rights|data subject rights|betroffenenrechte|sus derechos|vos droits`)},
	{"recipients", regexp.MustCompile(`(?i)third part(y|ies)|recipients|empf[aä]nger|destinatarios|destinataires`)},
	{"cookies", regexp.MustCompile(`(?i)cookie`)},
	{"contact", regexp.MustCompile(`(?i)contact|data protection officer|\bdpo\b|datenschutzbeauftragte|delegado de protecci[oó]n`)},
	{"international transfers", regexp.MustCompile(`(?i)international transfer|transfers? outside|third countr|drittl[aä]nd|standard contractual|transferencias internacionales`)},
}

var lastUpdatedPattern = regexp.MustCompile(`(?i)(?:last updated|last modified|last revised|effective date|stand|zuletzt aktualisiert|[uú]ltima actualizaci[oó]n|derni[eè]re mise [aà] jour)\s*:?\s*([^\n.]{4,40})`)

const maxPolicyLinks = 50

// PolicyAnalyzer finds the privacy policy link and checks the policy text for
// the topics a privacy notice is expected to cover
type PolicyAnalyzer struct{}

func NewPolicyAnalyzer() *PolicyAnalyzer {
	return &PolicyAnalyzer{}
}

// Detect prefers links whose text mentions privacy over links that only
// match through their href
func (a *PolicyAnalyzer) Detect(page browser.Page) (report.PolicyInfo, error) {
	doc, err := pageDocument(page)
	if err != nil {
		return report.PolicyInfo{}, err
	}

	var byText, byHref *goquery.Selection
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.HasPrefix(strings.TrimSpace(href), "javascript:") || strings.HasPrefix(href, "mailto:") {
			return true
		}
		if privacyLinkPattern.MatchString(cleanText(s)) {
			byText = s
			return false
		}
		if byHref == nil && privacyLinkPattern.MatchString(href) {
			byHref = s
		}
		return true
	})

	link := byText
	if link == nil {
		link = byHref
	}
	if link == nil {
		return report.PolicyInfo{}, nil
	}
	href, _ := link.Attr("href")
	return report.PolicyInfo{
		Found: true,
		URL:   resolveURL(page.URL(), href),
		Title: cleanText(link),
	}, nil
}

func (a *PolicyAnalyzer) AnalyzeContent(page browser.Page, policyURL string) (report.PolicyContent, error) {
	doc, err := pageDocument(page)
	if err != nil {
		return report.PolicyContent{}, err
	}
	doc.Find("script, style, noscript, nav, footer").Remove()
	text := cleanText(doc.Find("body"))
	return AnalyzePolicyText(text), nil
}

// AnalyzePolicyText extracts the policy facts from plain text
func AnalyzePolicyText(text string) report.PolicyContent {
	content := report.PolicyContent{
		WordCount:       len(strings.Fields(text)),
		SectionsFound:   []string{},
		SectionsMissing: []string{},
	}
	for _, section := range policySections {
		if section.Pattern.MatchString(text) {
			content.SectionsFound = append(content.SectionsFound, section.Name)
		} else {
			content.SectionsMissing = append(content.SectionsMissing, section.Name)
		}
	}
	content.ContactEmails = unique(cregex.Emails(text))
	links := unique(xurls.Strict().FindAllString(text, -1))
	if len(links) > maxPolicyLinks {
		links = links[:maxPolicyLinks]
	}
	content.Links = links
	if match := lastUpdatedPattern.FindStringSubmatch(text); len(match) > 1 {
		content.LastUpdated = strings.TrimSpace(match[1])
	}
	return content
}

func unique(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
