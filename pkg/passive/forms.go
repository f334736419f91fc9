package passive

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/report"
)

type personalField struct {
	Name    string
	Types   []string
	Pattern *regexp.Regexp
}

var personalFields = []personalField{
	{"email", []string{"email"}, regexp.MustCompile(`(?i)e-?mail|correo|courriel`)},
	{"phone", []string{"tel"}, regexp.MustCompile(`(?i)phone|mobile|\btel\b|telefon|tel[eé]fono|handy`)},
	{"password", []string{"password"}, nil},
	{"name", nil, regexp.MustCompile(`(?i)^(name|full_?name|first_?name|last_?name|given-name|family-name|surname|nombre|apellidos?|vorname|nachname|nom|pr[eé]nom)$`)},
	{"address", nil, regexp.MustCompile(`(?i)address|street|postal|zip|city|direcci[oó]n|stra(ss|ß)e|adresse`)},
	{"birthdate", []string{"date"}, regexp.MustCompile(`(?i)birth|\bdob\b|bday|geburt|nacimiento|naissance`)},
	{"national id", nil, regexp.MustCompile(`(?i)\bssn\b|passport|\bdni\b|\bnif\b|\bnie\b|tax_?id|national_?id|iban`)},
}

var consentCheckboxPattern = regexp.MustCompile(`(?i)consent|agree|accept|privacy|gdpr|rgpd|dsgvo|terms|acepto|einwillig|datenschutz|j'accepte`)

// FormAnalyzer inspects forms for personal data collection and consent markup
type FormAnalyzer struct{}

func NewFormAnalyzer() *FormAnalyzer {
	return &FormAnalyzer{}
}

func (a *FormAnalyzer) Analyze(page browser.Page) (report.FormsResult, error) {
	doc, err := pageDocument(page)
	if err != nil {
		return report.FormsResult{}, err
	}
	pageURL := page.URL()

	result := report.FormsResult{Forms: []report.FormInfo{}}
	doc.Find("form").Each(func(i int, form *goquery.Selection) {
		action, _ := form.Attr("action")
		method := strings.ToUpper(strings.TrimSpace(form.AttrOr("method", "GET")))
		info := report.FormInfo{
			Action:             action,
			Method:             method,
			PersonalDataFields: detectPersonalFields(form),
			HasConsentCheckbox: hasConsentCheckbox(doc, form),
			HasPrivacyLink:     hasPrivacyLink(form),
			InsecureSubmission: isInsecureSubmission(pageURL, action),
		}
		info.CollectsPersonalData = len(info.PersonalDataFields) > 0
		result.Forms = append(result.Forms, info)
	})
	result.Total = len(result.Forms)
	return result, nil
}

func detectPersonalFields(form *goquery.Selection) []string {
	found := map[string]bool{}
	var fields []string
	form.Find("input, textarea, select").Each(func(i int, s *goquery.Selection) {
		inputType := strings.ToLower(s.AttrOr("type", "text"))
		if inputType == "hidden" || inputType == "submit" || inputType == "button" || inputType == "checkbox" {
			return
		}
		identifiers := []string{s.AttrOr("name", ""), s.AttrOr("id", ""), s.AttrOr("autocomplete", ""), s.AttrOr("placeholder", "")}
		for _, field := range personalFields {
			if found[field.Name] || !matchesField(field, inputType, identifiers) {
				continue
			}
			found[field.Name] = true
			fields = append(fields, field.Name)
		}
	})
	return fields
}

func matchesField(field personalField, inputType string, identifiers []string) bool {
	for _, t := range field.Types {
		if inputType == t {
			return true
		}
	}
	if field.Pattern == nil {
		return false
	}
	for _, id := range identifiers {
		if id != "" && field.Pattern.MatchString(strings.TrimSpace(id)) {
			return true
		}
	}
	return false
}

func hasConsentCheckbox(doc *goquery.Document, form *goquery.Selection) bool {
	found := false
	form.Find("input[type=checkbox]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		label := s.AttrOr("name", "") + " " + s.AttrOr("id", "") + " " + cleanText(s.Closest("label"))
		if id := s.AttrOr("id", ""); id != "" {
			doc.Find("label").Each(func(_ int, l *goquery.Selection) {
				if l.AttrOr("for", "") == id {
					label += " " + cleanText(l)
				}
			})
		}
		label += " " + cleanText(s.Parent())
		if consentCheckboxPattern.MatchString(label) {
			found = true
			return false
		}
		return true
	})
	return found
}

func hasPrivacyLink(form *goquery.Selection) bool {
	found := false
	form.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if privacyLinkPattern.MatchString(s.AttrOr("href", "")) || privacyLinkPattern.MatchString(cleanText(s)) {
			found = true
			return false
		}
		return true
	})
	return found
}

// isInsecureSubmission reports whether the form data leaves over plain http
func isInsecureSubmission(pageURL, action string) bool {
	page, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	target := page
	if strings.TrimSpace(action) != "" {
		ref, err := url.Parse(strings.TrimSpace(action))
		if err != nil {
			return false
		}
		target = page.ResolveReference(ref)
	}
	return strings.EqualFold(target.Scheme, "http")
}
