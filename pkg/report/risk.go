package report

import "strings"

type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

var riskOrder = map[RiskLevel]int{
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

var riskDeduction = map[RiskLevel]int{
	RiskCritical: 30,
	RiskHigh:     20,
	RiskMedium:   10,
	RiskLow:      5,
}

func (r RiskLevel) String() string {
	return string(r)
}

// Order returns a comparable weight, higher means more severe
func (r RiskLevel) Order() int {
	return riskOrder[r]
}

// Deduction returns the number of score points an issue of this level costs
func (r RiskLevel) Deduction() int {
	return riskDeduction[r]
}

// ParseRiskLevel parses a risk level name, case insensitive
func ParseRiskLevel(s string) (RiskLevel, bool) {
	level := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := riskOrder[level]
	return level, ok
}

// OverallRisk returns the highest risk among the issues, LOW when there are none
func OverallRisk(issues []Issue) RiskLevel {
	overall := RiskLow
	for _, issue := range issues {
		if issue.Risk.Order() > overall.Order() {
			overall = issue.Risk
		}
	}
	return overall
}

// Score starts from 100 and deducts per issue by risk, never going below 0
func Score(issues []Issue) int {
	score := 100
	for _, issue := range issues {
		score -= issue.Risk.Deduction()
	}
	if score < 0 {
		return 0
	}
	return score
}

// CountByRisk groups issue counts per risk level
func CountByRisk(issues []Issue) map[RiskLevel]int {
	counts := make(map[RiskLevel]int)
	for _, issue := range issues {
		counts[issue.Risk]++
	}
	return counts
}
