package lib

import (
	"strings"

	"github.com/fatih/color"
)

var (
	criticalColor = color.New(color.FgHiRed, color.Bold).SprintFunc()
	highColor     = color.New(color.FgRed).SprintFunc()
	mediumColor   = color.New(color.FgYellow).SprintFunc()
	lowColor      = color.New(color.FgCyan).SprintFunc()
	labelColor    = color.New(color.FgBlue).SprintFunc()
	okColor       = color.New(color.FgGreen).SprintFunc()
)

// Label colours a field label for CLI output.
func Label(text string) string {
	return labelColor(text)
}

// Ok colours a positive value for CLI output.
func Ok(text string) string {
	return okColor(text)
}

// ColorizeRisk colours a risk level name (CRITICAL, HIGH, MEDIUM, LOW).
func ColorizeRisk(risk string) string {
	switch strings.ToUpper(risk) {
	case "CRITICAL":
		return criticalColor(risk)
	case "HIGH":
		return highColor(risk)
	case "MEDIUM":
		return mediumColor(risk)
	case "LOW":
		return lowColor(risk)
	}
	return risk
}
