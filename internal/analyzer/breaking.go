package analyzer

import (
	"math"
	"regexp"
	"strings"

	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

// breakingIndicator pairs a detection pattern with its evidence label
type breakingIndicator struct {
	pattern *regexp.Regexp
	label   string
}

var breakingIndicators = []breakingIndicator{
	{regexp.MustCompile(`(?i)breaking[\s_-]?change`), "explicit breaking-change marker"},
	{regexp.MustCompile(`(?i)\b(remove[sd]?|removal|drop(ped|s)?|delete[sd]?)\b`), "removal language"},
	{regexp.MustCompile(`(?i)deprecat(e[sd]?|ion|ing)`), "deprecation language"},
	{regexp.MustCompile(`(?i)backwards?[\s-]incompatible|no longer support`), "compatibility warning"},
	{regexp.MustCompile(`(?i)\bv?\d+\.0\.0\b|\bmajor version\b`), "major version marker"},
	{regexp.MustCompile(`(?i)renam(e[sd]?|ing)\b`), "rename language"},
}

// highRiskPathMarkers flag files whose modification tends to break consumers
var highRiskPathMarkers = []string{"api", "interface", "schema", "migration", "config", "public"}

// detectBreakingChanges scans the target's commit message and derived content
// text for breaking/removal/deprecation/version markers, and independently
// flags high-risk modified files.
//
// Severity: HIGH with >=3 indicators, MEDIUM with 2, LOW otherwise.
// Confidence: min(0.9, indicators*0.3).
func (a *Analyzer) detectBreakingChanges(target models.ChangeRecord) []models.BreakingChangeResult {
	text := target.CommitMessage + " " + contentText(target)

	var matched []string
	for _, ind := range breakingIndicators {
		if ind.pattern.MatchString(text) {
			matched = append(matched, ind.label)
		}
	}

	var highRiskFiles []string
	for _, f := range target.FilesChanged {
		lower := strings.ToLower(f)
		for _, marker := range highRiskPathMarkers {
			if strings.Contains(lower, marker) {
				highRiskFiles = append(highRiskFiles, f)
				break
			}
		}
	}

	indicators := len(matched) + len(highRiskFiles)
	if indicators == 0 {
		return []models.BreakingChangeResult{}
	}

	severity := models.BreakingSeverityLow
	switch {
	case indicators >= 3:
		severity = models.BreakingSeverityHigh
	case indicators >= 2:
		severity = models.BreakingSeverityMedium
	}

	category := "high_risk_paths"
	if len(matched) > 0 {
		category = "removal_or_deprecation"
		if matched[0] == breakingIndicators[0].label {
			category = "explicit_breaking_change"
		}
	}

	var description strings.Builder
	if len(matched) > 0 {
		description.WriteString(strings.Join(matched, "; "))
	}
	if len(highRiskFiles) > 0 {
		if description.Len() > 0 {
			description.WriteString("; ")
		}
		description.WriteString("modifies high-risk paths")
	}

	affected := highRiskFiles
	if len(affected) == 0 {
		affected = target.FilesChanged
	}

	return []models.BreakingChangeResult{{
		Category:      category,
		Severity:      severity,
		Description:   description.String(),
		AffectedFiles: affected,
		Confidence:    math.Min(0.9, float64(indicators)*0.3),
	}}
}
