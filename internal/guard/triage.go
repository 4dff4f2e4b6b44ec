package guard

// #region imports
import (
	"regexp"
	"strings"
)

// #endregion

// #region severity

// Severity orders triage outcomes from worst to best.
// Critical is terminal: it forces the emergency response and suppresses
// every later pipeline stage.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityLow      Severity = "low"
)

// #endregion

// #region keywords

// Keyword tables are English-only and static; synonym or multi-language
// robustness is a known limitation, not a guarantee.

// criticalSymptoms are life-threatening signals. False positives are
// acceptable here; false negatives are not.
var criticalSymptoms = []string{
	"chest pain", "difficulty breathing", "shortness of breath",
	"unconscious", "not breathing", "severe bleeding", "stroke symptoms",
	"paralysis", "seizure", "poisoning", "suicidal", "overdose",
}

// highRiskSymptoms need urgent but not immediate attention.
var highRiskSymptoms = []string{
	"high fever", "persistent vomiting", "broken bone", "deep cut",
	"allergic reaction", "blurred vision", "dehydration",
}

// amplifiers are intensity qualifiers that bump an otherwise unmatched
// query to high severity.
var amplifiers = []string{
	"intense", "extreme", "worst pain", "cannot move",
}

var criticalRules = compileKeywordRules(criticalSymptoms)
var highRiskRules = compileKeywordRules(highRiskSymptoms)

func compileKeywordRules(keywords []string) []*regexp.Regexp {
	rules := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		rules[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return rules
}

// #endregion

// #region triage

// Triage classifies a query's medical urgency. Pure and synchronous: no
// network calls, cannot fail or time out. Any critical keyword wins
// regardless of other signals.
func Triage(query string) (Severity, []string) {
	lower := strings.ToLower(query)
	var matched []string

	for i, rule := range criticalRules {
		if rule.MatchString(lower) {
			matched = append(matched, criticalSymptoms[i])
		}
	}
	if len(matched) > 0 {
		return SeverityCritical, matched
	}

	for i, rule := range highRiskRules {
		if rule.MatchString(lower) {
			matched = append(matched, highRiskSymptoms[i])
		}
	}
	if len(matched) > 0 {
		return SeverityHigh, matched
	}

	for _, term := range amplifiers {
		if strings.Contains(lower, term) {
			return SeverityHigh, []string{"severe pain or immobility reported"}
		}
	}

	return SeverityLow, nil
}

// EmergencyAdvice returns the fixed, non-generative safety message for a
// critical triage outcome.
func EmergencyAdvice(symptoms []string) string {
	return "EMERGENCY DETECTED: Based on your symptoms (" + strings.Join(symptoms, ", ") + "), " +
		"please CALL EMERGENCY SERVICES (911) or go to the nearest Emergency Room IMMEDIATELY. " +
		"Do not wait for a response from this assistant."
}

// #endregion
