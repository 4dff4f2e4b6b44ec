package guard

// #region imports
import "regexp"

// #endregion

// #region patterns

// phiPattern pairs an entity label with its detection regex.
// Order matters: earlier entities are redacted first.
type phiPattern struct {
	label string
	re    *regexp.Regexp
}

var phiPatterns = []phiPattern{
	{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"PHONE", regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)},
	{"EMAIL", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"DOB", regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`)},
	{"NAME_INDICATOR", regexp.MustCompile(`(?:[Pp]atient|[Mm]r\.|[Mm]s\.|[Mm]rs\.|[Dd]r\.)\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*`)},
}

// #endregion

// #region redact

// Redact replaces every PHI match with a labeled placeholder.
// Idempotent: placeholders never re-match any pattern.
func Redact(text string) string {
	if text == "" {
		return text
	}
	redacted := text
	for _, p := range phiPatterns {
		redacted = p.re.ReplaceAllString(redacted, "[REDACTED_"+p.label+"]")
	}
	return redacted
}

// HasHighRiskPHI reports whether text still contains unmasked PHI.
// Pre-flight gate for content bound for unmanaged external sinks.
func HasHighRiskPHI(text string) bool {
	for _, p := range phiPatterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}

// #endregion
