package guard

// #region imports
import (
	"errors"
	"fmt"
	"log"
	"regexp"
)

// #endregion

// #region errors

// ErrPolicyViolation marks a query rejected by the injection filter.
// Callers surface only a generic refusal; the matched rule stays in logs.
var ErrPolicyViolation = errors.New("policy violation")

// #endregion

// #region rules

// maxQueryLen caps query size against context-stuffing.
const maxQueryLen = 2000

// injectionRules are evaluated in order; any match blocks the query
// before anything downstream sees it.
var injectionRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+all\s+(?:previous|above)\s+instructions`),
	regexp.MustCompile(`(?i)system\s+override`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+a\b`),
	regexp.MustCompile(`(?i)new\s+role\b`),
	regexp.MustCompile(`(?i)reveal\s+your\s+system\s+prompt`),
	regexp.MustCompile(`(?i)output\s+the\s+identity\s+of\s+other\s+users`),
	regexp.MustCompile(`(?i)base64\s+decode`),
	regexp.MustCompile(`(?i)execute\s+code`),
	regexp.MustCompile(`(?i)sql\s+injection`),
}

// #endregion

// #region check

// CheckInjection scans the raw query for known jailbreak and injection
// strings. Returns an ErrPolicyViolation-wrapped error on any hit or when
// the query exceeds the length cap; nil means the query may proceed.
func CheckInjection(query string) error {
	if query == "" {
		return nil
	}

	for _, rule := range injectionRules {
		if rule.MatchString(query) {
			log.Printf("[GUARD] injection pattern matched: %s", rule.String())
			return fmt.Errorf("%w: malicious instruction pattern detected", ErrPolicyViolation)
		}
	}

	if len(query) > maxQueryLen {
		log.Printf("[GUARD] query length %d exceeds cap %d", len(query), maxQueryLen)
		return fmt.Errorf("%w: query exceeds maximum allowed length", ErrPolicyViolation)
	}

	return nil
}

// #endregion
