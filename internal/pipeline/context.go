package pipeline

// #region imports
import (
	"strings"
	"unicode/utf8"

	"github.com/medassist/clinical-gateway/internal/retrieval"
)

// #endregion

// #region truncate

const truncationMarker = "\n\n[Context truncated for token safety]"

// truncateContext caps context at maxChars, cutting at the last clean
// word boundary and marking the cut explicitly. Text without a usable
// space in the window is cut at a rune boundary so the prompt never
// carries a split multi-byte character.
func truncateContext(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	n := maxChars
	if i := strings.LastIndex(text[:n], " "); i > 0 {
		n = i
	} else {
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
	}
	return text[:n] + truncationMarker
}

// #endregion

// #region assemble

// buildRetrievalContext joins hit texts into one context block and
// collects deduplicated source citations in first-seen order.
func buildRetrievalContext(hits []retrieval.Hit, maxChars int) (string, []string, []string) {
	parts := make([]string, 0, len(hits))
	var citations []string
	seen := make(map[string]bool)
	docIDs := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Text)
		docIDs = append(docIDs, h.ID)
		src := h.Meta.Source
		if src == "" {
			src = "unknown"
		}
		if !seen[src] {
			seen[src] = true
			citations = append(citations, src)
		}
	}
	return truncateContext(strings.Join(parts, "\n---\n"), maxChars), citations, docIDs
}

// #endregion
