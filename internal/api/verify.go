package api

import (
	"fmt"
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// collapseWhitespace canonicalizes text the way a PDF-text-extraction
// client would before hashing: all whitespace runs become a single space,
// and leading/trailing space is trimmed.
func collapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// renderSummaryForFuzzyHash builds the canonical "SUMMARY: … ACTION
// ITEMS: - … " rendering a client might hash instead of the raw JSON
// summary blob.
func renderSummaryForFuzzyHash(summary string, actions []string) string {
	var b strings.Builder
	b.WriteString("SUMMARY: ")
	b.WriteString(collapseWhitespace(summary))
	b.WriteString(" ACTION ITEMS: ")
	for _, a := range actions {
		b.WriteString("- ")
		b.WriteString(collapseWhitespace(a))
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

// fuzzyCandidates returns the canonicalized variants of rev's content
// that a client might plausibly have hashed instead of the server's own
// canonical form.
func fuzzyCandidates(kind string, blob []byte) ([]string, error) {
	switch kind {
	case "transcript":
		var t transcriptBlobForVerify
		if err := unmarshalOrError(blob, &t); err != nil {
			return nil, err
		}
		return []string{collapseWhitespace(t.Text)}, nil
	case "summary":
		var sm summaryBlobForVerify
		if err := unmarshalOrError(blob, &sm); err != nil {
			return nil, err
		}
		return []string{renderSummaryForFuzzyHash(sm.Summary, sm.Actions)}, nil
	default:
		return nil, fmt.Errorf("unknown revision kind %q", kind)
	}
}
