package search

import (
	"regexp"
	"strings"
)

var (
	luceneFieldRe    = regexp.MustCompile(`(^|[\s(])[\p{L}\p{N}_.]+:\S`)
	luceneRangeRe    = regexp.MustCompile(`[\[{]\S+\s+TO\s+\S+[\]}]`)
	luceneBooleanRe  = regexp.MustCompile(`(^|\s)(AND|OR|NOT)(\s|$)`)
	luceneWildcardRe = regexp.MustCompile(`\S[*?]`)
	luceneFuzzyRe    = regexp.MustCompile(`\S~(\d+(\.\d+)?)?(\s|$)`)
	luceneBoostRe    = regexp.MustCompile(`\S\^\d+(\.\d+)?`)
	luceneSpaceRe    = regexp.MustCompile(`\s+`)
	luceneLowerOpRe  = regexp.MustCompile(`(^|\s)(and|or|not)(\s|$)`)
)

// LuceneSyntaxHelper implements LuceneHelper for backends that accept Lucene
// style query strings.
type LuceneSyntaxHelper struct {
	// CaseSensitiveBooleans keeps lower-case and/or/not as plain terms.
	CaseSensitiveBooleans bool
}

// NewLuceneSyntaxHelper creates a helper with case-sensitive boolean operators.
func NewLuceneSyntaxHelper() *LuceneSyntaxHelper {
	return &LuceneSyntaxHelper{CaseSensitiveBooleans: true}
}

// ContainsAdvancedSyntax reports whether s uses anything beyond plain terms
// and phrases.
func (h *LuceneSyntaxHelper) ContainsAdvancedSyntax(s string) bool {
	// Phrases are plain syntax; strip them so quoted text is not inspected.
	s = stripPhrases(s)

	if strings.ContainsAny(s, "()") {
		return true
	}
	for _, re := range []*regexp.Regexp{
		luceneFieldRe, luceneRangeRe, luceneBooleanRe,
		luceneWildcardRe, luceneFuzzyRe, luceneBoostRe,
	} {
		if re.MatchString(s) {
			return true
		}
	}
	if !h.CaseSensitiveBooleans && luceneLowerOpRe.MatchString(s) {
		return true
	}
	return false
}

// Normalize collapses whitespace, drops an unbalanced trailing quote, and
// upper-cases boolean operators when they are case-insensitive.
func (h *LuceneSyntaxHelper) Normalize(s string) string {
	s = strings.TrimSpace(luceneSpaceRe.ReplaceAllString(s, " "))

	if strings.Count(s, `"`)%2 == 1 {
		i := strings.LastIndex(s, `"`)
		s = strings.TrimSpace(s[:i] + s[i+1:])
	}

	if !h.CaseSensitiveBooleans {
		// Applied twice so adjacent operators sharing a space are both caught.
		for range 2 {
			s = luceneLowerOpRe.ReplaceAllStringFunc(s, strings.ToUpper)
		}
	}
	return s
}

func stripPhrases(s string) string {
	var b strings.Builder
	inPhrase := false
	for _, r := range s {
		if r == '"' {
			inPhrase = !inPhrase
			b.WriteRune(' ')
			continue
		}
		if !inPhrase {
			b.WriteRune(r)
		}
	}
	return b.String()
}
