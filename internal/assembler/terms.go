package assembler

import (
	"strings"
	"unicode"

	"github.com/sandevgo/readr/internal/core"
)

// Words that are capitalized for grammatical rather than referential
// reasons and never make useful lookup terms.
var termStopwords = map[string]struct{}{
	"the": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"whom": {}, "whose": {}, "why": {}, "how": {}, "does": {},
	"did": {}, "was": {}, "were": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "about": {}, "from": {}, "with": {},
	"chapter": {}, "page": {}, "book": {}, "does'nt": {}, "doesn": {},
}

var focusSuffix = map[core.AnalysisFocus]string{
	core.FocusHistorical: "historical context",
	core.FocusCharacter:  "character analysis",
	core.FocusSymbolism:  "symbolism",
	core.FocusThemes:     "themes",
}

// DeriveTerms extracts external lookup terms from a question: capitalized
// words longer than three characters that are not stopwords, plus the
// document title. The analysis focus appends a biased variant of the
// title so the sources surface topical material.
func DeriveTerms(query, title string, focus core.AnalysisFocus) []string {
	var terms []string
	seen := make(map[string]struct{})

	add := func(term string) {
		term = strings.TrimSpace(term)
		key := strings.ToLower(term)
		if term == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		terms = append(terms, term)
	}

	if title != "" {
		add(title)
		if suffix, ok := focusSuffix[focus]; ok {
			add(title + " " + suffix)
		}
	}

	for _, field := range strings.Fields(query) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len(word) <= 3 {
			continue
		}
		if !unicode.IsUpper([]rune(word)[0]) {
			continue
		}
		if _, stop := termStopwords[strings.ToLower(word)]; stop {
			continue
		}
		add(word)
	}

	return terms
}
