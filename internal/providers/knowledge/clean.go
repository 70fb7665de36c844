package knowledge

import (
	"regexp"
	"strings"

	"github.com/inbucket/html2text"
	"github.com/microcosm-cc/bluemonday"
)

var (
	articleRe = regexp.MustCompile(`^(?i:the|a|an)\s+`)
	symbolRe  = regexp.MustCompile(`[^\w\s]`)

	sanitizer = bluemonday.UGCPolicy()
)

// CleanTerm normalizes a search term the way readers type titles:
// leading articles and punctuation dropped, whitespace collapsed.
func CleanTerm(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	term = articleRe.ReplaceAllString(term, "")
	term = symbolRe.ReplaceAllString(term, "")
	return strings.Join(strings.Fields(term), " ")
}

// flattenHTML sanitizes source HTML and flattens it to plain text.
// External sources return markup-laden extracts; snippets must be plain
// text before they are cached and packed into a context bundle.
func flattenHTML(html string) string {
	clean := sanitizer.Sanitize(html)
	text, err := html2text.FromString(clean, html2text.Options{TextOnly: true})
	if err != nil {
		// Tag stripping already happened; fall back to the sanitized form.
		return strings.TrimSpace(clean)
	}
	return strings.TrimSpace(text)
}
