// Package rag implements lexical retrieval over site content: a cached
// content index, ranked search, snippet focusing, and context assembly for
// the chat system prompt. Matching is heuristic and term-based, not
// embedding-based.
package rag

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// thinMinAlnum is the alphanumeric floor below which extracted text is
	// judged too sparse to answer substantive questions.
	thinMinAlnum = 60

	// focusBlendRatio controls when a focus snippet is considered sparse
	// enough to blend in leading context.
	focusBlendRatio = 0.65
)

// thinPlaceholders are literal page bodies that carry no content.
var thinPlaceholders = map[string]struct{}{
	"-": {}, "--": {}, "---": {}, "n/a": {}, "na": {}, "tbd": {}, "coming soon": {},
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	sentenceRe   = regexp.MustCompile(`[^.!?]+[.!?]*\s*`)
)

// Substr truncates s to at most maxLen runes.
func Substr(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// CleanText strips HTML, collapses whitespace, and truncates.
func CleanText(text string, maxLen int) string {
	text = StripHTML(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	return Substr(text, maxLen)
}

// IsThinText reports whether text is too sparse to answer substantive
// questions: empty, a known placeholder, or under the alphanumeric floor.
func IsThinText(text string) bool {
	clean := CleanText(text, 800)
	if clean == "" {
		return true
	}

	if _, ok := thinPlaceholders[strings.ToLower(strings.TrimSpace(clean))]; ok {
		return true
	}

	alnum := 0
	for _, r := range clean {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			alnum++
		}
	}
	return alnum < thinMinAlnum
}

// CountTermHits counts how many of the terms appear in text,
// case-insensitive substring match.
func CountTermHits(text string, terms []string) int {
	if len(terms) == 0 {
		return 0
	}

	haystack := strings.ToLower(text)
	hits := 0
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(term)) {
			hits++
		}
	}
	return hits
}

// FocusSnippet extracts sentences containing query terms, blending in
// leading context when keyword matches are sparse. Result length never
// exceeds maxLen.
func FocusSnippet(text string, terms []string, maxLen int) string {
	text = CleanText(text, 4000)
	if text == "" {
		return ""
	}
	if len(terms) == 0 {
		return Substr(text, maxLen)
	}

	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return Substr(text, maxLen)
	}

	var picked []string
	pickedLen := 0
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if CountTermHits(sentence, terms) > 0 {
			picked = append(picked, sentence)
			pickedLen += len(sentence) + 1
		}
		if pickedLen >= maxLen {
			break
		}
	}

	if len(picked) == 0 {
		return Substr(text, maxLen)
	}

	candidate := strings.Join(picked, " ")

	// If keyword matches are sparse, blend in leading context to keep
	// broad coverage.
	if len(candidate) < int(float64(maxLen)*focusBlendRatio) {
		candidate = strings.TrimSpace(candidate + " " + Substr(text, maxLen))
	}

	return Substr(candidate, maxLen)
}

// TitleFromURL derives a readable fallback title from a URL path.
func TitleFromURL(rawURL string) string {
	p := strings.Trim(urlPath(rawURL), "/")
	if p == "" {
		return "Home"
	}

	slug := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		slug = p[i+1:]
	}
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)

	words := strings.Fields(slug)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}

	title := strings.Join(words, " ")
	if title == "" {
		return "Page"
	}
	return title
}
