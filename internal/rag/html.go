package rag

import (
	"html"
	"regexp"
)

// Noisy block elements removed before text extraction.
var noiseTagRes = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
	regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
	regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`),
	regexp.MustCompile(`(?is)<canvas[^>]*>.*?</canvas>`),
}

var (
	mainRegionRe = regexp.MustCompile(`(?is)<(?:main|article)\b[^>]*>(.*?)</(?:main|article)>`)
	bodyRegionRe = regexp.MustCompile(`(?is)<body\b[^>]*>(.*)</body>`)
	tagRe        = regexp.MustCompile(`(?s)<[^>]*>`)
)

var scriptStyleRes = noiseTagRes[:2]

// StripHTML removes all markup from s and decodes entities. Script and
// style bodies are dropped entirely, not just their tags.
func StripHTML(s string) string {
	for _, re := range scriptStyleRes {
		s = re.ReplaceAllString(s, " ")
	}
	s = tagRe.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}

// ExtractReadableText pulls visitor-visible text out of a rendered HTML
// page, preferring main/article regions over the raw body.
func ExtractReadableText(htmlSrc string, maxLen int) string {
	for _, re := range noiseTagRes {
		htmlSrc = re.ReplaceAllString(htmlSrc, " ")
	}

	region := htmlSrc
	if matches := mainRegionRe.FindAllStringSubmatch(htmlSrc, -1); len(matches) > 0 {
		region = ""
		for _, m := range matches {
			region += m[1] + "\n"
		}
	} else if m := bodyRegionRe.FindStringSubmatch(htmlSrc); m != nil {
		region = m[1]
	}

	return CleanText(region, maxLen)
}
