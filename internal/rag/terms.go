package rag

import (
	"regexp"
	"strings"

	"github.com/kailas-cloud/asksite/internal/domain"
)

var termRe = regexp.MustCompile(`[\p{L}\p{N}]{3,}`)

// stopwords covers common English and German function words that pollute
// search queries. Kept as a literal table: auditable and trivially
// extensible for further locales.
var stopwords = newStringSet(
	// English
	"the", "and", "for", "are", "but", "not", "you", "all", "can", "had",
	"her", "was", "one", "our", "out", "has", "have", "from", "they", "been",
	"said", "each", "which", "their", "will", "other", "about", "many", "then",
	"them", "these", "some", "would", "into", "more", "than", "with", "that",
	"this", "what", "there", "could", "should", "might", "shall",
	"tell", "told", "know", "knew", "think", "thought", "want", "need",
	"like", "just", "also", "very", "much", "really", "please", "thanks",
	"does", "doing", "done", "were", "being", "those", "here", "when",
	"where", "while", "whom", "whose", "make", "made", "give", "gave",
	"show", "look", "come", "came", "take", "took", "going", "gone",
	"your", "mine", "ours", "yours", "myself", "itself", "something",
	"anything", "everything", "nothing", "someone", "anyone", "everyone",
	"every", "most", "such", "only", "same", "still", "well", "back",
	"even", "good", "great", "right", "long", "little", "never", "always",
	"often", "maybe", "sure", "yeah", "okay", "keep", "thing", "things",
	"latest", "recent", "current", "new", "last",
	// German
	"der", "die", "das", "und", "oder", "aber", "eine", "einer", "einen",
	"einem", "ist", "sind", "wie", "was", "wer", "kann", "mit", "für", "zum",
	"zur", "von", "bei", "den", "dem", "des", "ich", "wir", "sie", "ihr",
	"ein", "auf", "haben", "habe", "gibt", "nicht", "auch", "noch", "nur",
	"schon", "wenn", "denn", "weil", "nach", "über", "können", "möchte",
	"bitte", "welche", "welcher", "welches", "sagen", "zeigen", "geben",
	"machen", "neueste", "letzte", "aktuelle",
)

// recencyNeedles signal "latest/newest" intent, English and German.
var recencyNeedles = []string{
	"latest", "recent", "newest", "most recent", "last", "current",
	"today", "this week", "this month",
	"neueste", "neuste", "aktuelle", "letzte", "zuletzt", "neu",
}

// contentNeedles signal blog/news content intent.
var contentNeedles = []string{
	"blog", "post", "posts", "entry", "entries", "article", "articles",
	"news", "update", "updates", "changelog", "release", "releases",
	"announcement", "announcements",
	"beitrag", "beitraege", "beiträge", "artikel", "neuigkeiten", "blogpost",
}

// pageSignalNeedles mark blog/news-like sections in a page title or URL.
var pageSignalNeedles = []string{"blog", "news", "updates", "changelog"}

func newStringSet(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}

// QueryTerms extracts meaningful search terms: lowercase alphanumeric runs
// of length >= 3, stopwords dropped, deduplicated in order.
func QueryTerms(query string) []string {
	query = strings.ToLower(query)

	var terms []string
	seen := map[string]struct{}{}
	for _, term := range termRe.FindAllString(query, -1) {
		if _, stop := stopwords[term]; stop {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

// messageHasAny reports whether the message or its extracted terms contain
// any of the needles.
func messageHasAny(message string, terms, needles []string) bool {
	message = strings.ToLower(message)

	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termSet[strings.ToLower(t)] = struct{}{}
	}

	for _, needle := range needles {
		needle = strings.ToLower(needle)
		if needle == "" {
			continue
		}
		if strings.Contains(message, needle) {
			return true
		}
		if _, ok := termSet[needle]; ok {
			return true
		}
	}
	return false
}

// IsRecentIntent detects "latest/recent blog post" style queries: a recency
// cue plus either a content-type cue or a blog/news-like current page.
func IsRecentIntent(latestMessage string, terms []string, currentPage *domain.PageContext) bool {
	if !messageHasAny(latestMessage, terms, recencyNeedles) {
		return false
	}

	if messageHasAny(latestMessage, terms, contentNeedles) {
		return true
	}

	// "Latest?" asked while on a blog/news page implies post intent.
	if currentPage != nil {
		signal := strings.ToLower(currentPage.Title + " " + currentPage.URL)
		for _, needle := range pageSignalNeedles {
			if strings.Contains(signal, needle) {
				return true
			}
		}
	}

	return false
}
