package rag

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kailas-cloud/asksite/internal/domain"
)

var (
	faqBlockRe = regexp.MustCompile(`(?:\r?\n){2,}`)
	faqPairRe  = regexp.MustCompile(`(?is)Q:\s*(.+?)(?:\r?\n)+\s*A:\s*(.+)`)
)

// ParseFAQ parses an admin-supplied Q:/A: text blob into pairs. Blocks
// missing either side are skipped.
func ParseFAQ(raw string) []domain.FaqPair {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var pairs []domain.FaqPair
	for _, block := range faqBlockRe.Split(raw, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		var question, answer string
		if m := faqPairRe.FindStringSubmatch(block); m != nil {
			question = strings.TrimSpace(m[1])
			answer = strings.TrimSpace(m[2])
		} else {
			for _, line := range strings.Split(block, "\n") {
				line = strings.TrimSpace(line)
				lower := strings.ToLower(line)
				if strings.HasPrefix(lower, "q:") {
					question = strings.TrimSpace(line[2:])
				}
				if strings.HasPrefix(lower, "a:") {
					answer = strings.TrimSpace(line[2:])
				}
			}
		}

		if question == "" || answer == "" {
			continue
		}

		pairs = append(pairs, domain.FaqPair{
			Question: CleanText(question, 240),
			Answer:   CleanText(answer, 500),
		})
	}
	return pairs
}

// MatchFAQ returns the best-matching FAQ pairs for the query by term
// overlap. With no extractable terms the first maxResults pairs win.
func MatchFAQ(query, raw string, maxResults int) []domain.FaqPair {
	pairs := ParseFAQ(raw)
	if len(pairs) == 0 {
		return nil
	}

	terms := QueryTerms(query)
	if len(terms) == 0 {
		if len(pairs) > maxResults {
			return pairs[:maxResults]
		}
		return pairs
	}

	type scoredPair struct {
		pair  domain.FaqPair
		score int
	}

	var scored []scoredPair
	for _, pair := range pairs {
		haystack := strings.ToLower(pair.Question + " " + pair.Answer)
		score := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score++
			}
		}
		if score > 0 {
			scored = append(scored, scoredPair{pair: pair, score: score})
		}
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > maxResults {
		scored = scored[:maxResults]
	}

	matched := make([]domain.FaqPair, 0, len(scored))
	for _, s := range scored {
		matched = append(matched, s.pair)
	}
	return matched
}
