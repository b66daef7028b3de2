package rag

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/domain"
)

// Empirically tuned ranking weights. Overridable only by editing here;
// their values are part of the retrieval contract.
const (
	recencyBoostWindow  = 45 * 24 * time.Hour
	recencyBoost        = 1
	qualityBoost        = 1
	typeBoost           = 1
	indexArchivePenalty = 2
	rankArchivePenalty  = 1
)

// SearchStore runs the content store's own full-text search, bounded to 6
// results, excluding the given source id.
func (s *Service) SearchStore(ctx context.Context, query string, excludeID int) []domain.SearchResult {
	query = CleanText(query, 120)
	if query == "" {
		return nil
	}

	pages, err := s.store.Search(ctx, query, 6)
	if err != nil {
		s.log.Warn("content store search failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	var results []domain.SearchResult
	for _, page := range pages {
		if excludeID > 0 && page.ID == excludeID {
			continue
		}

		snippet := CleanText(page.Excerpt, 300)
		if snippet == "" {
			snippet = CleanText(page.Content, 300)
		}

		results = append(results, domain.SearchResult{
			Title:   CleanText(page.Title, 200),
			URL:     s.origin.Normalize(page.URL),
			Snippet: snippet,
		})
	}
	return results
}

// SearchIndex scores index documents by term hits plus recency, quality,
// and type boosts, minus an archive penalty, then ranks.
func (s *Service) SearchIndex(ctx context.Context, query string, maxResults, excludeID int) []domain.SearchResult {
	query = CleanText(query, 120)
	if query == "" {
		return nil
	}

	index, err := s.Index(ctx, false)
	if err != nil || index.Empty() {
		return nil
	}

	maxResults = clamp(maxResults, 1, 20)
	snippetLen := s.snippetLength()
	terms := QueryTerms(query)
	queryLower := strings.ToLower(query)
	now := s.now()

	var results []domain.SearchResult
	for _, doc := range index.Documents {
		if doc.URL == "" {
			continue
		}
		if excludeID > 0 && doc.SourceID == excludeID {
			continue
		}

		haystack := doc.Title + " " + doc.Snippet + " " + doc.Text
		hits := CountTermHits(haystack, terms)

		// Raw substring match still counts when no term hits.
		if hits < 1 && queryLower != "" && strings.Contains(strings.ToLower(haystack), queryLower) {
			hits = 1
		}
		if hits < 1 {
			continue
		}

		score := hits
		if doc.ModifiedTS > 0 && now.Sub(time.Unix(doc.ModifiedTS, 0)) < recencyBoostWindow {
			score += recencyBoost
		}
		if !doc.IsThin {
			score += qualityBoost
		}
		if doc.SourceType == "post" || doc.SourceType == "page" {
			score += typeBoost
		}
		if IsArchiveLikeURL(doc.URL) {
			score -= indexArchivePenalty
		}
		if score < 1 {
			continue
		}

		snippet := FocusSnippet(doc.Text, terms, snippetLen)
		if snippet == "" {
			snippet = Substr(doc.Snippet, snippetLen)
		}

		title := doc.Title
		if title == "" {
			title = TitleFromURL(doc.URL)
		}

		results = append(results, domain.SearchResult{
			Title:    title,
			URL:      doc.URL,
			Snippet:  snippet,
			TermHits: score,
		})
	}

	if len(results) == 0 {
		return nil
	}
	return RankSearchResults(results, terms, maxResults)
}

// RankSearchResults recomputes term hits per result (keeping the higher of
// supplied and computed scores, minus an archive penalty), deduplicates by
// URL keeping the higher score, drops zero-score entries, and sorts by hits
// descending then title length descending.
func RankSearchResults(results []domain.SearchResult, terms []string, maxResults int) []domain.SearchResult {
	byURL := map[string]domain.SearchResult{}
	order := make([]string, 0, len(results))

	for _, item := range results {
		if item.URL == "" {
			continue
		}

		computed := CountTermHits(item.Title+" "+item.Snippet, terms)
		hits := item.TermHits
		if computed > hits {
			hits = computed
		}
		if IsArchiveLikeURL(item.URL) {
			hits -= rankArchivePenalty
		}
		if hits < 1 {
			continue
		}
		item.TermHits = hits

		existing, dup := byURL[item.URL]
		if !dup {
			order = append(order, item.URL)
			byURL[item.URL] = item
		} else if item.TermHits > existing.TermHits {
			byURL[item.URL] = item
		}
	}

	ranked := make([]domain.SearchResult, 0, len(order))
	for _, url := range order {
		ranked = append(ranked, byURL[url])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TermHits != ranked[j].TermHits {
			return ranked[i].TermHits > ranked[j].TermHits
		}
		// Longer titles tend to be more descriptive.
		return len(ranked[i].Title) > len(ranked[j].Title)
	})

	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}
	return ranked
}

// MergeSearchResults deduplicates two result sets by URL (later entries
// win) and sorts by term hits descending.
func MergeSearchResults(primary, fallback []domain.SearchResult, maxResults int) []domain.SearchResult {
	all := make([]domain.SearchResult, 0, len(primary)+len(fallback))
	all = append(all, primary...)
	all = append(all, fallback...)
	if len(all) == 0 {
		return nil
	}

	byURL := map[string]domain.SearchResult{}
	order := make([]string, 0, len(all))
	for _, item := range all {
		if item.URL == "" {
			continue
		}
		if _, dup := byURL[item.URL]; !dup {
			order = append(order, item.URL)
		}
		byURL[item.URL] = item
	}

	merged := make([]domain.SearchResult, 0, len(order))
	for _, url := range order {
		merged = append(merged, byURL[url])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].TermHits > merged[j].TermHits
	})

	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged
}

// RecentEntries fetches the newest published entries, scores forced high so
// zero-hit pruning keeps them, with the publish date baked into the snippet.
func (s *Service) RecentEntries(ctx context.Context, maxResults, snippetLen int) []domain.SearchResult {
	maxResults = clamp(maxResults, 1, 10)
	snippetLen = clamp(snippetLen, 120, 1200)

	// Prefer the blog post type when it is configured at all.
	types := s.types
	for _, t := range s.types {
		if t == "post" {
			types = []string{"post"}
			break
		}
	}

	var results []domain.SearchResult
	for _, t := range types {
		pages, err := s.store.Recent(ctx, t, maxResults)
		if err != nil {
			continue
		}

		for _, page := range pages {
			title := CleanText(page.Title, 200)
			url := s.origin.Normalize(page.URL)
			if title == "" || url == "" {
				continue
			}

			snippet := CleanText(page.Excerpt, snippetLen)
			if snippet == "" {
				snippet = CleanText(page.Content, snippetLen)
			}
			if !page.Published.IsZero() {
				snippet = strings.TrimSpace("Published: " + page.Published.Format("2006-01-02") + ". " + snippet)
			}

			score := 100 - len(results)
			if score < 1 {
				score = 1
			}

			results = append(results, domain.SearchResult{
				Title:    title,
				URL:      url,
				Snippet:  Substr(snippet, snippetLen),
				TermHits: score,
			})
			if len(results) >= maxResults {
				return results
			}
		}
	}
	return results
}

// ToolSearch backs the search_website tool: store search merged with index
// search, with deterministic recent entries prepended on recency intent.
func (s *Service) ToolSearch(ctx context.Context, query string, excludeID, maxResults int) []domain.SearchResult {
	query = CleanText(query, 120)
	if query == "" {
		return nil
	}

	maxResults = clamp(maxResults, 1, 12)
	terms := QueryTerms(query)

	results := s.SearchStore(ctx, query, excludeID)
	results = append(results, s.SearchIndex(ctx, query, maxResults+4, excludeID)...)

	if IsRecentIntent(query, terms, nil) {
		recent := s.RecentEntries(ctx, max(maxResults, 3), s.cfg.SnippetLength)
		if len(recent) > 0 {
			results = append(recent, results...)
		}
	}

	return RankSearchResults(results, terms, maxResults)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
