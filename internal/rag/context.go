package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/asksite/internal/domain"
)

// BuildSearchQuery compacts extracted terms into a search string, prefixed
// with the page title when the visitor literally mentions it.
func BuildSearchQuery(latestMessage string, terms []string, currentPage *domain.PageContext) string {
	var compact []string
	if len(terms) > 0 {
		compact = append(compact, terms[:min(5, len(terms))]...)
	}

	// For section-overview questions the page title is often the strongest
	// signal.
	if currentPage != nil && currentPage.Title != "" {
		titleTerm := strings.ToLower(CleanText(currentPage.Title, 60))
		if titleTerm != "" && !containsString(compact, titleTerm) &&
			strings.Contains(strings.ToLower(latestMessage), titleTerm) {
			compact = append([]string{titleTerm}, compact...)
		}
	}

	if len(compact) > 0 {
		if len(compact) > 5 {
			compact = compact[:5]
		}
		return strings.Join(compact, " ")
	}

	return CleanText(latestMessage, 120)
}

func containsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}

// BuildContext assembles the full retrieval context for one chat turn:
// current page, merged store+index search, recency-aware boosts, FAQ
// matches, and the deduplicated source list.
func (s *Service) BuildContext(ctx context.Context, pageURL, latestMessage, faqRaw string) domain.RagContext {
	terms := QueryTerms(latestMessage)
	snippetLen := s.cfg.SnippetLength
	maxResults := s.cfg.MaxResults
	maxFAQ := s.cfg.MaxFAQ

	rc := domain.RagContext{
		LatestMessage: CleanText(latestMessage, 220),
		QueryTerms:    terms,
	}

	// 1. Resolve the page the visitor is looking at.
	currentPage, err := s.ResolvePage(ctx, pageURL)
	if err == nil && currentPage != nil {
		currentPage.IsThin = IsThinText(currentPage.Content)
		currentPage.FocusSnippet = FocusSnippet(currentPage.Content, terms, 900)
		if currentPage.IsThin {
			currentPage.SupportSnippets = s.ThinPageSupport(ctx, currentPage, currentPage.Title, 2)
		}
		rc.CurrentPage = currentPage
		rc.Sources = append(rc.Sources, domain.Source{Title: currentPage.Title, URL: currentPage.URL})
	}

	// 2. Primary search from extracted terms.
	excludeID := 0
	if rc.CurrentPage != nil {
		excludeID = rc.CurrentPage.SourceID
	}
	searchQuery := BuildSearchQuery(latestMessage, terms, rc.CurrentPage)
	primary := s.SearchStore(ctx, searchQuery, excludeID)

	// 3. Fallback search by page title if primary results are sparse.
	var fallback []domain.SearchResult
	if len(primary) < maxResults && rc.CurrentPage != nil && rc.CurrentPage.Title != "" {
		fallback = s.SearchStore(ctx, rc.CurrentPage.Title, excludeID)
	}

	// 4. Rank and deduplicate.
	results := RankSearchResults(append(primary, fallback...), terms, maxResults)

	// 4a. Merge index results for zero-setup retrieval quality.
	indexResults := s.SearchIndex(ctx, searchQuery, maxResults+3, excludeID)
	if len(indexResults) < maxResults && rc.CurrentPage != nil && rc.CurrentPage.Title != "" {
		indexResults = append(indexResults, s.SearchIndex(ctx, rc.CurrentPage.Title, maxResults+2, excludeID)...)
	}
	if len(indexResults) > 0 {
		results = RankSearchResults(append(results, indexResults...), terms, maxResults)
	}

	// 4b. Inject deterministic recent entries for latest/recent intents.
	if IsRecentIntent(latestMessage, terms, rc.CurrentPage) {
		recent := s.RecentEntries(ctx, max(maxResults, 3), snippetLen)
		if len(recent) > 0 {
			results = RankSearchResults(append(recent, results...), terms, maxResults)
		}
	}

	// Strip zero-hit results when at least one result has positive hits.
	hasPositive := false
	for _, r := range results {
		if r.TermHits > 0 {
			hasPositive = true
			break
		}
	}
	if hasPositive {
		kept := results[:0]
		for _, r := range results {
			if r.TermHits > 0 {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	// Re-truncate snippets at the configured length.
	for i := range results {
		results[i].Snippet = Substr(results[i].Snippet, snippetLen)
	}

	rc.SearchResults = results
	for _, r := range results {
		rc.Sources = append(rc.Sources, domain.Source{Title: r.Title, URL: r.URL})
	}

	// 5. Match FAQ pairs.
	rc.FaqResults = MatchFAQ(latestMessage, faqRaw, maxFAQ)
	if len(rc.FaqResults) > 0 {
		rc.Sources = append(rc.Sources, domain.Source{Title: "FAQ", URL: s.origin.Home()})
	}

	rc.Sources = DedupeSources(rc.Sources)
	return rc
}

// DedupeSources removes duplicate URLs, keeping first-seen order and title.
func DedupeSources(sources []domain.Source) []domain.Source {
	seen := map[string]struct{}{}
	deduped := make([]domain.Source, 0, len(sources))
	for _, src := range sources {
		if src.URL == "" {
			continue
		}
		if _, dup := seen[src.URL]; dup {
			continue
		}
		seen[src.URL] = struct{}{}
		deduped = append(deduped, src)
	}
	return deduped
}

// ContextToText renders the context as labeled, priority-tagged blocks.
// Labels and order are a contract with the system prompt, which instructs
// the model to weight blocks by the stated priority.
func ContextToText(rc domain.RagContext) string {
	var chunks []string

	if rc.LatestMessage != "" {
		chunks = append(chunks, "[USER_QUESTION]\n"+rc.LatestMessage)
	}

	if len(rc.QueryTerms) > 0 {
		chunks = append(chunks, "[KEY_TERMS]\n"+strings.Join(rc.QueryTerms, ", "))
	}

	if page := rc.CurrentPage; page != nil {
		excerpt := page.FocusSnippet
		if excerpt == "" {
			excerpt = page.Content
		}
		priority := "HIGH"
		if page.IsThin {
			priority = "MEDIUM"
		}
		chunks = append(chunks, fmt.Sprintf(
			"[CURRENT_PAGE | PRIORITY: %s]\nTitle: %s\nURL: %s\nExcerpt: %s",
			priority, page.Title, page.URL, excerpt,
		))

		if page.IsThin && len(page.SupportSnippets) > 0 {
			var supportChunks []string
			for _, item := range page.SupportSnippets {
				if item.URL == "" {
					continue
				}
				title := item.Title
				if title == "" {
					title = TitleFromURL(item.URL)
				}
				supportChunks = append(supportChunks, fmt.Sprintf(
					"- %s\n  URL: %s\n  Snippet: %s", title, item.URL, item.Snippet,
				))
			}
			if len(supportChunks) > 0 {
				chunks = append(chunks,
					"[CURRENT_PAGE_SUPPORT | PRIORITY: HIGH]\nCurrent page body is minimal; use these related snippets for substantive answers:\n"+
						strings.Join(supportChunks, "\n"))
			}
		}
	}

	if len(rc.SearchResults) > 0 {
		var searchChunks []string
		for _, item := range rc.SearchResults {
			searchChunks = append(searchChunks, fmt.Sprintf(
				"- %s\n  URL: %s\n  Hits: %d\n  Snippet: %s",
				item.Title, item.URL, item.TermHits, item.Snippet,
			))
		}
		chunks = append(chunks, "[WP_SEARCH | PRIORITY: MEDIUM]\n"+strings.Join(searchChunks, "\n"))
	}

	if len(rc.FaqResults) > 0 {
		var faqChunks []string
		for _, faq := range rc.FaqResults {
			faqChunks = append(faqChunks, "Q: "+faq.Question+"\nA: "+faq.Answer)
		}
		chunks = append(chunks, "[FAQ_MATCHES | PRIORITY: LOW]\n"+strings.Join(faqChunks, "\n\n"))
	}

	return strings.Join(chunks, "\n\n")
}
