package chat

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kailas-cloud/asksite/internal/domain"
	"github.com/kailas-cloud/asksite/internal/rag"
)

const (
	getPageToolMaxLen = 3000
	toolSnippetLen    = 200
	toolResultLines   = 6
	queryPreviewLen   = 70
	urlLabelPathLen   = 72
	urlLabelMaxLen    = 120
)

// StatusFunc surfaces a human-readable retrieval step to the visitor.
type StatusFunc func(text string)

// sourceBag accumulates pages surfaced through tool calls so they can be
// cited alongside the context sources.
type sourceBag struct {
	excludeID int
	items     []domain.Source
}

func (b *sourceBag) add(title, rawURL string) {
	if title == "" || rawURL == "" {
		return
	}
	b.items = append(b.items, domain.Source{Title: title, URL: rawURL})
}

// toolHandler executes search_website and get_page on behalf of the model.
// Failures degrade to "no results" strings so the turn still completes.
func (s *Service) toolHandler(bag *sourceBag, status StatusFunc) domain.ToolHandler {
	emit := func(text string) {
		if status != nil {
			status(text)
		}
	}

	return func(ctx context.Context, name string, args map[string]any) string {
		switch name {
		case domain.ToolSearchWebsite:
			return s.runSearchTool(ctx, args, bag, emit)
		case domain.ToolGetPage:
			return s.runGetPageTool(ctx, args, bag, emit)
		default:
			return "Unknown tool."
		}
	}
}

func (s *Service) runSearchTool(ctx context.Context, args map[string]any, bag *sourceBag, emit func(string)) string {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return "No search terms provided."
	}

	emit(`Searching site for: "` + rag.Substr(query, queryPreviewLen) + `"`)

	results := s.rag.ToolSearch(ctx, query, bag.excludeID, s.ragCfg.MaxResults+2)
	if len(results) == 0 {
		emit("No strong matches found for that query yet")
		return `No results for "` + query + `".`
	}

	plural := "s"
	if len(results) == 1 {
		plural = ""
	}
	emit(fmt.Sprintf("Found %d matching page%s", len(results), plural))

	for _, item := range results {
		bag.add(item.Title, item.URL)
	}

	lines := make([]string, 0, toolResultLines)
	for _, item := range results {
		if len(lines) >= toolResultLines {
			break
		}
		lines = append(lines, "- "+item.Title+" | "+item.URL+"\n  "+rag.Substr(item.Snippet, toolSnippetLen))
	}
	return strings.Join(lines, "\n")
}

func (s *Service) runGetPageTool(ctx context.Context, args map[string]any, bag *sourceBag, emit func(string)) string {
	rawURL := strings.TrimSpace(stringArg(args, "url"))
	if rawURL == "" {
		return "No URL provided."
	}

	if label := urlLabel(rawURL); label != "" {
		emit("Reading page: " + label)
	} else {
		emit("Reading a page for details")
	}

	payload, err := s.rag.GetPage(ctx, rawURL, getPageToolMaxLen)
	if err != nil || payload == nil || payload.Text == "" {
		emit("Could not load that page content")
		return "Page not found: " + rawURL
	}

	bag.add(payload.Page.Title, payload.Page.URL)

	if payload.IsThin {
		emit("Page is thin, checking related supporting content")
	}

	return payload.Text
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// urlLabel condenses a URL to host plus truncated path for status lines.
func urlLabel(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return rag.Substr(strings.TrimSpace(rawURL), urlLabelMaxLen)
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}
	path = rag.Substr(path, urlLabelPathLen)

	return rag.Substr(strings.TrimSpace(parsed.Host+path), urlLabelMaxLen)
}
