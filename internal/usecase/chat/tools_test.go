package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/kailas-cloud/asksite/internal/domain"
)

func TestToolHandlerSearch(t *testing.T) {
	retr := &fakeRetriever{
		searchResults: []domain.SearchResult{
			{Title: "Pricing", URL: "https://example.com/pricing", Snippet: "Our plans start at $10.", TermHits: 4},
			{Title: "Hours", URL: "https://example.com/hours", Snippet: "Open 9-5.", TermHits: 2},
		},
	}
	env := newTestEnv(testConfig(), okAdapter("unused"), retr)

	bag := &sourceBag{}
	var statuses []string
	handler := env.service.toolHandler(bag, func(text string) { statuses = append(statuses, text) })

	out := handler(context.Background(), domain.ToolSearchWebsite, map[string]any{"query": "pricing plans"})

	if !strings.Contains(out, "- Pricing | https://example.com/pricing\n  Our plans start at $10.") {
		t.Errorf("output = %q", out)
	}
	if len(bag.items) != 2 {
		t.Errorf("sources = %+v", bag.items)
	}
	if statuses[0] != `Searching site for: "pricing plans"` {
		t.Errorf("first status = %q", statuses[0])
	}
	if statuses[1] != "Found 2 matching pages" {
		t.Errorf("second status = %q", statuses[1])
	}
}

func TestToolHandlerSearchNoResults(t *testing.T) {
	env := newTestEnv(testConfig(), okAdapter("unused"), &fakeRetriever{})

	var statuses []string
	handler := env.service.toolHandler(&sourceBag{}, func(text string) { statuses = append(statuses, text) })

	out := handler(context.Background(), domain.ToolSearchWebsite, map[string]any{"query": "nothing here"})
	if out != `No results for "nothing here".` {
		t.Errorf("output = %q", out)
	}
	if statuses[len(statuses)-1] != "No strong matches found for that query yet" {
		t.Errorf("statuses = %v", statuses)
	}

	if got := handler(context.Background(), domain.ToolSearchWebsite, map[string]any{}); got != "No search terms provided." {
		t.Errorf("empty query output = %q", got)
	}
}

func TestToolHandlerGetPage(t *testing.T) {
	retr := &fakeRetriever{
		pages: map[string]*domain.PagePayload{
			"https://example.com/about": {
				Page:   domain.PageContext{Title: "About", URL: "https://example.com/about"},
				Text:   "About\nURL: https://example.com/about\nContent status: full\n\nWe are a company.",
				Status: domain.PageStatusFull,
			},
		},
	}
	env := newTestEnv(testConfig(), okAdapter("unused"), retr)

	bag := &sourceBag{}
	var statuses []string
	handler := env.service.toolHandler(bag, func(text string) { statuses = append(statuses, text) })

	out := handler(context.Background(), domain.ToolGetPage, map[string]any{"url": "https://example.com/about"})
	if !strings.Contains(out, "We are a company.") {
		t.Errorf("output = %q", out)
	}
	if statuses[0] != "Reading page: example.com/about" {
		t.Errorf("status = %q", statuses[0])
	}
	if len(bag.items) != 1 || bag.items[0].Title != "About" {
		t.Errorf("sources = %+v", bag.items)
	}
}

func TestToolHandlerGetPageNotFound(t *testing.T) {
	env := newTestEnv(testConfig(), okAdapter("unused"), &fakeRetriever{})

	var statuses []string
	handler := env.service.toolHandler(&sourceBag{}, func(text string) { statuses = append(statuses, text) })

	out := handler(context.Background(), domain.ToolGetPage, map[string]any{"url": "https://example.com/missing"})
	if out != "Page not found: https://example.com/missing" {
		t.Errorf("output = %q", out)
	}
	if statuses[len(statuses)-1] != "Could not load that page content" {
		t.Errorf("statuses = %v", statuses)
	}

	if got := handler(context.Background(), domain.ToolGetPage, map[string]any{}); got != "No URL provided." {
		t.Errorf("empty url output = %q", got)
	}
}

func TestToolHandlerThinPageStatus(t *testing.T) {
	retr := &fakeRetriever{
		pages: map[string]*domain.PagePayload{
			"https://example.com/thin": {
				Page:   domain.PageContext{Title: "Thin", URL: "https://example.com/thin"},
				Text:   "Thin\nURL: https://example.com/thin\nContent status: support_enriched\n\n-",
				IsThin: true,
				Status: domain.PageStatusSupportEnriched,
			},
		},
	}
	env := newTestEnv(testConfig(), okAdapter("unused"), retr)

	var statuses []string
	handler := env.service.toolHandler(&sourceBag{}, func(text string) { statuses = append(statuses, text) })

	handler(context.Background(), domain.ToolGetPage, map[string]any{"url": "https://example.com/thin"})
	if statuses[len(statuses)-1] != "Page is thin, checking related supporting content" {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestToolHandlerUnknownTool(t *testing.T) {
	env := newTestEnv(testConfig(), okAdapter("unused"), &fakeRetriever{})
	handler := env.service.toolHandler(&sourceBag{}, nil)

	if got := handler(context.Background(), "delete_everything", nil); got != "Unknown tool." {
		t.Errorf("output = %q", got)
	}
}

func TestURLLabel(t *testing.T) {
	if got := urlLabel("https://example.com/a/very/deep/path?q=1"); got != "example.com/a/very/deep/path" {
		t.Errorf("label = %q", got)
	}
	if got := urlLabel("https://example.com"); got != "example.com/" {
		t.Errorf("label = %q", got)
	}

	long := "https://example.com/" + strings.Repeat("x", 200)
	if got := urlLabel(long); len(got) > urlLabelMaxLen {
		t.Errorf("label len = %d", len(got))
	}
}
