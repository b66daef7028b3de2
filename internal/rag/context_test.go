package rag

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/config"
	"github.com/kailas-cloud/asksite/internal/content"
	"github.com/kailas-cloud/asksite/internal/domain"
)

func TestParseFAQ(t *testing.T) {
	raw := "Q: What are your hours?\nA: We are open 9 to 5.\n\nQ: Do you ship abroad?\nA: Yes, worldwide.\n\nbroken block without answer"

	pairs := ParseFAQ(raw)
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	if pairs[0].Question != "What are your hours?" || pairs[0].Answer != "We are open 9 to 5." {
		t.Errorf("first pair = %+v", pairs[0])
	}
}

func TestMatchFAQ(t *testing.T) {
	raw := "Q: What are your opening hours?\nA: Monday to Friday, 9 to 5.\n\nQ: How does shipping work?\nA: We ship via courier within three days."

	matched := MatchFAQ("when do you open, what are the hours?", raw, 2)
	if len(matched) == 0 {
		t.Fatal("no FAQ matched")
	}
	if !strings.Contains(matched[0].Question, "opening hours") {
		t.Errorf("best match = %+v", matched[0])
	}

	if got := MatchFAQ("completely unrelated zebra question", raw, 2); got != nil {
		t.Errorf("unrelated query matched %v", got)
	}
}

func TestBuildSearchQuery(t *testing.T) {
	terms := QueryTerms("tell me about prices and shipping costs")

	got := BuildSearchQuery("tell me about prices and shipping costs", terms, nil)
	if got == "" || len(strings.Fields(got)) > 5 {
		t.Errorf("query = %q, want <= 5 compact terms", got)
	}

	// Page title mentioned in the message gets prefixed.
	page := &domain.PageContext{Title: "Pricing", URL: "https://example.com/pricing/"}
	got = BuildSearchQuery("tell me about pricing here", QueryTerms("tell me about pricing here"), page)
	if !strings.HasPrefix(got, "pricing") {
		t.Errorf("query = %q, want pricing-first", got)
	}

	// All-stopword message falls back to the cleaned message.
	got = BuildSearchQuery("can you tell me", nil, nil)
	if got != "can you tell me" {
		t.Errorf("fallback query = %q", got)
	}
}

func TestDedupeSources(t *testing.T) {
	sources := []domain.Source{
		{Title: "Home", URL: "https://example.com/"},
		{Title: "Duplicate Home", URL: "https://example.com/"},
		{Title: "", URL: ""},
		{Title: "Pricing", URL: "https://example.com/pricing/"},
	}

	deduped := DedupeSources(sources)
	if len(deduped) != 2 {
		t.Fatalf("got %d sources, want 2", len(deduped))
	}
	if deduped[0].Title != "Home" {
		t.Errorf("first-seen title lost: %+v", deduped[0])
	}
}

func TestBuildContext(t *testing.T) {
	now := time.Now()
	cs := &fakeContentStore{pages: []content.Page{
		testPage(1, "warranty", "page", "Warranty Policy", richText("warranty policy for bikes"), now),
		testPage(2, "returns", "page", "Returns", richText("returns and exchanges"), now),
	}}
	snaps := &fakeSnapshotStore{snapshot: &domain.IndexSnapshot{
		Version: 1,
		BuiltAt: now.Unix(),
		Documents: []domain.Document{
			{
				URL: "https://example.com/returns/", Title: "Returns",
				Text: richText("returns and exchanges"), SourceID: 2, SourceType: "page",
				ModifiedTS: now.Unix(), Snippet: "returns info",
			},
		},
	}}
	svc := newTestService(t, cs, snaps)

	rc := svc.BuildContext(context.Background(),
		"https://example.com/warranty/",
		"How do returns and exchanges work?",
		"Q: Do you accept returns?\nA: Yes, within thirty days.",
	)

	if rc.CurrentPage == nil || rc.CurrentPage.Title != "Warranty Policy" {
		t.Fatalf("current page = %+v", rc.CurrentPage)
	}
	if len(rc.SearchResults) == 0 {
		t.Fatal("no search results")
	}
	if len(rc.FaqResults) == 0 {
		t.Fatal("no FAQ matches")
	}

	// Sources: current page first, deduplicated by URL.
	if len(rc.Sources) == 0 || rc.Sources[0].URL != "https://example.com/warranty/" {
		t.Errorf("sources = %+v, want current page first", rc.Sources)
	}
	seen := map[string]bool{}
	for _, src := range rc.Sources {
		if seen[src.URL] {
			t.Errorf("duplicate source URL %q", src.URL)
		}
		seen[src.URL] = true
	}

	text := ContextToText(rc)
	for _, label := range []string{"[USER_QUESTION]", "[KEY_TERMS]", "[CURRENT_PAGE | PRIORITY: HIGH]", "[WP_SEARCH | PRIORITY: MEDIUM]", "[FAQ_MATCHES | PRIORITY: LOW]"} {
		if !strings.Contains(text, label) {
			t.Errorf("context text missing block %q", label)
		}
	}

	// Block order is part of the prompt contract.
	if strings.Index(text, "[CURRENT_PAGE") > strings.Index(text, "[WP_SEARCH") {
		t.Error("current page block must precede search block")
	}
}

func TestBuildContextThinPageSupport(t *testing.T) {
	now := time.Now()
	cs := &fakeContentStore{pages: []content.Page{
		testPage(1, "gallery", "page", "Product Gallery", "-", now),
		testPage(2, "products", "page", "Product Gallery Overview", richText("our product gallery and catalog"), now),
	}}
	snaps := &fakeSnapshotStore{snapshot: &domain.IndexSnapshot{
		Version: 1,
		BuiltAt: now.Unix(),
		Documents: []domain.Document{
			{
				URL: "https://example.com/products/", Title: "Product Gallery Overview",
				Text: richText("our product gallery and catalog"), SourceID: 2, SourceType: "page",
				ModifiedTS: now.Unix(), Snippet: "product catalog",
			},
		},
	}}
	svc := newTestService(t, cs, snaps)

	rc := svc.BuildContext(context.Background(),
		"https://example.com/gallery/",
		"What products are in the gallery?",
		"",
	)

	if rc.CurrentPage == nil {
		t.Fatal("current page not resolved")
	}
	if !rc.CurrentPage.IsThin {
		t.Fatal("placeholder page not judged thin")
	}
	if len(rc.CurrentPage.SupportSnippets) == 0 {
		t.Fatal("thin page got no support snippets")
	}

	text := ContextToText(rc)
	if !strings.Contains(text, "[CURRENT_PAGE | PRIORITY: MEDIUM]") {
		t.Error("thin current page should be MEDIUM priority")
	}
	if !strings.Contains(text, "[CURRENT_PAGE_SUPPORT | PRIORITY: HIGH]") {
		t.Error("support block missing")
	}
}

func TestIndexBuildAndTTL(t *testing.T) {
	now := time.Now()
	cs := &fakeContentStore{pages: []content.Page{
		testPage(1, "warranty", "page", "Warranty", richText("warranty"), now),
		testPage(2, "returns", "page", "Returns", richText("returns"), now.Add(-time.Hour)),
	}}
	snaps := &fakeSnapshotStore{}
	svc := newTestService(t, cs, snaps)

	snap, err := svc.Index(context.Background(), false)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if len(snap.Documents) != 2 {
		t.Fatalf("got %d documents, want 2", len(snap.Documents))
	}
	// Recency ordering.
	if snap.Documents[0].URL != "https://example.com/warranty/" {
		t.Errorf("first document = %q, want most recently modified", snap.Documents[0].URL)
	}

	// Fresh snapshot is served from cache even after content changes.
	cs.pages = nil
	again, err := svc.Index(context.Background(), false)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if len(again.Documents) != 2 {
		t.Errorf("cached snapshot not reused: %d documents", len(again.Documents))
	}

	// Invalidation drops the cache; the next read rebuilds from scratch.
	if err := svc.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	rebuilt, err := svc.Index(context.Background(), false)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if len(rebuilt.Documents) != 0 {
		t.Errorf("rebuild after invalidation kept %d stale documents", len(rebuilt.Documents))
	}
}

func TestIndexSitemapURLBudget(t *testing.T) {
	cfg := testRAGConfig()
	cfg.SitemapMaxURLs = 3

	site := config.SiteConfig{
		BaseURL:   "https://example.com",
		PostTypes: []string{"page", "post"},
	}
	fetch := &stubFetcher{}
	svc, err := New(cfg, site, &fakeContentStore{}, &fakeSnapshotStore{}, fetch, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := svc.Index(context.Background(), false); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if fetch.lastMaxURLs != 3 {
		t.Errorf("sitemap URL budget = %d, want configured cap 3", fetch.lastMaxURLs)
	}
}

func TestGetPageStatus(t *testing.T) {
	now := time.Now()
	cs := &fakeContentStore{pages: []content.Page{
		testPage(1, "warranty", "page", "Warranty", richText("warranty"), now),
	}}
	svc := newTestService(t, cs, &fakeSnapshotStore{snapshot: &domain.IndexSnapshot{
		Version: 1, BuiltAt: now.Unix(),
	}})

	payload, err := svc.GetPage(context.Background(), "https://example.com/warranty/", 3000)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if payload.Status != domain.PageStatusFull {
		t.Errorf("status = %q, want full", payload.Status)
	}
	if !strings.Contains(payload.Text, "Content status: full") {
		t.Errorf("payload text missing status marker: %q", payload.Text)
	}
	if !strings.Contains(payload.Text, "URL: https://example.com/warranty/") {
		t.Errorf("payload text missing URL line: %q", payload.Text)
	}
}
