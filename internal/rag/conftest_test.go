package rag

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/config"
	"github.com/kailas-cloud/asksite/internal/content"
	"github.com/kailas-cloud/asksite/internal/domain"
)

func pageForURL(url string) *domain.PageContext {
	if url == "" {
		return nil
	}
	return &domain.PageContext{Title: TitleFromURL(url), URL: url}
}

// fakeContentStore serves canned pages for Search/Recent/BySlug/ByID.
type fakeContentStore struct {
	pages    []content.Page
	menuURLs []string
}

func (f *fakeContentStore) Search(_ context.Context, query string, limit int) ([]content.Page, error) {
	var out []content.Page
	for _, p := range f.pages {
		if CountTermHits(p.Title+" "+p.Content, QueryTerms(query)) > 0 {
			out = append(out, p)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeContentStore) Recent(_ context.Context, postType string, limit int) ([]content.Page, error) {
	var out []content.Page
	for _, p := range f.pages {
		if p.Type == postType {
			out = append(out, p)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeContentStore) BySlug(_ context.Context, slug string, _ []string) (content.Page, error) {
	for _, p := range f.pages {
		if p.Slug == slug {
			return p, nil
		}
	}
	return content.Page{}, fmt.Errorf("slug %q: %w", slug, domain.ErrPageNotFound)
}

func (f *fakeContentStore) ByID(_ context.Context, id int, _ []string) (content.Page, error) {
	for _, p := range f.pages {
		if p.ID == id {
			return p, nil
		}
	}
	return content.Page{}, fmt.Errorf("id %d: %w", id, domain.ErrPageNotFound)
}

func (f *fakeContentStore) MenuURLs(_ context.Context) ([]string, error) {
	return f.menuURLs, nil
}

// fakeSnapshotStore is an in-memory SnapshotStore.
type fakeSnapshotStore struct {
	snapshot *domain.IndexSnapshot
}

func (f *fakeSnapshotStore) Get(_ context.Context) (domain.IndexSnapshot, error) {
	if f.snapshot == nil {
		return domain.IndexSnapshot{}, fmt.Errorf("index snapshot: %w", domain.ErrPageNotFound)
	}
	return *f.snapshot, nil
}

func (f *fakeSnapshotStore) Set(_ context.Context, snapshot domain.IndexSnapshot) error {
	f.snapshot = &snapshot
	return nil
}

func (f *fakeSnapshotStore) Delete(_ context.Context) error {
	f.snapshot = nil
	return nil
}

func testRAGConfig() config.RAGConfig {
	return config.RAGConfig{
		MaxResults:       4,
		MaxFAQ:           2,
		SnippetLength:    300,
		IndexMaxDocs:     40,
		IndexTTLSec:      6 * 3600,
		FetchBudget:      8,
		FetchBudgetForce: 14,
		MaxSitemaps:      8,
		SitemapMaxURLs:   50,
		ToolRounds:       4,
	}
}

// stubFetcher serves canned rendered text keyed by URL; no network.
type stubFetcher struct {
	rendered map[string]string
	sitemap  []string

	lastMaxURLs int
}

func (f *stubFetcher) RenderedText(_ context.Context, url string, _ int) string {
	return f.rendered[url]
}

func (f *stubFetcher) SitemapURLs(_ context.Context, _, maxURLs int) []string {
	f.lastMaxURLs = maxURLs
	return f.sitemap
}

func newTestService(t *testing.T, store *fakeContentStore, snaps *fakeSnapshotStore) *Service {
	t.Helper()

	site := config.SiteConfig{
		BaseURL:   "https://example.com",
		PostTypes: []string{"page", "post"},
	}

	svc, err := New(testRAGConfig(), site, store, snaps, &stubFetcher{}, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func richText(topic string) string {
	return fmt.Sprintf(
		"This page describes our %s in detail. It covers conditions, timelines, and practical examples so visitors can find answers without contacting support.",
		topic,
	)
}

func testPage(id int, slug, typ, title, body string, modified time.Time) content.Page {
	return content.Page{
		ID:        id,
		Slug:      slug,
		Type:      typ,
		Title:     title,
		URL:       "https://example.com/" + slug + "/",
		Content:   "<p>" + body + "</p>",
		Published: modified.Add(-24 * time.Hour),
		Modified:  modified,
	}
}
