package rag

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/config"
	"github.com/kailas-cloud/asksite/internal/content"
	"github.com/kailas-cloud/asksite/internal/domain"
	"github.com/kailas-cloud/asksite/internal/metrics"
)

const indexDocMaxLen = 5000

// SnapshotStore persists the single cached index snapshot.
type SnapshotStore interface {
	Get(ctx context.Context) (domain.IndexSnapshot, error)
	Set(ctx context.Context, snapshot domain.IndexSnapshot) error
	Delete(ctx context.Context) error
}

// PageFetcher recovers rendered page text and crawls sitemaps. Implemented
// by Fetcher; fakes stand in for it in tests.
type PageFetcher interface {
	RenderedText(ctx context.Context, url string, maxLen int) string
	SitemapURLs(ctx context.Context, maxSitemaps, maxURLs int) []string
}

// Service implements retrieval: index building, ranked search, page
// resolution, and context assembly.
type Service struct {
	cfg     config.RAGConfig
	types   []string
	origin  *Origin
	store   content.Store
	snaps   SnapshotStore
	fetcher PageFetcher
	log     *zap.Logger
	now     func() time.Time
}

// New creates the retrieval service.
func New(
	cfg config.RAGConfig,
	site config.SiteConfig,
	store content.Store,
	snaps SnapshotStore,
	fetcher PageFetcher,
	log *zap.Logger,
) (*Service, error) {
	origin, err := NewOrigin(site.BaseURL)
	if err != nil {
		return nil, err
	}

	types := site.PostTypes
	if len(types) == 0 {
		types = []string{"page", "post"}
	}

	return &Service{
		cfg:     cfg,
		types:   types,
		origin:  origin,
		store:   store,
		snaps:   snaps,
		fetcher: fetcher,
		log:     log,
		now:     time.Now,
	}, nil
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Origin exposes the site origin for URL checks in callers.
func (s *Service) Origin() *Origin {
	return s.origin
}

// Index returns the cached snapshot if fresh and non-empty, otherwise
// rebuilds. force always rebuilds with the larger fetch budget.
func (s *Service) Index(ctx context.Context, force bool) (domain.IndexSnapshot, error) {
	if !force {
		snap, err := s.snaps.Get(ctx)
		if err == nil && !snap.Empty() && snap.Age(s.now()) < time.Duration(s.cfg.IndexTTLSec)*time.Second {
			return snap, nil
		}
	}
	return s.rebuild(ctx, force)
}

// Invalidate drops the cached snapshot. The next read triggers a full
// rebuild.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.snaps.Delete(ctx)
}

func (s *Service) rebuild(ctx context.Context, force bool) (domain.IndexSnapshot, error) {
	start := s.now()

	fetchBudget := s.cfg.FetchBudget
	if force {
		fetchBudget = s.cfg.FetchBudgetForce
	}
	maxDocs := s.cfg.IndexMaxDocs

	byURL := map[string]domain.Document{}
	order := make([]string, 0, maxDocs)
	fetches := 0

	addDoc := func(doc domain.Document, ok bool) {
		if !ok || doc.URL == "" {
			return
		}
		if _, dup := byURL[doc.URL]; !dup {
			order = append(order, doc.URL)
		}
		byURL[doc.URL] = doc
	}

	// Most-recently-modified entries from the content store first.
	for _, page := range s.collectCandidatePages(ctx, maxDocs+20) {
		addDoc(s.documentFromPage(ctx, page, &fetches, fetchBudget))
		if len(byURL) >= maxDocs {
			break
		}
	}

	// Top up from menus and the sitemap, live-rendered.
	if len(byURL) < maxDocs {
		for _, url := range s.collectCandidateURLs(ctx, 140) {
			if _, dup := byURL[url]; dup {
				continue
			}
			addDoc(s.documentFromURL(ctx, url, &fetches, fetchBudget))
			if len(byURL) >= maxDocs || fetches >= fetchBudget {
				break
			}
		}
	}

	docs := make([]domain.Document, 0, len(order))
	for _, url := range order {
		docs = append(docs, byURL[url])
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].ModifiedTS > docs[j].ModifiedTS
	})
	if len(docs) > maxDocs {
		docs = docs[:maxDocs]
	}

	snapshot := domain.IndexSnapshot{
		Version:   1,
		BuiltAt:   s.now().Unix(),
		Documents: docs,
	}
	if err := s.snaps.Set(ctx, snapshot); err != nil {
		return domain.IndexSnapshot{}, err
	}

	metrics.IndexRebuildDuration.Observe(s.now().Sub(start).Seconds())
	metrics.IndexDocuments.Set(float64(len(docs)))
	s.log.Info("content index rebuilt",
		zap.Int("documents", len(docs)),
		zap.Int("live_fetches", fetches),
		zap.Bool("forced", force),
	)

	return snapshot, nil
}

func (s *Service) collectCandidatePages(ctx context.Context, maxPages int) []content.Page {
	var pages []content.Page
	seen := map[int]struct{}{}

	for _, t := range s.types {
		recent, err := s.store.Recent(ctx, t, maxPages)
		if err != nil {
			s.log.Warn("recent content fetch failed", zap.String("type", t), zap.Error(err))
			continue
		}
		for _, p := range recent {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			pages = append(pages, p)
		}
	}

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Modified.After(pages[j].Modified)
	})
	if len(pages) > maxPages {
		pages = pages[:maxPages]
	}
	return pages
}

func (s *Service) collectCandidateURLs(ctx context.Context, maxURLs int) []string {
	var urls []string
	seen := map[string]struct{}{}

	add := func(url string) bool {
		if url == "" {
			return len(urls) < maxURLs
		}
		if _, dup := seen[url]; !dup {
			seen[url] = struct{}{}
			urls = append(urls, url)
		}
		return len(urls) < maxURLs
	}

	add(s.origin.Home())

	menuURLs, err := s.store.MenuURLs(ctx)
	if err == nil {
		for _, raw := range menuURLs {
			if !add(s.origin.Normalize(raw)) {
				return urls
			}
		}
	}

	if len(urls) < maxURLs {
		budget := min(maxURLs-len(urls), s.cfg.SitemapMaxURLs)
		for _, url := range s.fetcher.SitemapURLs(ctx, s.cfg.MaxSitemaps, budget) {
			if !add(url) {
				break
			}
		}
	}

	return urls
}

func (s *Service) documentFromPage(ctx context.Context, page content.Page, fetches *int, budget int) (domain.Document, bool) {
	url := s.origin.Normalize(page.URL)
	if url == "" {
		return domain.Document{}, false
	}

	title := CleanText(page.Title, 200)
	if title == "" {
		title = TitleFromURL(url)
	}

	text := CleanText(page.Content, indexDocMaxLen)
	isThin := IsThinText(text)

	if isThin && *fetches < budget {
		rendered := s.fetcher.RenderedText(ctx, url, indexDocMaxLen)
		*fetches++
		if !IsThinText(rendered) {
			text = rendered
			isThin = false
		}
	}

	snippet := Substr(text, s.snippetLength())
	if snippet == "" {
		snippet = title
	}

	modified := page.Modified
	if modified.IsZero() {
		modified = s.now()
	}

	var published string
	if !page.Published.IsZero() {
		published = page.Published.Format("2006-01-02")
	}

	return domain.Document{
		URL:        url,
		Title:      title,
		Snippet:    snippet,
		Text:       text,
		SourceID:   page.ID,
		SourceType: page.Type,
		Published:  published,
		ModifiedTS: modified.Unix(),
		IsThin:     isThin,
	}, true
}

func (s *Service) documentFromURL(ctx context.Context, rawURL string, fetches *int, budget int) (domain.Document, bool) {
	url := s.origin.Normalize(rawURL)
	if url == "" || *fetches >= budget {
		return domain.Document{}, false
	}

	text := s.fetcher.RenderedText(ctx, url, indexDocMaxLen)
	*fetches++
	if IsThinText(text) {
		return domain.Document{}, false
	}

	return domain.Document{
		URL:        url,
		Title:      TitleFromURL(url),
		Snippet:    Substr(text, s.snippetLength()),
		Text:       text,
		ModifiedTS: s.now().Unix(),
		IsThin:     false,
	}, true
}

func (s *Service) snippetLength() int {
	if s.cfg.SnippetLength < 180 {
		return 180
	}
	return s.cfg.SnippetLength
}
