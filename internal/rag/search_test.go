package rag

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/asksite/internal/content"
	"github.com/kailas-cloud/asksite/internal/domain"
)

func TestRankSearchResultsProperties(t *testing.T) {
	terms := []string{"warranty", "returns"}
	results := []domain.SearchResult{
		{Title: "Warranty and Returns Policy", URL: "https://example.com/warranty/", Snippet: "warranty returns details"},
		{Title: "Warranty", URL: "https://example.com/warranty/", Snippet: "warranty only"},
		{Title: "Unrelated", URL: "https://example.com/coffee/", Snippet: "espresso machines"},
		{Title: "Tag Archive", URL: "https://example.com/tag/warranty/", Snippet: "warranty", TermHits: 1},
		{Title: "Returns FAQ", URL: "https://example.com/returns/", Snippet: "returns info", TermHits: 5},
	}

	ranked := RankSearchResults(results, terms, 3)

	if len(ranked) > 3 {
		t.Fatalf("got %d results, want <= 3", len(ranked))
	}

	seen := map[string]bool{}
	for i, r := range ranked {
		if r.TermHits < 1 {
			t.Errorf("result %d has termHits %d, want >= 1", i, r.TermHits)
		}
		if seen[r.URL] {
			t.Errorf("duplicate URL %q", r.URL)
		}
		seen[r.URL] = true
		if i > 0 && ranked[i-1].TermHits < r.TermHits {
			t.Errorf("results not sorted by hits: %d before %d", ranked[i-1].TermHits, r.TermHits)
		}
	}

	// Zero-hit entry must be gone.
	if seen["https://example.com/coffee/"] {
		t.Error("zero-hit result survived ranking")
	}

	// Duplicate URL keeps the higher score.
	for _, r := range ranked {
		if r.URL == "https://example.com/warranty/" && r.TermHits < 2 {
			t.Errorf("duplicate resolution kept lower score %d", r.TermHits)
		}
	}
}

func TestRankSearchResultsTitleTieBreak(t *testing.T) {
	terms := []string{"pricing"}
	results := []domain.SearchResult{
		{Title: "Plans", URL: "https://example.com/a/", Snippet: "pricing"},
		{Title: "Pricing Plans And Options", URL: "https://example.com/b/", Snippet: "pricing"},
	}

	ranked := RankSearchResults(results, terms, 2)
	if len(ranked) != 2 {
		t.Fatalf("got %d results, want 2", len(ranked))
	}
	if ranked[0].URL != "https://example.com/b/" {
		t.Errorf("tie-break should favor the longer title, got %q first", ranked[0].Title)
	}
}

func TestMergeSearchResults(t *testing.T) {
	primary := []domain.SearchResult{
		{URL: "https://example.com/a/", TermHits: 1},
		{URL: "https://example.com/b/", TermHits: 3},
	}
	fallback := []domain.SearchResult{
		{URL: "https://example.com/a/", TermHits: 5},
		{URL: "https://example.com/c/", TermHits: 2},
	}

	merged := MergeSearchResults(primary, fallback, 10)
	if len(merged) != 3 {
		t.Fatalf("got %d results, want 3", len(merged))
	}
	if merged[0].URL != "https://example.com/a/" || merged[0].TermHits != 5 {
		t.Errorf("first = %+v, want later duplicate with hits 5", merged[0])
	}
}

func TestNormalizeSameOriginURL(t *testing.T) {
	origin, err := NewOrigin("https://example.com")
	if err != nil {
		t.Fatalf("NewOrigin() error = %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/a//b/?x=1#y", "https://example.com/a/b/"},
		{"https://example.com/a/b", "https://example.com/a/b/"},
		{"https://example.com//a///b", "https://example.com/a/b/"},
		{"https://example.com", "https://example.com/"},
		{"https://example.com/sitemap.xml", "https://example.com/sitemap.xml"},
		{"https://other.com/a", ""},
		{"https://example.com:8443/a", ""},
		{"not a url at all ://", ""},
	}

	for _, tt := range tests {
		if got := origin.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsArchiveLikeURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/category/news/", true},
		{"https://example.com/tag/go/", true},
		{"https://example.com/author/jan/", true},
		{"https://example.com/blog/feed/", true},
		{"https://example.com/feed", true},
		{"https://example.com/pricing/", false},
		{"https://example.com/", false},
	}
	for _, tt := range tests {
		if got := IsArchiveLikeURL(tt.url); got != tt.want {
			t.Errorf("IsArchiveLikeURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestParseXMLLocs(t *testing.T) {
	origin, _ := NewOrigin("https://example.com")
	xml := `<?xml version="1.0"?>
	<urlset>
	  <url><loc>https://example.com/a/</loc></url>
	  <url><loc> https://example.com/b </loc></url>
	  <url><loc>https://example.com/a/</loc></url>
	  <url><loc>https://other.com/x/</loc></url>
	</urlset>`

	locs := ParseXMLLocs(xml, origin, 10)
	want := []string{"https://example.com/a/", "https://example.com/b/"}
	if len(locs) != len(want) {
		t.Fatalf("got %v, want %v", locs, want)
	}
	for i := range want {
		if locs[i] != want[i] {
			t.Errorf("locs[%d] = %q, want %q", i, locs[i], want[i])
		}
	}
}

func TestExtractReadableTextPrefersMain(t *testing.T) {
	html := `<html><head><style>.x{color:red}</style></head>
	<body>
	  <nav>Navigation links everywhere</nav>
	  <main><p>The actual article body about our services.</p></main>
	  <script>var x = 1;</script>
	</body></html>`

	got := ExtractReadableText(html, 500)
	if !strings.Contains(got, "actual article body") {
		t.Errorf("main content missing from %q", got)
	}
	if strings.Contains(got, "Navigation") || strings.Contains(got, "var x") {
		t.Errorf("noise leaked into %q", got)
	}
}

func TestSearchIndexScoring(t *testing.T) {
	now := time.Now()
	snaps := &fakeSnapshotStore{snapshot: &domain.IndexSnapshot{
		Version: 1,
		BuiltAt: now.Unix(),
		Documents: []domain.Document{
			{
				URL: "https://example.com/warranty/", Title: "Warranty Policy",
				Text: richText("warranty policy"), SourceType: "page",
				ModifiedTS: now.Unix(), Snippet: "warranty",
			},
			{
				URL: "https://example.com/tag/warranty/", Title: "Warranty Tag",
				Text: richText("warranty archive"), SourceType: "page",
				ModifiedTS: now.Unix(), Snippet: "warranty",
			},
			{
				URL: "https://example.com/coffee/", Title: "Coffee Corner",
				Text: richText("office coffee"), SourceType: "page",
				ModifiedTS: now.Unix(), Snippet: "coffee",
			},
		},
	}}
	svc := newTestService(t, &fakeContentStore{}, snaps)

	results := svc.SearchIndex(context.Background(), "warranty", 5, 0)
	if len(results) == 0 {
		t.Fatal("no results")
	}
	if results[0].URL != "https://example.com/warranty/" {
		t.Errorf("first result = %q, want the non-archive warranty page", results[0].URL)
	}
	for _, r := range results {
		if r.URL == "https://example.com/coffee/" {
			t.Error("unrelated page matched")
		}
	}
}

func TestRecentEntriesForcedScores(t *testing.T) {
	now := time.Now()
	cs := &fakeContentStore{pages: []content.Page{
		testPage(1, "release-two", "post", "Release Two", richText("second release"), now),
		testPage(2, "release-one", "post", "Release One", richText("first release"), now.Add(-time.Hour)),
	}}
	svc := newTestService(t, cs, &fakeSnapshotStore{})

	entries := svc.RecentEntries(context.Background(), 3, 300)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].TermHits != 100 || entries[1].TermHits != 99 {
		t.Errorf("forced scores = %d, %d; want 100, 99", entries[0].TermHits, entries[1].TermHits)
	}
	if !strings.HasPrefix(entries[0].Snippet, "Published: ") {
		t.Errorf("snippet %q missing publish date prefix", entries[0].Snippet)
	}
}
