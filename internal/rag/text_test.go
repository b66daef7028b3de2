package rag

import (
	"strings"
	"testing"
)

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    []string
		exclude []string
	}{
		{
			name:    "business hours question",
			query:   "What are your business hours?",
			want:    []string{"business", "hours"},
			exclude: []string{"what", "are", "your"},
		},
		{
			name:    "german stopwords dropped",
			query:   "Welche Produkte haben Sie im Angebot?",
			want:    []string{"produkte", "angebot"},
			exclude: []string{"welche", "haben", "sie"},
		},
		{
			name:  "duplicates collapse",
			query: "pricing pricing pricing",
			want:  []string{"pricing"},
		},
		{
			name:  "short words excluded",
			query: "is it ok to go",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QueryTerms(tt.query)

			for _, term := range got {
				if len([]rune(term)) < 3 {
					t.Errorf("term %q shorter than 3 runes", term)
				}
				if term != strings.ToLower(term) {
					t.Errorf("term %q not lowercase", term)
				}
			}

			gotSet := map[string]bool{}
			for _, term := range got {
				if gotSet[term] {
					t.Errorf("duplicate term %q", term)
				}
				gotSet[term] = true
			}

			for _, want := range tt.want {
				if !gotSet[want] {
					t.Errorf("QueryTerms(%q) = %v, missing %q", tt.query, got, want)
				}
			}
			for _, excl := range tt.exclude {
				if gotSet[excl] {
					t.Errorf("QueryTerms(%q) includes stopword %q", tt.query, excl)
				}
			}
			if tt.want == nil && len(got) != 0 {
				t.Errorf("QueryTerms(%q) = %v, want empty", tt.query, got)
			}
		})
	}
}

func TestIsThinText(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"-", true},
		{"n/a", true},
		{"coming soon", true},
		{"   <p>tbd</p>  ", true},
		{"short", true},
		{"This is a detailed page about our refund policy covering thirty-day returns and exchanges.", false},
	}

	for _, tt := range tests {
		if got := IsThinText(tt.text); got != tt.want {
			t.Errorf("IsThinText(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestFocusSnippetBounds(t *testing.T) {
	long := strings.Repeat("The warranty covers parts and labor. ", 100)

	tests := []struct {
		name   string
		text   string
		terms  []string
		maxLen int
	}{
		{"empty text", "", []string{"warranty"}, 300},
		{"no terms", long, nil, 120},
		{"matching terms", long, []string{"warranty"}, 200},
		{"no matching terms", long, []string{"zebra"}, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FocusSnippet(tt.text, tt.terms, tt.maxLen)
			if len([]rune(got)) > tt.maxLen {
				t.Errorf("len = %d, want <= %d", len([]rune(got)), tt.maxLen)
			}
			if tt.text == "" && got != "" {
				t.Errorf("empty text produced %q", got)
			}
		})
	}
}

func TestFocusSnippetPicksMatchingSentences(t *testing.T) {
	text := "We sell bicycles. Our shop opens at nine. Shipping is free over fifty euros. We love coffee."
	got := FocusSnippet(text, []string{"shipping"}, 400)

	if !strings.Contains(got, "Shipping is free") {
		t.Errorf("snippet %q does not contain the matching sentence", got)
	}
}

func TestCountTermHits(t *testing.T) {
	text := "Our Warranty covers all bikes and parts"
	if got := CountTermHits(text, []string{"warranty", "bikes", "zebra"}); got != 2 {
		t.Errorf("CountTermHits = %d, want 2", got)
	}
	if got := CountTermHits(text, nil); got != 0 {
		t.Errorf("CountTermHits with no terms = %d, want 0", got)
	}
}

func TestCleanTextStripsMarkup(t *testing.T) {
	got := CleanText("<p>Hello &amp; <b>world</b></p>\n\n  extra   spaces", 100)
	want := "Hello & world extra spaces"
	if got != want {
		t.Errorf("CleanText = %q, want %q", got, want)
	}
}

func TestSubstrRuneSafe(t *testing.T) {
	if got := Substr("über", 2); got != "üb" {
		t.Errorf("Substr = %q, want %q", got, "üb")
	}
	if got := Substr("abc", 10); got != "abc" {
		t.Errorf("Substr = %q, want %q", got, "abc")
	}
}

func TestTitleFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/", "Home"},
		{"https://example.com/pricing-and-plans/", "Pricing And Plans"},
		{"https://example.com/docs/getting_started", "Getting Started"},
	}
	for _, tt := range tests {
		if got := TitleFromURL(tt.url); got != tt.want {
			t.Errorf("TitleFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestIsRecentIntent(t *testing.T) {
	tests := []struct {
		name    string
		message string
		page    string
		want    bool
	}{
		{"latest blog post", "What is your latest blog post?", "", true},
		{"german recency", "Was sind die neuesten Beiträge?", "", true},
		{"recency without content cue", "What is the latest?", "", false},
		{"recency on blog page", "What is the latest?", "https://example.com/blog/", true},
		{"plain question", "What are your store hours?", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := pageForURL(tt.page)
			terms := QueryTerms(tt.message)
			if got := IsRecentIntent(tt.message, terms, page); got != tt.want {
				t.Errorf("IsRecentIntent(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}
