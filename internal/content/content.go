// Package content defines the source-of-truth interface for site content.
// The chat pipeline never talks to a CMS directly; it goes through a Store
// so indexing and retrieval stay independent of where pages live.
package content

import (
	"context"
	"time"
)

// Page is one content entry as exposed by the backing CMS.
type Page struct {
	ID        int
	Slug      string
	Type      string // "page" or "post"
	Title     string
	URL       string
	Excerpt   string // rendered HTML
	Content   string // rendered HTML
	Published time.Time
	Modified  time.Time
}

// Store reads site content from the backing CMS.
type Store interface {
	// Search runs the CMS full-text search and returns matching pages.
	Search(ctx context.Context, query string, limit int) ([]Page, error)
	// Recent returns the most recently modified entries of the given type.
	Recent(ctx context.Context, postType string, limit int) ([]Page, error)
	// BySlug resolves a single entry by its slug, trying the given types in
	// order. Returns domain.ErrPageNotFound when no type matches.
	BySlug(ctx context.Context, slug string, types []string) (Page, error)
	// ByID resolves a single entry by numeric id across the given types.
	ByID(ctx context.Context, id int, types []string) (Page, error)
	// MenuURLs lists navigation-menu target URLs, used to seed the index
	// with the pages the site owner considers primary.
	MenuURLs(ctx context.Context) ([]string, error)
}
