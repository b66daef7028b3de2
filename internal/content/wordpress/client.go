// Package wordpress implements content.Store against the WordPress REST API
// (wp-json/wp/v2). Only the read-side endpoints are used.
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/asksite/internal/content"
	"github.com/kailas-cloud/asksite/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	// WP serializes *_gmt timestamps without a zone designator.
	wpTimeLayout = "2006-01-02T15:04:05"
)

// Client talks to a WordPress REST API.
type Client struct {
	apiURL string // e.g. https://example.com/wp-json/wp/v2
	types  []string
	http   *http.Client
}

// New creates a WordPress content store. apiURL is the wp/v2 root without a
// trailing slash; types lists the post types to expose, in priority order.
func New(apiURL string, types []string) *Client {
	if len(types) == 0 {
		types = []string{"page", "post"}
	}
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		types:  types,
		http:   &http.Client{Timeout: defaultTimeout},
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// entry mirrors the subset of the WP REST entity schema we consume.
type entry struct {
	ID          int      `json:"id"`
	Slug        string   `json:"slug"`
	Type        string   `json:"type"`
	Link        string   `json:"link"`
	DateGMT     string   `json:"date_gmt"`
	ModifiedGMT string   `json:"modified_gmt"`
	Title       rendered `json:"title"`
	Excerpt     rendered `json:"excerpt"`
	Content     rendered `json:"content"`
}

type rendered struct {
	Rendered string `json:"rendered"`
}

func (e entry) toPage(fallbackType string) content.Page {
	t := e.Type
	if t == "" {
		t = fallbackType
	}
	return content.Page{
		ID:        e.ID,
		Slug:      e.Slug,
		Type:      t,
		Title:     e.Title.Rendered,
		URL:       e.Link,
		Excerpt:   e.Excerpt.Rendered,
		Content:   e.Content.Rendered,
		Published: parseWPTime(e.DateGMT),
		Modified:  parseWPTime(e.ModifiedGMT),
	}
}

func parseWPTime(s string) time.Time {
	t, err := time.Parse(wpTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// restBase maps a post type to its REST collection path.
func restBase(postType string) string {
	switch postType {
	case "page":
		return "pages"
	case "post":
		return "posts"
	default:
		return postType
	}
}

func (c *Client) getEntries(ctx context.Context, path string, query url.Values) ([]entry, error) {
	u := c.apiURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build content request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content api %s: %w: %w", path, domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("content api %s: %w", path, domain.ErrPageNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content api %s: status %d: %w", path, resp.StatusCode, domain.ErrTransport)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read content response: %w", err)
	}

	// Collection endpoints return an array, item endpoints an object.
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	if strings.HasPrefix(trimmed, "{") {
		var e entry
		if err := json.Unmarshal(body, &e); err != nil {
			return nil, fmt.Errorf("decode content response: %w: %w", domain.ErrDecode, err)
		}
		return []entry{e}, nil
	}

	var entries []entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode content response: %w: %w", domain.ErrDecode, err)
	}
	return entries, nil
}

// Search queries every configured post type and merges the results, keeping
// type priority order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]content.Page, error) {
	if limit <= 0 {
		limit = 10
	}

	var pages []content.Page
	for _, t := range c.types {
		q := url.Values{}
		q.Set("search", query)
		q.Set("per_page", strconv.Itoa(limit))
		q.Set("orderby", "relevance")

		entries, err := c.getEntries(ctx, "/"+restBase(t), q)
		if err != nil {
			// A missing custom type must not sink the whole search.
			if strings.Contains(err.Error(), domain.ErrPageNotFound.Error()) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			pages = append(pages, e.toPage(t))
		}
	}
	return pages, nil
}

// Recent returns the most recently modified entries of postType.
func (c *Client) Recent(ctx context.Context, postType string, limit int) ([]content.Page, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("orderby", "modified")
	q.Set("order", "desc")

	entries, err := c.getEntries(ctx, "/"+restBase(postType), q)
	if err != nil {
		return nil, err
	}
	pages := make([]content.Page, 0, len(entries))
	for _, e := range entries {
		pages = append(pages, e.toPage(postType))
	}
	return pages, nil
}

// BySlug resolves slug against each type in order, returning the first match.
func (c *Client) BySlug(ctx context.Context, slug string, types []string) (content.Page, error) {
	if len(types) == 0 {
		types = c.types
	}
	for _, t := range types {
		q := url.Values{}
		q.Set("slug", slug)

		entries, err := c.getEntries(ctx, "/"+restBase(t), q)
		if err != nil {
			continue
		}
		if len(entries) > 0 {
			return entries[0].toPage(t), nil
		}
	}
	return content.Page{}, fmt.Errorf("slug %q: %w", slug, domain.ErrPageNotFound)
}

// ByID resolves a numeric id against each type in order.
func (c *Client) ByID(ctx context.Context, id int, types []string) (content.Page, error) {
	if len(types) == 0 {
		types = c.types
	}
	for _, t := range types {
		entries, err := c.getEntries(ctx, fmt.Sprintf("/%s/%d", restBase(t), id), nil)
		if err != nil {
			continue
		}
		if len(entries) > 0 {
			return entries[0].toPage(t), nil
		}
	}
	return content.Page{}, fmt.Errorf("id %d: %w", id, domain.ErrPageNotFound)
}

// menuItem is the subset of the wp/v2/menu-items schema we consume.
type menuItem struct {
	URL string `json:"url"`
}

// MenuURLs lists navigation targets. Menu endpoints frequently require
// authentication, so failures degrade to an empty list.
func (c *Client) MenuURLs(ctx context.Context) ([]string, error) {
	u := c.apiURL + "/menu-items?per_page=100"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build menu request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil //nolint:nilerr // menus are best effort
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var items []menuItem
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&items); err != nil {
		return nil, nil //nolint:nilerr
	}

	urls := make([]string, 0, len(items))
	for _, it := range items {
		if it.URL != "" {
			urls = append(urls, it.URL)
		}
	}
	return urls, nil
}
