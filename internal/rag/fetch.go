package rag

import (
	"context"
	"html"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/asksite/internal/metrics"
)

const (
	fetchTimeout     = 12 * time.Second
	fetchBodyLimit   = 2 << 20
	sitemapBodyLimit = 1 << 20
)

var xmlLocRe = regexp.MustCompile(`(?i)<loc>\s*([^<\s]+)\s*</loc>`)

// Fetcher performs rate-limited, same-origin page and sitemap fetches for
// index building and thin-content recovery.
type Fetcher struct {
	origin  *Origin
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewFetcher builds a fetcher limited to ratePerSec outbound requests.
func NewFetcher(origin *Origin, ratePerSec int, log *zap.Logger) *Fetcher {
	if ratePerSec <= 0 {
		ratePerSec = 2
	}
	return &Fetcher{
		origin:  origin,
		client:  &http.Client{Timeout: fetchTimeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:     log,
	}
}

func (f *Fetcher) get(ctx context.Context, url, accept string, bodyLimit int64) (string, bool) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.LiveFetchesTotal.WithLabelValues("error").Inc()
		f.log.Debug("live fetch failed", zap.String("url", url), zap.Error(err))
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.LiveFetchesTotal.WithLabelValues("error").Inc()
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		metrics.LiveFetchesTotal.WithLabelValues("error").Inc()
		return "", false
	}

	metrics.LiveFetchesTotal.WithLabelValues("ok").Inc()
	return string(body), true
}

// RenderedText fetches a same-origin page and extracts readable text.
// Transport failures get one retry; everything else degrades to "".
func (f *Fetcher) RenderedText(ctx context.Context, rawURL string, maxLen int) string {
	url := f.origin.Normalize(rawURL)
	if url == "" {
		return ""
	}

	body, ok := f.get(ctx, url, "text/html", fetchBodyLimit)
	if !ok {
		if ctx.Err() != nil {
			return ""
		}
		body, ok = f.get(ctx, url, "text/html", fetchBodyLimit)
		if !ok {
			return ""
		}
	}
	if strings.TrimSpace(body) == "" {
		return ""
	}

	return ExtractReadableText(body, maxLen)
}

// ParseXMLLocs extracts normalized same-origin <loc> URLs from sitemap XML,
// deduplicated in document order.
func ParseXMLLocs(xml string, origin *Origin, maxItems int) []string {
	if strings.TrimSpace(xml) == "" {
		return nil
	}

	var urls []string
	seen := map[string]struct{}{}
	for _, m := range xmlLocRe.FindAllStringSubmatch(xml, -1) {
		url := origin.Normalize(html.UnescapeString(m[1]))
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
		if len(urls) >= maxItems {
			break
		}
	}
	return urls
}

// SitemapURLs crawls the site sitemap breadth-first, visiting at most
// maxSitemaps files and returning at most maxURLs page URLs.
func (f *Fetcher) SitemapURLs(ctx context.Context, maxSitemaps, maxURLs int) []string {
	if maxSitemaps <= 0 {
		maxSitemaps = 8
	}
	if maxURLs <= 0 {
		maxURLs = 50
	}

	root := f.origin.Normalize(f.origin.Home() + "wp-sitemap.xml")
	if root == "" {
		return nil
	}

	var urls []string
	urlSeen := map[string]struct{}{}
	queue := []string{root}
	visited := map[string]struct{}{}

	for len(queue) > 0 && len(visited) < maxSitemaps && len(urls) < maxURLs {
		sitemapURL := queue[0]
		queue = queue[1:]
		if _, done := visited[sitemapURL]; done {
			continue
		}
		visited[sitemapURL] = struct{}{}

		xml, ok := f.get(ctx, sitemapURL, "application/xml,text/xml", sitemapBodyLimit)
		if !ok {
			continue
		}

		for _, loc := range ParseXMLLocs(xml, f.origin, maxURLs*2) {
			// Nested sitemap files get queued, page URLs collected.
			if strings.EqualFold(path.Ext(urlPath(loc)), ".xml") {
				if _, done := visited[loc]; !done {
					queue = append(queue, loc)
				}
				continue
			}

			if _, dup := urlSeen[loc]; dup {
				continue
			}
			urlSeen[loc] = struct{}{}
			urls = append(urls, loc)
			if len(urls) >= maxURLs {
				break
			}
		}
	}

	return urls
}
