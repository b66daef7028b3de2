package rag

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// archiveFirstSegments mark taxonomy/listing URLs that are usually lower
// signal than singular content.
var archiveFirstSegments = map[string]struct{}{
	"category": {}, "tag": {}, "author": {}, "search": {}, "feed": {},
}

// Origin normalizes URLs against the site's own scheme/host/port. Anything
// cross-origin normalizes to the empty string.
type Origin struct {
	scheme       string
	host         string
	port         int
	explicitPort bool
}

// NewOrigin parses the site base URL into an Origin.
func NewOrigin(baseURL string) (*Origin, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse site base url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("site base url %q has no host", baseURL)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}

	return &Origin{
		scheme:       scheme,
		host:         strings.ToLower(u.Hostname()),
		port:         portOrDefault(u.Port(), scheme),
		explicitPort: u.Port() != "",
	}, nil
}

func portOrDefault(port, scheme string) int {
	if port != "" {
		var p int
		fmt.Sscanf(port, "%d", &p) //nolint:errcheck // zero on failure is fine
		return p
	}
	if scheme == "http" {
		return 80
	}
	return 443
}

// Home returns the normalized site root with trailing slash.
func (o *Origin) Home() string {
	return o.base() + "/"
}

func (o *Origin) base() string {
	hostPart := o.host
	if o.explicitPort {
		hostPart = fmt.Sprintf("%s:%d", o.host, o.port)
	}
	return o.scheme + "://" + hostPart
}

// Normalize canonicalizes rawURL to scheme+host+port+path, no query or
// fragment, trailing slash applied to extensionless paths. Cross-origin and
// unparseable URLs normalize to "".
func (o *Origin) Normalize(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = o.scheme
	}

	if strings.ToLower(u.Hostname()) != o.host {
		return ""
	}
	if portOrDefault(u.Port(), scheme) != o.port {
		return ""
	}

	p := collapseSlashes(u.EscapedPath())
	if p == "" {
		p = "/"
	}

	normalized := o.base() + p
	if !strings.HasSuffix(normalized, "/") && path.Ext(p) == "" {
		normalized += "/"
	}
	return normalized
}

// collapseSlashes squashes runs of "/" so /a//b and /a/b canonicalize to
// the same document key.
func collapseSlashes(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// SameHost reports whether rawURL points at the site's host.
func (o *Origin) SameHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return strings.ToLower(u.Hostname()) == o.host
}

// IsArchiveLikeURL identifies archive-like URLs (taxonomy, tag, author,
// feed listings).
func IsArchiveLikeURL(rawURL string) bool {
	p := strings.Trim(strings.ToLower(urlPath(rawURL)), "/")
	if p == "" {
		return false
	}

	first := p
	if i := strings.Index(p, "/"); i >= 0 {
		first = p[:i]
	}
	if _, ok := archiveFirstSegments[first]; ok {
		return true
	}

	return strings.Contains(p, "/feed/") || strings.HasSuffix(p, "/feed")
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}
