package domain

import "time"

// Document is one entry of the site content index. URL is same-origin
// normalized and unique within a snapshot.
type Document struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	Text       string `json:"text"`
	SourceID   int    `json:"source_id,omitempty"`
	SourceType string `json:"source_type,omitempty"`
	Published  string `json:"published,omitempty"`
	ModifiedTS int64  `json:"modified_ts"`
	IsThin     bool   `json:"is_thin"`
}

// IndexSnapshot is the cached, bounded, recency-ordered view of the site.
type IndexSnapshot struct {
	Version   int        `json:"version"`
	BuiltAt   int64      `json:"built_at"`
	Documents []Document `json:"documents"`
}

// Age returns how long ago the snapshot was built.
func (s *IndexSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(s.BuiltAt, 0))
}

// Empty reports whether the snapshot holds no documents.
func (s *IndexSnapshot) Empty() bool {
	return s == nil || len(s.Documents) == 0
}
