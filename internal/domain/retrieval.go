package domain

// SearchResult is one ranked retrieval hit. TermHits is the primary ranking
// signal: term matches plus quality/recency boosts minus archive penalties.
type SearchResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	TermHits int    `json:"term_hits"`
}

// FaqPair is one Q/A pair parsed from the admin-supplied FAQ blob.
type FaqPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SupportSnippet substitutes for missing body content on thin pages.
type SupportSnippet struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// PageContext is the resolved page the visitor is currently looking at.
type PageContext struct {
	SourceID        int
	Title           string
	URL             string
	Content         string
	IsThin          bool
	FocusSnippet    string
	SupportSnippets []SupportSnippet
}

// Source is a cited page shown as a pill under the answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// RagContext is the per-turn retrieval output serialized into the prompt.
type RagContext struct {
	LatestMessage string
	QueryTerms    []string
	CurrentPage   *PageContext
	SearchResults []SearchResult
	FaqResults    []FaqPair
	Sources       []Source
}

// PageStatus describes how trustworthy a get_page payload is.
type PageStatus string

const (
	PageStatusFull            PageStatus = "full"
	PageStatusSupportEnriched PageStatus = "support_enriched"
	PageStatusThin            PageStatus = "thin"
)

// PagePayload is the get_page tool output.
type PagePayload struct {
	Page   PageContext
	Text   string
	IsThin bool
	Status PageStatus
}
