package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Category string `json:"category"`
	AuthorID string `json:"userId"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterCategory string // empty = all categories
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// PostRecord is the data we index for a post. Body carries the plain text
// extracted from the rich content, never the serialized form.
type PostRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
	AuthorID string `json:"userId"`
}
