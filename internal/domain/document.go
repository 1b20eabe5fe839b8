package domain

// Document represents one file in the collection, identified by filename.
type Document struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Chunk is a bounded slice of a document's text, the unit of retrieval.
// Chunks are immutable once created; updating a document means reindexing it.
type Chunk struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// SearchResult is a chunk together with its similarity score for a query.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// IndexStatus is the snapshot returned to status pollers.
type IndexStatus struct {
	IsIndexing bool   `json:"is_indexing"`
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	Message    string `json:"message"`
}
