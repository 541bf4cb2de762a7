package inbox

// BulkRequest is the decoded body of one gzip-compressed bulk ingest
// request.
type BulkRequest struct {
	Source           string            `json:"source"`
	Files            []IndexFile       `json:"files"`
	DeletePaths      []string          `json:"delete_paths"`
	BaseURL          *string           `json:"base_url"`
	ScanTimestamp    *int64            `json:"scan_timestamp"`
	IndexingFailures []IndexingFailure `json:"indexing_failures"`
}

// IndexFile is one file's extracted content and metadata within a bulk
// request.
type IndexFile struct {
	Path        string        `json:"path"`
	Mtime       int64         `json:"mtime"`
	Size        int64         `json:"size"`
	Kind        string        `json:"kind"`
	ContentHash *string       `json:"content_hash"`
	ExtractMs   *int64        `json:"extract_ms"`
	Lines       []RequestLine `json:"lines"`
}

// RequestLine is one (line_number, content) pair submitted by the client.
type RequestLine struct {
	LineNumber int    `json:"line_number"`
	Content    string `json:"content"`
}

// IndexingFailure is a client-reported extraction failure for one path.
type IndexingFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}
