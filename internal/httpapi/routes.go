package httpapi

import "net/http"

// Routes builds the API mux. Every path here still requires the bearer
// token middleware applied by the caller: there is no skip list.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/bulk", s.handleBulk)
	mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/file", s.handleFile)
	mux.HandleFunc("GET /api/v1/files", s.handleFiles)
	mux.HandleFunc("GET /api/v1/context", s.handleContext)
	mux.HandleFunc("POST /api/v1/context-batch", s.handleContextBatch)
	mux.HandleFunc("GET /api/v1/sources", s.handleSources)
	mux.HandleFunc("GET /api/v1/tree", s.handleTree)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/errors", s.handleErrors)
	mux.HandleFunc("GET /api/v1/admin/inbox", s.handleAdminInboxList)
	mux.HandleFunc("DELETE /api/v1/admin/inbox", s.handleAdminInboxClear)
	mux.HandleFunc("POST /api/v1/admin/inbox/retry", s.handleAdminInboxRetry)
	mux.HandleFunc("GET /api/v1/metrics", s.handleMetrics)

	return mux
}
