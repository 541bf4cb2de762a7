// Package httpapi implements the HTTP surface of the server: bulk
// ingest, search, file/context retrieval, and the admin/stats endpoints.
// Handlers never touch SQL directly; they translate requests into calls
// against schema/query/inbox and translate errors back into status codes.
package httpapi

import (
	"github.com/ferg-cod3s/find-anything/internal/archive"
	"github.com/ferg-cod3s/find-anything/internal/inbox"
	"github.com/ferg-cod3s/find-anything/internal/observability"
	"github.com/ferg-cod3s/find-anything/internal/query"
	"github.com/ferg-cod3s/find-anything/internal/schema"
)

// Server holds every dependency the handlers need. It carries no HTTP
// framework state of its own; Routes builds a stdlib ServeMux from it.
type Server struct {
	registry *schema.Registry
	arch     *archive.Manager
	engine   *query.Engine
	worker   *inbox.Worker
	logger   *observability.Logger
}

// NewServer constructs a Server. The caller is responsible for wrapping the
// returned Routes() handler in the auth/CORS/rate-limit/security middleware
// chain. metrics and sentryEnabled configure the package-level error handler
// used by writeError to report 5xx failures; pass nil/false to disable.
func NewServer(registry *schema.Registry, arch *archive.Manager, engine *query.Engine, worker *inbox.Worker, logger *observability.Logger, metrics *observability.MetricsCollector, sentryEnabled bool) *Server {
	errorHandler = observability.NewErrorHandler(logger, metrics, sentryEnabled)
	return &Server{registry: registry, arch: arch, engine: engine, worker: worker, logger: logger}
}
