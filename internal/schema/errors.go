package schema

import "errors"

// Error taxonomy kinds shared across the schema, inbox, and query packages.
// HTTP handlers classify these into status codes; see internal/httpapi/errors.go.
var (
	// ErrNotFound indicates an unknown source, path, or chunk reference.
	ErrNotFound = errors.New("not found")
	// ErrSchemaTooNew indicates the database's user_version exceeds the
	// compiled-in maximum; the operator must redeploy.
	ErrSchemaTooNew = errors.New("schema version too new")
	// ErrConstraint indicates a SQL constraint violation during a write.
	ErrConstraint = errors.New("constraint violation")
	// ErrChunkNotFound indicates a referenced chunk is missing from the
	// archive store.
	ErrChunkNotFound = errors.New("chunk not found")
	// ErrArchiveCorrupt indicates a ZIP archive's central directory could
	// not be read.
	ErrArchiveCorrupt = errors.New("archive corrupt")
)
