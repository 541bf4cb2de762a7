package query

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ferg-cod3s/find-anything/internal/archive"
)

type chunkKey struct {
	archiveName string
	chunkName   string
}

// ChunkCache is a per-request cache of decompressed chunk text, keyed by
// (archive_name, chunk_name), so a request touching many results sharing a
// chunk reads it from the ZIP store once. It is safe for
// concurrent use by the per-source goroutines one Search call fans out to,
// since the chunk store is shared across all sources.
type ChunkCache struct {
	arch   *archive.Manager
	mu     sync.Mutex
	text   map[chunkKey]string
	hits   int
	misses int
}

// NewChunkCache creates a cache scoped to one request against arch.
func NewChunkCache(arch *archive.Manager) *ChunkCache {
	return &ChunkCache{arch: arch, text: make(map[chunkKey]string)}
}

// Text returns a chunk's full decompressed text, reading through arch on a
// cache miss.
func (c *ChunkCache) Text(archiveName, chunkName string) (string, error) {
	key := chunkKey{archiveName, chunkName}

	c.mu.Lock()
	if text, ok := c.text[key]; ok {
		c.hits++
		c.mu.Unlock()
		return text, nil
	}
	c.mu.Unlock()

	text, err := c.arch.ReadChunk(archiveName, chunkName)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.text[key] = text
	c.misses++
	c.mu.Unlock()
	return text, nil
}

// Stats returns the cache's hit/miss tallies for metrics reporting at
// request end.
func (c *ChunkCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Line returns one line's text within a chunk: the chunk text split on
// newline, indexed by line_offset_in_chunk.
func (c *ChunkCache) Line(archiveName, chunkName string, offset int) (string, error) {
	text, err := c.Text(archiveName, chunkName)
	if err != nil {
		return "", err
	}
	lines := strings.Split(text, "\n")
	if offset < 0 || offset >= len(lines) {
		return "", fmt.Errorf("line offset %d out of range for chunk %s/%s (%d lines)", offset, archiveName, chunkName, len(lines))
	}
	return lines[offset], nil
}
