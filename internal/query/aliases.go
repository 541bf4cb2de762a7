package query

import "github.com/ferg-cod3s/find-anything/internal/schema"

// equivalenceSet returns every path sharing canonical's content hash,
// including canonical's own path, for expanding one FTS candidate (always
// owned by a canonical file, since aliases carry no lines of their own)
// into one result per path.
func equivalenceSet(q schema.Queryer, canonical *schema.File) ([]string, error) {
	if canonical.ContentHash == nil || *canonical.ContentHash == "" {
		return []string{canonical.Path}, nil
	}
	// AliasPaths excludes only the literal excludePath; passing "" (never a
	// real path) returns every file sharing the hash, canonical included.
	return schema.AliasPaths(q, *canonical.ContentHash, "")
}

// othersExcluding returns paths with path removed, preserving order.
func othersExcluding(paths []string, path string) []string {
	if len(paths) <= 1 {
		return nil
	}
	out := make([]string, 0, len(paths)-1)
	for _, p := range paths {
		if p != path {
			out = append(out, p)
		}
	}
	return out
}
