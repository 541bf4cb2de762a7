package query

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/ferg-cod3s/find-anything/internal/archive"
	"github.com/ferg-cod3s/find-anything/internal/observability"
	"github.com/ferg-cod3s/find-anything/internal/schema"
)

// Result is one search hit, expanded across every path sharing its
// underlying content hash.
type Result struct {
	Source     string   `json:"source"`
	Path       string   `json:"path"`
	LineNumber int      `json:"line_number"`
	Snippet    string   `json:"snippet"`
	Score      float64  `json:"score"`
	Aliases    []string `json:"aliases,omitempty"`
}

// Request is one /api/v1/search call, already validated for mode.
type Request struct {
	Query   string
	Mode    Mode
	Sources []string
	Limit   int
	Offset  int
}

// Response is the full result set for a Request.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
}

// Engine runs the candidate-generation + rescoring pipeline
// against a Registry of per-source stores and a shared chunk store.
type Engine struct {
	registry       *schema.Registry
	arch           *archive.Manager
	logger         *observability.Logger
	metrics        *observability.MetricsCollector
	overscan       int
	fuzzyThreshold float64
}

// NewEngine constructs an Engine. overscan and fuzzyThreshold come from
// config.QueryConfig (kept as plain values here so this package has no
// dependency on the config package). metrics may be nil.
func NewEngine(registry *schema.Registry, arch *archive.Manager, logger *observability.Logger, metrics *observability.MetricsCollector, overscan int, fuzzyThreshold float64) *Engine {
	return &Engine{registry: registry, arch: arch, logger: logger, metrics: metrics, overscan: overscan, fuzzyThreshold: fuzzyThreshold}
}

// Search executes req across every requested source (or every known
// source, if none given) in parallel, merges, and re-sorts by score.
func (e *Engine) Search(ctx context.Context, req Request) (Response, error) {
	started := time.Now()

	trigrams := Trigrams(req.Query)
	if len(trigrams) == 0 {
		if e.metrics != nil {
			e.metrics.RecordQuery(string(req.Mode), "rejected", time.Since(started), 0)
		}
		return Response{}, ErrQueryTooShort
	}

	var re *regexp.Regexp
	if req.Mode == ModeRegex {
		var err error
		re, err = CompileRegexMode(req.Query)
		if err != nil {
			if e.metrics != nil {
				e.metrics.RecordQuery(string(req.Mode), "rejected", time.Since(started), 0)
			}
			return Response{}, err
		}
	}

	sources := req.Sources
	if len(sources) == 0 {
		sources = e.registry.Names()
	}

	scoringLimit := req.Offset + req.Limit + e.overscan
	matchExpr := MatchExpression(trigrams)
	cache := NewChunkCache(e.arch)

	type sourceOutcome struct {
		results []Result
		err     error
	}
	outcomes := make([]sourceOutcome, len(sources))

	var wg sync.WaitGroup
	for i, name := range sources {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results, err := e.searchSource(name, req, matchExpr, scoringLimit, re, cache)
			outcomes[i] = sourceOutcome{results: results, err: err}
		}(i, name)
	}
	wg.Wait()

	var merged []Result
	for i, o := range outcomes {
		if o.err != nil {
			e.logger.Warn("source search failed", "source", sources[i], "error", o.err)
			continue
		}
		merged = append(merged, o.results...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.LineNumber < b.LineNumber
	})

	total := len(merged)
	if e.metrics != nil {
		e.metrics.RecordQuery(string(req.Mode), "ok", time.Since(started), total)
		e.metrics.RecordChunkCache(cache.Stats())
	}
	e.logger.LogSearchRequest(ctx, string(req.Mode), total, time.Since(started))

	if req.Offset >= total {
		return Response{Results: nil, Total: total}, nil
	}
	end := req.Offset + req.Limit
	if end > total {
		end = total
	}
	return Response{Results: merged[req.Offset:end], Total: total}, nil
}

// searchSource runs candidate generation and rescoring against one source.
func (e *Engine) searchSource(name string, req Request, matchExpr string, scoringLimit int, re *regexp.Regexp, cache *ChunkCache) ([]Result, error) {
	store, err := e.registry.GetExisting(name)
	if err != nil {
		return nil, err
	}

	candidates, err := schema.SearchCandidates(store.DB(), matchExpr, scoringLimit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	byFile := make(map[int64][]schema.CandidateLine)
	var fileOrder []int64
	for _, c := range candidates {
		if _, ok := byFile[c.FileID]; !ok {
			fileOrder = append(fileOrder, c.FileID)
		}
		byFile[c.FileID] = append(byFile[c.FileID], c)
	}

	var results []Result
	for _, fileID := range fileOrder {
		group := byFile[fileID]

		canonical, err := store.GetFileByID(fileID)
		if err != nil {
			e.logger.Warn("candidate file row missing", "source", name, "file_id", fileID, "error", err)
			continue
		}

		fullSet, err := equivalenceSet(store.DB(), canonical)
		if err != nil {
			e.logger.Warn("alias expansion failed", "source", name, "path", canonical.Path, "error", err)
			fullSet = []string{canonical.Path}
		}

		for _, c := range group {
			lineText, err := cache.Line(c.ChunkArchive, c.ChunkName, c.LineOffsetInChunk)
			if err != nil {
				e.logger.Warn("chunk unreadable, dropping candidate", "source", name, "archive", c.ChunkArchive, "chunk", c.ChunkName, "error", err)
				continue
			}

			score, ok := e.rescore(req, lineText, c.LineNumber, re)
			if !ok {
				continue
			}

			for _, path := range fullSet {
				results = append(results, Result{
					Source:     name,
					Path:       path,
					LineNumber: c.LineNumber,
					Snippet:    lineText,
					Score:      score,
					Aliases:    othersExcluding(fullSet, path),
				})
			}
		}
	}

	return results, nil
}

// rescore applies req.Mode's rescoring rule to one candidate line, returning its score and whether it survives.
func (e *Engine) rescore(req Request, lineText string, lineNumber int, re *regexp.Regexp) (float64, bool) {
	switch req.Mode {
	case ModeExact:
		return 1.0, ExactMatch(req.Query, lineText)
	case ModeRegex:
		return 1.0, re.MatchString(lineText)
	default:
		score := FuzzyScore(req.Query, lineText, lineNumber)
		return score, score >= e.fuzzyThreshold
	}
}
