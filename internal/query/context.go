package query

import "github.com/ferg-cod3s/find-anything/internal/schema"

// ContextResponse is the result of a context-window lookup.
type ContextResponse struct {
	StartLine  int
	MatchIndex *int
	Lines      []string
	FileKind   string
}

// GetContext resolves path within store and returns a window of
// surrounding lines around lineNumber, dispatching on file kind. An alias file has no lines of its own, so lookups are resolved
// to its canonical file's lines transparently.
func GetContext(store *schema.Store, cache *ChunkCache, path string, lineNumber, window int) (ContextResponse, error) {
	file, err := store.GetFileByPath(path)
	if err != nil {
		return ContextResponse{}, err
	}

	lookupID := file.ID
	if file.CanonicalFileID != nil {
		lookupID = *file.CanonicalFileID
	}

	switch file.Kind {
	case schema.KindImage, schema.KindAudio:
		return metadataContext(store, cache, lookupID, file.Kind)
	case schema.KindPDF:
		return pdfContext(store, cache, lookupID, lineNumber, window, file.Kind)
	default:
		return rangeContext(store, cache, lookupID, lineNumber, window, file.Kind)
	}
}

// metadataContext ignores the requested line number and returns every
// line_number=0 metadata row for kinds with no per-line content of their
// own.
func metadataContext(store *schema.Store, cache *ChunkCache, fileID int64, kind schema.FileKind) (ContextResponse, error) {
	rows, err := schema.LinesInRange(store.DB(), fileID, 0, 0)
	if err != nil {
		return ContextResponse{}, err
	}
	texts, _ := fetchTexts(cache, rows)
	return ContextResponse{StartLine: 0, MatchIndex: nil, Lines: texts, FileKind: string(kind)}, nil
}

// rangeContext returns a fixed-size line-number window [center-window,
// center+window].
func rangeContext(store *schema.Store, cache *ChunkCache, fileID int64, lineNumber, window int, kind schema.FileKind) (ContextResponse, error) {
	lo, hi := lineNumber-window, lineNumber+window
	rows, err := schema.LinesInRange(store.DB(), fileID, lo, hi)
	if err != nil {
		return ContextResponse{}, err
	}
	texts, _ := fetchTexts(cache, rows)

	start := lo
	if len(rows) > 0 {
		start = rows[0].LineNumber
	}
	var matchIndex *int
	for i, l := range rows {
		if l.LineNumber == lineNumber {
			idx := i
			matchIndex = &idx
			break
		}
	}
	return ContextResponse{StartLine: start, MatchIndex: matchIndex, Lines: texts, FileKind: string(kind)}, nil
}

// pdfContext returns a paragraph-aware window sized by a character budget
// of window*80 bytes on each side of the center line, rather than a fixed
// line count.
func pdfContext(store *schema.Store, cache *ChunkCache, fileID int64, lineNumber, window int, kind schema.FileKind) (ContextResponse, error) {
	allLines, err := schema.LinesForFile(store.DB(), fileID)
	if err != nil {
		return ContextResponse{}, err
	}
	if len(allLines) == 0 {
		return ContextResponse{FileKind: string(kind)}, nil
	}

	texts, _ := fetchTexts(cache, allLines)

	centerIdx := -1
	anchorIdx := 0
	for i, l := range allLines {
		if l.LineNumber == lineNumber {
			centerIdx = i
			anchorIdx = i
			break
		}
		if l.LineNumber < lineNumber {
			anchorIdx = i
		}
	}

	budget := window * 80
	lo, hi := anchorIdx, anchorIdx
	backBudget, fwdBudget := budget, budget
	for lo > 0 && backBudget > 0 {
		lo--
		backBudget -= len(texts[lo]) + 1
	}
	for hi < len(texts)-1 && fwdBudget > 0 {
		hi++
		fwdBudget -= len(texts[hi]) + 1
	}

	var matchIndex *int
	if centerIdx >= lo && centerIdx <= hi {
		idx := centerIdx - lo
		matchIndex = &idx
	}

	return ContextResponse{
		StartLine:  allLines[lo].LineNumber,
		MatchIndex: matchIndex,
		Lines:      texts[lo : hi+1],
		FileKind:   string(kind),
	}, nil
}

// fetchTexts resolves each line's text through cache, tolerating individual
// chunk read failures by substituting an empty string.
func fetchTexts(cache *ChunkCache, lines []schema.Line) ([]string, error) {
	out := make([]string, len(lines))
	for i, l := range lines {
		text, err := cache.Line(l.ChunkArchive, l.ChunkName, l.LineOffsetInChunk)
		if err != nil {
			out[i] = ""
			continue
		}
		out[i] = text
	}
	return out, nil
}
