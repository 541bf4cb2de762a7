package schema

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// UpsertIndexingError records (or bumps the count/last_seen of) a per-path
// indexing failure reported in a bulk request.
func UpsertIndexingError(tx *sql.Tx, path, errMsg string, seenAt int64) error {
	_, err := tx.Exec(`
		INSERT INTO indexing_errors (path, error, first_seen, last_seen, count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(path) DO UPDATE SET
			error = excluded.error,
			last_seen = excluded.last_seen,
			count = count + 1`,
		path, errMsg, seenAt, seenAt,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert indexing error for %s: %v", ErrConstraint, path, err)
	}
	return nil
}

// ClearIndexingError removes a path's recorded error once it indexes
// successfully, so /api/v1/errors only ever reflects the current failure
// set.
func ClearIndexingError(tx *sql.Tx, path string) error {
	if _, err := tx.Exec(`DELETE FROM indexing_errors WHERE path = ?`, path); err != nil {
		return fmt.Errorf("clear indexing error for %s: %w", path, err)
	}
	return nil
}

// ListIndexingErrors returns every recorded indexing error, most recently
// seen first.
func ListIndexingErrors(q Queryer) ([]IndexingError, error) {
	rows, err := q.Query(`SELECT id, path, error, first_seen, last_seen, count FROM indexing_errors ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("query indexing errors: %w", err)
	}
	defer rows.Close()

	var out []IndexingError
	for rows.Next() {
		var e IndexingError
		var firstSeen, lastSeen int64
		if err := rows.Scan(&e.ID, &e.Path, &e.Error, &firstSeen, &lastSeen, &e.Count); err != nil {
			return nil, fmt.Errorf("scan indexing error: %w", err)
		}
		e.FirstSeen = unixToTime(firstSeen)
		e.LastSeen = unixToTime(lastSeen)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendScanHistory records a completed client scan's summary.
func AppendScanHistory(tx *sql.Tx, p ScanHistoryPoint) error {
	byKind, err := json.Marshal(p.ByKind)
	if err != nil {
		return fmt.Errorf("marshal by_kind: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO scan_history (scanned_at, total_files, total_size, by_kind)
		VALUES (?, ?, ?, ?)`,
		p.ScannedAt.Unix(), p.TotalFiles, p.TotalSize, string(byKind),
	)
	if err != nil {
		return fmt.Errorf("append scan history: %w", err)
	}
	return nil
}

// ScanHistory returns the most recent scan points, newest first, capped at
// limit.
func ScanHistory(q Queryer, limit int) ([]ScanHistoryPoint, error) {
	rows, err := q.Query(`
		SELECT id, scanned_at, total_files, total_size, by_kind
		FROM scan_history ORDER BY scanned_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scan history: %w", err)
	}
	defer rows.Close()

	var out []ScanHistoryPoint
	for rows.Next() {
		var p ScanHistoryPoint
		var scannedAt int64
		var byKind sql.NullString
		if err := rows.Scan(&p.ID, &scannedAt, &p.TotalFiles, &p.TotalSize, &byKind); err != nil {
			return nil, fmt.Errorf("scan scan_history row: %w", err)
		}
		p.ScannedAt = unixToTime(scannedAt)
		if byKind.Valid {
			if err := json.Unmarshal([]byte(byKind.String), &p.ByKind); err != nil {
				return nil, fmt.Errorf("unmarshal by_kind: %w", err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
