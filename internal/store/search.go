package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Search finds photos either by exact face identifier (the service issues
// UUID-shaped ids) or by case-insensitive name substring. Results are
// distinct and capped at limit.
//
// When an audit log is configured, each search and its result set is
// appended to it. An append failure is returned as the error, together with
// the already-computed hits: callers may still serve them, but a
// misconfigured audit sink should not go unnoticed.
func (s *Store) Search(query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if _, uuidErr := uuid.Parse(query); uuidErr == nil {
		rows, err = s.db.Query(`
			SELECT DISTINCT p.gallery, p.photo, f.name
			FROM photos p
			JOIN faces f ON f.id = p.face_id
			WHERE f.id = ?
			ORDER BY p.gallery, p.photo
			LIMIT ?`, query, limit)
	} else {
		rows, err = s.db.Query(`
			SELECT DISTINCT p.gallery, p.photo, f.name
			FROM photos p
			JOIN faces f ON f.id = p.face_id
			WHERE f.name LIKE ? ESCAPE '\' COLLATE NOCASE
			ORDER BY p.gallery, p.photo
			LIMIT ?`, "%"+escapeLike(query)+"%", limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search for %q: %w", query, err)
	}
	defer rows.Close()

	hits := make([]SearchHit, 0)
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.Gallery, &h.Photo, &h.Name); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search for %q: %w", query, err)
	}

	if s.auditLog != "" {
		if err := s.appendAudit(query, hits); err != nil {
			return hits, err
		}
	}
	return hits, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type auditRecord struct {
	Time    time.Time   `json:"time"`
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

func (s *Store) appendAudit(query string, hits []SearchHit) error {
	f, err := os.OpenFile(s.auditLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log %s: %w", s.auditLog, err)
	}
	defer f.Close()

	rec := auditRecord{Time: time.Now().UTC(), Query: query, Results: hits}
	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}
