package incidents

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists incidents to SQLite and answers similarity queries
// by scanning the table and scoring in Go — the feature vectors are small
// (single digits of dimensions) and incident volume is bounded, so this
// trades a little CPU for not needing a vector extension.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed incident
// store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Initialize creates the incidents table if it doesn't already exist.
func (s *SQLiteStore) Initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS incidents (
		id           TEXT PRIMARY KEY,
		dimension    TEXT NOT NULL,
		pattern_kind TEXT NOT NULL,
		signature    TEXT NOT NULL,
		resolution   TEXT,
		outcome      TEXT,
		occurred_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_incidents_pattern ON incidents(pattern_kind);
	`)
	return err
}

func (s *SQLiteStore) Record(i Incident) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	sig, err := json.Marshal(i.Signature)
	if err != nil {
		return fmt.Errorf("incidents: marshal signature: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO incidents (id, dimension, pattern_kind, signature, resolution, outcome, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.Dimension, i.PatternKind, string(sig), i.Resolution, i.Outcome, i.OccurredAt,
	)
	return err
}

func (s *SQLiteStore) SimilarIncidents(signature []float64, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}

	rows, err := s.db.Query(`SELECT id, dimension, pattern_kind, signature, resolution, outcome, occurred_at FROM incidents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var inc Incident
		var sig string
		if err := rows.Scan(&inc.ID, &inc.Dimension, &inc.PatternKind, &sig, &inc.Resolution, &inc.Outcome, &inc.OccurredAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sig), &inc.Signature); err != nil {
			return nil, fmt.Errorf("incidents: unmarshal signature for %s: %w", inc.ID, err)
		}

		sim := cosineSimilarity(signature, inc.Signature)
		if sim <= 0 {
			continue
		}
		matches = append(matches, Match{Incident: inc, Similarity: sim})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
