package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed audit-trail store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id                 TEXT PRIMARY KEY,
		cycle_number       INTEGER NOT NULL,
		timestamp          DATETIME NOT NULL,
		patterns_found     INTEGER DEFAULT 0,
		hypotheses_found   INTEGER DEFAULT 0,
		should_act         INTEGER NOT NULL DEFAULT 0,
		selected_kind      TEXT,
		selected_target    TEXT,
		rationale          TEXT,
		nrv                REAL DEFAULT 0,
		z_score            REAL DEFAULT 0,
		risk_score         REAL DEFAULT 0,
		requires_approval  INTEGER NOT NULL DEFAULT 0,
		intervention_id    TEXT,
		explanation        TEXT,
		prev_hash          TEXT NOT NULL,
		hash               TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interventions (
		id               TEXT PRIMARY KEY,
		cycle_id         TEXT NOT NULL,
		kind             TEXT NOT NULL,
		target           TEXT NOT NULL,
		parameters       TEXT,
		executed_at      DATETIME NOT NULL,
		expires_at       DATETIME,
		rolled_back_at   DATETIME,
		success          INTEGER NOT NULL DEFAULT 0,
		error            TEXT
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		intervention_id  TEXT PRIMARY KEY,
		accuracy_score   REAL NOT NULL,
		success          INTEGER NOT NULL DEFAULT 0,
		learnings        TEXT,
		evaluated_at     DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_number ON cycles(cycle_number);
	CREATE INDEX IF NOT EXISTS idx_cycles_timestamp ON cycles(timestamp);
	CREATE INDEX IF NOT EXISTS idx_cycles_should_act ON cycles(should_act);
	CREATE INDEX IF NOT EXISTS idx_interventions_cycle ON interventions(cycle_id);
	CREATE INDEX IF NOT EXISTS idx_interventions_target ON interventions(target);
	CREATE INDEX IF NOT EXISTS idx_interventions_kind ON interventions(kind);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Cycles ---

func (s *SQLiteStore) InsertCycle(c *CycleRecord) error {
	_, err := s.db.Exec(`INSERT INTO cycles (id, cycle_number, timestamp, patterns_found, hypotheses_found,
		should_act, selected_kind, selected_target, rationale, nrv, z_score, risk_score,
		requires_approval, intervention_id, explanation, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CycleNumber, c.Timestamp, c.PatternsFound, c.HypothesesFound,
		c.ShouldAct, nullStr(c.SelectedKind), nullStr(c.SelectedTarget), c.Rationale,
		c.NRV, c.ZScore, c.RiskScore, c.RequiresApproval, nullStr(c.InterventionID),
		nullableJSON(c.Explanation), c.PrevHash, c.Hash,
	)
	return err
}

func (s *SQLiteStore) GetCycle(id string) (*CycleRecord, error) {
	c := &CycleRecord{}
	var selectedKind, selectedTarget, interventionID, explanation sql.NullString

	err := s.db.QueryRow(`SELECT id, cycle_number, timestamp, patterns_found, hypotheses_found,
		should_act, selected_kind, selected_target, rationale, nrv, z_score, risk_score,
		requires_approval, intervention_id, explanation, prev_hash, hash
		FROM cycles WHERE id = ?`, id).Scan(
		&c.ID, &c.CycleNumber, &c.Timestamp, &c.PatternsFound, &c.HypothesesFound,
		&c.ShouldAct, &selectedKind, &selectedTarget, &c.Rationale, &c.NRV, &c.ZScore,
		&c.RiskScore, &c.RequiresApproval, &interventionID, &explanation, &c.PrevHash, &c.Hash,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.SelectedKind = selectedKind.String
	c.SelectedTarget = selectedTarget.String
	c.InterventionID = interventionID.String
	c.Explanation = jsonOrNil(explanation)
	return c, nil
}

func (s *SQLiteStore) ListCycles(filter CycleFilter) ([]*CycleRecord, int, error) {
	where, args := buildCycleWhere(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cycles"+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, cycle_number, timestamp, patterns_found, hypotheses_found, should_act,
		selected_kind, selected_target, rationale, nrv, z_score, risk_score, requires_approval,
		intervention_id, hash FROM cycles` + where + " ORDER BY cycle_number DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var cycles []*CycleRecord
	for rows.Next() {
		c := &CycleRecord{}
		var selectedKind, selectedTarget, interventionID sql.NullString
		if err := rows.Scan(&c.ID, &c.CycleNumber, &c.Timestamp, &c.PatternsFound, &c.HypothesesFound,
			&c.ShouldAct, &selectedKind, &selectedTarget, &c.Rationale, &c.NRV, &c.ZScore,
			&c.RiskScore, &c.RequiresApproval, &interventionID, &c.Hash); err != nil {
			return nil, 0, err
		}
		c.SelectedKind = selectedKind.String
		c.SelectedTarget = selectedTarget.String
		c.InterventionID = interventionID.String
		cycles = append(cycles, c)
	}
	return cycles, count, nil
}

func (s *SQLiteStore) LatestCycle() (*CycleRecord, error) {
	c := &CycleRecord{}
	var selectedKind, selectedTarget, interventionID, explanation sql.NullString

	err := s.db.QueryRow(`SELECT id, cycle_number, timestamp, patterns_found, hypotheses_found,
		should_act, selected_kind, selected_target, rationale, nrv, z_score, risk_score,
		requires_approval, intervention_id, explanation, prev_hash, hash
		FROM cycles ORDER BY cycle_number DESC LIMIT 1`).Scan(
		&c.ID, &c.CycleNumber, &c.Timestamp, &c.PatternsFound, &c.HypothesesFound,
		&c.ShouldAct, &selectedKind, &selectedTarget, &c.Rationale, &c.NRV, &c.ZScore,
		&c.RiskScore, &c.RequiresApproval, &interventionID, &explanation, &c.PrevHash, &c.Hash,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.SelectedKind = selectedKind.String
	c.SelectedTarget = selectedTarget.String
	c.InterventionID = interventionID.String
	c.Explanation = jsonOrNil(explanation)
	return c, nil
}

// --- Interventions ---

func (s *SQLiteStore) InsertIntervention(i *InterventionRecord) error {
	_, err := s.db.Exec(`INSERT INTO interventions (id, cycle_id, kind, target, parameters,
		executed_at, expires_at, rolled_back_at, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.CycleID, i.Kind, i.Target, nullableJSON(i.Parameters),
		i.ExecutedAt, i.ExpiresAt, i.RolledBackAt, i.Success, nullStr(i.Error),
	)
	return err
}

func (s *SQLiteStore) GetIntervention(id string) (*InterventionRecord, error) {
	i := &InterventionRecord{}
	var parameters, errStr sql.NullString

	err := s.db.QueryRow(`SELECT id, cycle_id, kind, target, parameters, executed_at, expires_at,
		rolled_back_at, success, error FROM interventions WHERE id = ?`, id).Scan(
		&i.ID, &i.CycleID, &i.Kind, &i.Target, &parameters, &i.ExecutedAt, &i.ExpiresAt,
		&i.RolledBackAt, &i.Success, &errStr,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	i.Parameters = jsonOrNil(parameters)
	i.Error = errStr.String
	return i, nil
}

func (s *SQLiteStore) ListInterventions(filter InterventionFilter) ([]*InterventionRecord, int, error) {
	where, args := buildInterventionWhere(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM interventions"+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, cycle_id, kind, target, executed_at, expires_at, rolled_back_at, success, error
		FROM interventions` + where + " ORDER BY executed_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var interventions []*InterventionRecord
	for rows.Next() {
		i := &InterventionRecord{}
		var errStr sql.NullString
		if err := rows.Scan(&i.ID, &i.CycleID, &i.Kind, &i.Target, &i.ExecutedAt, &i.ExpiresAt,
			&i.RolledBackAt, &i.Success, &errStr); err != nil {
			return nil, 0, err
		}
		i.Error = errStr.String
		interventions = append(interventions, i)
	}
	return interventions, count, nil
}

func (s *SQLiteStore) MarkInterventionRolledBack(id string, rolledBackAt int64) error {
	t := time.UnixMilli(rolledBackAt)
	_, err := s.db.Exec("UPDATE interventions SET rolled_back_at = ? WHERE id = ?", t, id)
	return err
}

// --- Evaluations ---

func (s *SQLiteStore) InsertEvaluation(e *EvaluationRecord) error {
	_, err := s.db.Exec(`INSERT INTO evaluations (intervention_id, accuracy_score, success, learnings, evaluated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(intervention_id) DO UPDATE SET
			accuracy_score = excluded.accuracy_score,
			success = excluded.success,
			learnings = excluded.learnings,
			evaluated_at = excluded.evaluated_at`,
		e.InterventionID, e.AccuracyScore, e.Success, nullStr(e.Learnings), e.EvaluatedAt,
	)
	return err
}

func (s *SQLiteStore) GetEvaluation(interventionID string) (*EvaluationRecord, error) {
	e := &EvaluationRecord{}
	var learnings sql.NullString
	err := s.db.QueryRow(`SELECT intervention_id, accuracy_score, success, learnings, evaluated_at
		FROM evaluations WHERE intervention_id = ?`, interventionID).Scan(
		&e.InterventionID, &e.AccuracyScore, &e.Success, &learnings, &e.EvaluatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Learnings = learnings.String
	return e, nil
}

// --- Maintenance ---

func (s *SQLiteStore) PruneOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result, err := s.db.Exec("DELETE FROM cycles WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) VerifyHashChain() (bool, int, error) {
	rows, err := s.db.Query(`SELECT id, cycle_number, selected_kind, selected_target, rationale, prev_hash, hash
		FROM cycles ORDER BY cycle_number ASC`)
	if err != nil {
		return false, 0, err
	}
	defer rows.Close()

	var cycles []*CycleRecord
	for rows.Next() {
		c := &CycleRecord{}
		var selectedKind, selectedTarget sql.NullString
		if err := rows.Scan(&c.ID, &c.CycleNumber, &selectedKind, &selectedTarget, &c.Rationale, &c.PrevHash, &c.Hash); err != nil {
			return false, 0, err
		}
		c.SelectedKind = selectedKind.String
		c.SelectedTarget = selectedTarget.String
		cycles = append(cycles, c)
	}

	valid, brokenAt := VerifyChain(cycles)
	return valid, brokenAt, nil
}

// --- System Stats ---

func (s *SQLiteStore) GetSystemStats() (*SystemStats, error) {
	stats := &SystemStats{}
	s.db.QueryRow("SELECT COUNT(*) FROM cycles").Scan(&stats.TotalCycles)
	s.db.QueryRow("SELECT COUNT(*) FROM interventions").Scan(&stats.TotalInterventions)
	s.db.QueryRow("SELECT COALESCE(AVG(nrv), 0) FROM cycles WHERE should_act = 1").Scan(&stats.AvgNRV)
	s.db.QueryRow("SELECT COUNT(*) FROM evaluations").Scan(&stats.TotalEvaluations)

	if stats.TotalCycles > 0 {
		var acted int64
		s.db.QueryRow("SELECT COUNT(*) FROM cycles WHERE should_act = 1").Scan(&acted)
		stats.ActionRate = float64(acted) / float64(stats.TotalCycles)
	}
	if stats.TotalEvaluations > 0 {
		var successful int64
		s.db.QueryRow("SELECT COUNT(*) FROM evaluations WHERE success = 1").Scan(&successful)
		stats.SuccessRate = float64(successful) / float64(stats.TotalEvaluations)
	}

	return stats, nil
}

// --- Helpers ---

func buildCycleWhere(f CycleFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if f.ShouldActOnly {
		conditions = append(conditions, "should_act = 1")
	}
	if f.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *f.Since)
	}
	if f.Until != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *f.Until)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func buildInterventionWhere(f InterventionFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if f.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.Target != "" {
		conditions = append(conditions, "target = ?")
		args = append(args, f.Target)
	}
	if f.Since != nil {
		conditions = append(conditions, "executed_at >= ?")
		args = append(args, *f.Since)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableJSON(data json.RawMessage) sql.NullString {
	if data == nil || string(data) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
