package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    variants TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'running',
    winner_variant TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_tests_state ON tests(state);

CREATE TABLE IF NOT EXISTS assignments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    test_name TEXT NOT NULL,
    variant TEXT NOT NULL,
    assigned_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_session_test
    ON assignments(session_id, test_name);
CREATE INDEX IF NOT EXISTS idx_assignments_test ON assignments(test_name, variant);

CREATE TABLE IF NOT EXISTS actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    action_type TEXT NOT NULL,
    action_value TEXT,
    score_impact INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_id, id);

CREATE TABLE IF NOT EXISTS page_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    element_id TEXT,
    test_name TEXT,
    variant TEXT,
    value REAL NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_page_events_test ON page_events(test_name, event_type, variant);
CREATE INDEX IF NOT EXISTS idx_page_events_session ON page_events(session_id);

CREATE TABLE IF NOT EXISTS lead_scores (
    session_id TEXT PRIMARY KEY,
    total_score INTEGER NOT NULL DEFAULT 0,
    engagement_score INTEGER NOT NULL DEFAULT 0,
    intent_score INTEGER NOT NULL DEFAULT 0,
    quality_score INTEGER NOT NULL DEFAULT 0,
    last_calculated INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS signups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT UNIQUE NOT NULL,
    session_id TEXT,
    source TEXT,
    business_email INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTest(ctx context.Context, name string, variants []Variant) (*Test, error) {
	variantsJSON, err := json.Marshal(variants)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variants: %w", err)
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tests (name, variants, state, created_at, updated_at)
		 VALUES (?, ?, 'running', ?, ?)`,
		name, string(variantsJSON), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert test: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &Test{
		ID:        id,
		Name:      name,
		Variants:  variants,
		State:     StateRunning,
		CreatedAt: time.Unix(now, 0),
		UpdatedAt: time.Unix(now, 0),
	}, nil
}

func (s *SQLiteStore) GetTest(ctx context.Context, name string) (*Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, variants, state, winner_variant, created_at, updated_at
		 FROM tests WHERE name = ?`, name,
	)
	return scanTest(row)
}

func (s *SQLiteStore) ListTests(ctx context.Context) ([]*Test, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, variants, state, winner_variant, created_at, updated_at
		 FROM tests ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	defer rows.Close()

	var tests []*Test
	for rows.Next() {
		test, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}

	return tests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(row rowScanner) (*Test, error) {
	var test Test
	var variantsJSON string
	var winnerVariant sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&test.ID, &test.Name, &variantsJSON, &test.State, &winnerVariant, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan test: %w", err)
	}

	if err := json.Unmarshal([]byte(variantsJSON), &test.Variants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
	}

	test.WinnerVariant = winnerVariant.String
	test.CreatedAt = time.Unix(createdAt, 0)
	test.UpdatedAt = time.Unix(updatedAt, 0)

	return &test, nil
}

func (s *SQLiteStore) UpdateTestState(ctx context.Context, name string, state TestState, winnerVariant string) error {
	now := time.Now().Unix()

	var result sql.Result
	var err error

	if winnerVariant != "" {
		result, err = s.db.ExecContext(ctx,
			`UPDATE tests SET state = ?, winner_variant = ?, updated_at = ? WHERE name = ?`,
			string(state), winnerVariant, now, name,
		)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE tests SET state = ?, updated_at = ? WHERE name = ?`,
			string(state), now, name,
		)
	}

	if err != nil {
		return fmt.Errorf("failed to update test state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteStore) DeleteTest(ctx context.Context, name string) error {
	// Drop derived rows first
	if _, err := s.db.ExecContext(ctx, `DELETE FROM assignments WHERE test_name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete assignments: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM page_events WHERE test_name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete page events: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tests WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteStore) GetAssignment(ctx context.Context, sessionID, testName string) (*Assignment, error) {
	var a Assignment
	var assignedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, test_name, variant, assigned_at
		 FROM assignments WHERE session_id = ? AND test_name = ?`,
		sessionID, testName,
	).Scan(&a.ID, &a.SessionID, &a.TestName, &a.Variant, &assignedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	a.AssignedAt = time.Unix(assignedAt, 0)
	return &a, nil
}

// GetOrCreateAssignment inserts an assignment, or returns the existing one if
// the session already has a variant for this test. The unique index on
// (session_id, test_name) makes concurrent first-time requests converge on a
// single row: losers of the race read back the winner's variant.
func (s *SQLiteStore) GetOrCreateAssignment(ctx context.Context, sessionID, testName, variant string) (*Assignment, bool, error) {
	now := time.Now().Unix()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (session_id, test_name, variant, assigned_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, test_name) DO NOTHING`,
		sessionID, testName, variant, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert assignment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	a, err := s.GetAssignment(ctx, sessionID, testName)
	if err != nil {
		return nil, false, err
	}

	return a, rowsAffected > 0, nil
}

func (s *SQLiteStore) RecordAction(ctx context.Context, a *Action) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO actions (session_id, action_type, action_value, score_impact, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.SessionID, a.ActionType, a.ActionValue, a.ScoreImpact, a.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}

	a.ID, _ = result.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetActions(ctx context.Context, sessionID string) ([]*Action, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, action_type, action_value, score_impact, created_at
		 FROM actions WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get actions: %w", err)
	}
	defer rows.Close()

	var actions []*Action
	for rows.Next() {
		var a Action
		var actionValue sql.NullString
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.SessionID, &a.ActionType, &actionValue, &a.ScoreImpact, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.ActionValue = actionValue.String
		a.CreatedAt = time.Unix(createdAt, 0)
		actions = append(actions, &a)
	}

	return actions, rows.Err()
}

func (s *SQLiteStore) RecordPageEvent(ctx context.Context, e *PageEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO page_events (session_id, event_type, element_id, test_name, variant, value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.EventType, e.ElementID, e.TestName, e.Variant, e.Value, e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record page event: %w", err)
	}

	e.ID, _ = result.LastInsertId()
	return nil
}

// GetVariantSamples returns (visitors, conversions) per variant. Visitors are
// distinct assigned sessions; conversions are distinct sessions with a
// conversion event for that variant.
func (s *SQLiteStore) GetVariantSamples(ctx context.Context, testName string) ([]VariantSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			a.variant,
			COUNT(DISTINCT a.session_id) AS visitors,
			COUNT(DISTINCT c.session_id) AS conversions
		FROM assignments a
		LEFT JOIN page_events c
			ON c.test_name = a.test_name
			AND c.variant = a.variant
			AND c.session_id = a.session_id
			AND c.event_type = 'conversion'
		WHERE a.test_name = ?
		GROUP BY a.variant
		ORDER BY a.variant
	`, testName)
	if err != nil {
		return nil, fmt.Errorf("failed to get variant samples: %w", err)
	}
	defer rows.Close()

	var samples []VariantSample
	for rows.Next() {
		var vs VariantSample
		if err := rows.Scan(&vs.Variant, &vs.Visitors, &vs.Conversions); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, vs)
	}

	return samples, rows.Err()
}

// GetAnalyticsSummary rolls up a test's traffic within the window. Sessions
// count everyone assigned to the test who recorded a lead action in the
// window, unioned with sessions that have page events for the test, so a
// visitor who never converts is still visible. Top elements merge the
// element-bearing lead actions of assigned sessions with page event
// element ids.
func (s *SQLiteStore) GetAnalyticsSummary(ctx context.Context, testName string, since time.Time) (*AnalyticsSummary, error) {
	summary := &AnalyticsSummary{TestName: testName}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT ac.session_id
			FROM actions ac
			JOIN assignments a ON a.session_id = ac.session_id
			WHERE a.test_name = ? AND ac.created_at >= ?
			UNION
			SELECT session_id FROM page_events
			WHERE test_name = ? AND created_at >= ?
		)
	`, testName, since.Unix(), testName, since.Unix()).Scan(&summary.Sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics summary: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT session_id)
		FROM page_events
		WHERE test_name = ? AND event_type = 'conversion' AND created_at >= ?
	`, testName, since.Unix()).Scan(&summary.Conversions)
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics summary: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT element, COUNT(*) AS hits FROM (
			SELECT ac.action_value AS element
			FROM actions ac
			JOIN assignments a ON a.session_id = ac.session_id
			WHERE a.test_name = ? AND ac.created_at >= ?
				AND ac.action_type IN ('cta_click', 'form_focus')
				AND ac.action_value != ''
			UNION ALL
			SELECT element_id FROM page_events
			WHERE test_name = ? AND created_at >= ? AND element_id != ''
		)
		GROUP BY element
		ORDER BY hits DESC
		LIMIT 10
	`, testName, since.Unix(), testName, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get top elements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ec ElementCount
		if err := rows.Scan(&ec.Element, &ec.Count); err != nil {
			return nil, fmt.Errorf("failed to scan element count: %w", err)
		}
		summary.TopElements = append(summary.TopElements, ec)
	}

	return summary, rows.Err()
}

func (s *SQLiteStore) UpsertLeadScore(ctx context.Context, score *LeadScore) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lead_scores (session_id, total_score, engagement_score, intent_score, quality_score, last_calculated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			total_score = excluded.total_score,
			engagement_score = excluded.engagement_score,
			intent_score = excluded.intent_score,
			quality_score = excluded.quality_score,
			last_calculated = excluded.last_calculated
	`, score.SessionID, score.TotalScore, score.EngagementScore, score.IntentScore, score.QualityScore, score.LastCalculated.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert lead score: %w", err)
	}

	return nil
}

func (s *SQLiteStore) GetLeadScore(ctx context.Context, sessionID string) (*LeadScore, error) {
	var score LeadScore
	var lastCalculated int64

	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, total_score, engagement_score, intent_score, quality_score, last_calculated
		 FROM lead_scores WHERE session_id = ?`, sessionID,
	).Scan(&score.SessionID, &score.TotalScore, &score.EngagementScore, &score.IntentScore, &score.QualityScore, &lastCalculated)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead score: %w", err)
	}

	score.LastCalculated = time.Unix(lastCalculated, 0)
	return &score, nil
}

// ListLeadScores returns scores ordered by total, highest first. A limit of
// zero applies the default of 100; a negative limit returns every row.
func (s *SQLiteStore) ListLeadScores(ctx context.Context, limit int) ([]*LeadScore, error) {
	if limit == 0 {
		limit = 100
	}

	// SQLite treats a negative LIMIT as unbounded
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, total_score, engagement_score, intent_score, quality_score, last_calculated
		 FROM lead_scores ORDER BY total_score DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead scores: %w", err)
	}
	defer rows.Close()

	var scores []*LeadScore
	for rows.Next() {
		var score LeadScore
		var lastCalculated int64
		if err := rows.Scan(&score.SessionID, &score.TotalScore, &score.EngagementScore, &score.IntentScore, &score.QualityScore, &lastCalculated); err != nil {
			return nil, fmt.Errorf("failed to scan lead score: %w", err)
		}
		score.LastCalculated = time.Unix(lastCalculated, 0)
		scores = append(scores, &score)
	}

	return scores, rows.Err()
}

func (s *SQLiteStore) CreateSignup(ctx context.Context, email, sessionID, source string, businessEmail bool) (*Signup, error) {
	now := time.Now().Unix()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO signups (email, session_id, source, business_email, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		email, sessionID, source, boolToInt(businessEmail), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert signup: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrDuplicate
	}

	id, _ := result.LastInsertId()
	return &Signup{
		ID:            id,
		Email:         email,
		SessionID:     sessionID,
		Source:        source,
		BusinessEmail: businessEmail,
		CreatedAt:     time.Unix(now, 0),
	}, nil
}

func (s *SQLiteStore) ListSignups(ctx context.Context) ([]*Signup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, session_id, source, business_email, created_at
		 FROM signups ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list signups: %w", err)
	}
	defer rows.Close()

	var signups []*Signup
	for rows.Next() {
		var sg Signup
		var sessionID, source sql.NullString
		var businessEmail int
		var createdAt int64
		if err := rows.Scan(&sg.ID, &sg.Email, &sessionID, &source, &businessEmail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan signup: %w", err)
		}
		sg.SessionID = sessionID.String
		sg.Source = source.String
		sg.BusinessEmail = businessEmail != 0
		sg.CreatedAt = time.Unix(createdAt, 0)
		signups = append(signups, &sg)
	}

	return signups, rows.Err()
}

func (s *SQLiteStore) CountSignups(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signups`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count signups: %w", err)
	}
	return count, nil
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
