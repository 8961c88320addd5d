package results

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const createResultsTable = `
CREATE TABLE IF NOT EXISTS results (
    session_id      TEXT NOT NULL,
    player_id       INTEGER NOT NULL,
    name            TEXT NOT NULL,
    level           INTEGER NOT NULL,
    shuttle         INTEGER NOT NULL,
    distance_m      REAL NOT NULL,
    speed_kmh       REAL NOT NULL,
    peak_heart_rate INTEGER NOT NULL DEFAULT 0,
    result          TEXT NOT NULL,
    completed_at    DATETIME NOT NULL,
    PRIMARY KEY (session_id, player_id)
)`

// Compile-time interface satisfaction check.
var _ Sink = (*SQLiteStore)(nil)

// SQLiteStore keeps results of every session in one database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dbPath and creates the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createResultsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create results table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record inserts r. A player completes once per session, so a second row
// for the same session and player is ignored.
func (s *SQLiteStore) Record(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO results (
			session_id, player_id, name, level, shuttle, distance_m,
			speed_kmh, peak_heart_rate, result, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.PlayerID, r.Name, r.Level, r.Shuttle, r.DistanceMeters,
		r.SpeedKmh, r.PeakHeartRate, r.Text, r.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// ListSession returns the results of one session ordered by player id.
func (s *SQLiteStore) ListSession(ctx context.Context, sessionID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, player_id, name, level, shuttle, distance_m,
			speed_kmh, peak_heart_rate, result, completed_at
		FROM results WHERE session_id = ? ORDER BY player_id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.SessionID, &r.PlayerID, &r.Name, &r.Level, &r.Shuttle, &r.DistanceMeters,
			&r.SpeedKmh, &r.PeakHeartRate, &r.Text, &r.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

// Sessions returns every session id, most recent first.
func (s *SQLiteStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM results GROUP BY session_id ORDER BY MAX(completed_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
