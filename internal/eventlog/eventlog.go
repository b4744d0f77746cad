// Package eventlog persists emitted pointer and click messages to SQLite,
// grouped by session (one session per process run). The log feeds the HTTP
// API's recent-events queries and the offline report tool; writes from the
// frame loop are best-effort and never abort frame processing.
package eventlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection with event-log queries.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the event log at path and brings the
// schema up to date. Path ":memory:" yields an in-memory log for tests.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty
		// in-memory database.
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate event log: %w", err)
	}
	return db, nil
}

// Session is one process run's writer handle. It is used by the single
// pipeline goroutine only.
type Session struct {
	db      *DB
	ID      string
	started time.Time

	moveSeq  int64
	clickSeq int64
}

// BeginSession registers a new session and returns its writer handle.
func (db *DB) BeginSession(start time.Time) (*Session, error) {
	id := fmt.Sprintf("ses_%s", uuid.NewString())
	if _, err := db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
		id, start.UTC(),
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &Session{db: db, ID: id, started: start}, nil
}

// RecordMove inserts one emitted pointer observation.
func (s *Session) RecordMove(at time.Time, x, y float64) error {
	_, err := s.db.Exec(
		`INSERT INTO pointer_obs (session_id, seq, ts_unix_nanos, x, y) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.moveSeq, at.UnixNano(), x, y,
	)
	if err != nil {
		return fmt.Errorf("insert pointer obs: %w", err)
	}
	s.moveSeq++
	return nil
}

// RecordClick inserts one emitted click event.
func (s *Session) RecordClick(at time.Time, x, y, mouthRatio float64) error {
	_, err := s.db.Exec(
		`INSERT INTO click_events (session_id, seq, ts_unix_nanos, x, y, mouth_ratio) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.clickSeq, at.UnixNano(), x, y, mouthRatio,
	)
	if err != nil {
		return fmt.Errorf("insert click event: %w", err)
	}
	s.clickSeq++
	return nil
}

// ClickEvent is one persisted click.
type ClickEvent struct {
	SessionID  string    `json:"session_id"`
	Seq        int64     `json:"seq"`
	At         time.Time `json:"at"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	MouthRatio float64   `json:"mouth_ratio"`
}

// PointerObs is one persisted pointer observation.
type PointerObs struct {
	Seq int64     `json:"seq"`
	At  time.Time `json:"at"`
	X   float64   `json:"x"`
	Y   float64   `json:"y"`
}

// SessionInfo summarises one session for listings.
type SessionInfo struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Moves     int64     `json:"moves"`
	Clicks    int64     `json:"clicks"`
}

// RecentClicks returns the most recent click events across all sessions,
// newest first.
func (db *DB) RecentClicks(limit int) ([]ClickEvent, error) {
	rows, err := db.Query(
		`SELECT session_id, seq, ts_unix_nanos, x, y, mouth_ratio
		 FROM click_events ORDER BY ts_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent clicks: %w", err)
	}
	defer rows.Close()

	var out []ClickEvent
	for rows.Next() {
		var e ClickEvent
		var nanos int64
		if err := rows.Scan(&e.SessionID, &e.Seq, &nanos, &e.X, &e.Y, &e.MouthRatio); err != nil {
			return nil, fmt.Errorf("scan click event: %w", err)
		}
		e.At = time.Unix(0, nanos).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// SessionTrace returns a session's pointer observations in emission order,
// capped at limit rows.
func (db *DB) SessionTrace(sessionID string, limit int) ([]PointerObs, error) {
	rows, err := db.Query(
		`SELECT seq, ts_unix_nanos, x, y
		 FROM pointer_obs WHERE session_id = ? ORDER BY seq LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query session trace: %w", err)
	}
	defer rows.Close()

	var out []PointerObs
	for rows.Next() {
		var o PointerObs
		var nanos int64
		if err := rows.Scan(&o.Seq, &nanos, &o.X, &o.Y); err != nil {
			return nil, fmt.Errorf("scan pointer obs: %w", err)
		}
		o.At = time.Unix(0, nanos).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

// SessionClicks returns a session's click events in emission order.
func (db *DB) SessionClicks(sessionID string) ([]ClickEvent, error) {
	rows, err := db.Query(
		`SELECT session_id, seq, ts_unix_nanos, x, y, mouth_ratio
		 FROM click_events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session clicks: %w", err)
	}
	defer rows.Close()

	var out []ClickEvent
	for rows.Next() {
		var e ClickEvent
		var nanos int64
		if err := rows.Scan(&e.SessionID, &e.Seq, &nanos, &e.X, &e.Y, &e.MouthRatio); err != nil {
			return nil, fmt.Errorf("scan click event: %w", err)
		}
		e.At = time.Unix(0, nanos).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sessions lists recent sessions, newest first, with emission counts.
func (db *DB) Sessions(limit int) ([]SessionInfo, error) {
	rows, err := db.Query(
		`SELECT s.id, s.started_at,
		        (SELECT COUNT(*) FROM pointer_obs p WHERE p.session_id = s.id),
		        (SELECT COUNT(*) FROM click_events c WHERE c.session_id = s.id)
		 FROM sessions s ORDER BY s.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var s SessionInfo
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.Moves, &s.Clicks); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestSessionID returns the most recently started session, or sql.ErrNoRows
// when the log is empty.
func (db *DB) LatestSessionID() (string, error) {
	var id string
	err := db.QueryRow(`SELECT id FROM sessions ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// SessionSummary aggregates one session for reports.
type SessionSummary struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Moves     int64         `json:"moves"`
	Clicks    int64         `json:"clicks"`
	MeanRatio float64       `json:"mean_mouth_ratio"`
	MaxRatio  float64       `json:"max_mouth_ratio"`
}

// Summary aggregates a session's activity. Duration spans from the first to
// the last emitted observation.
func (db *DB) Summary(sessionID string) (SessionSummary, error) {
	var s SessionSummary
	s.ID = sessionID

	err := db.QueryRow(`SELECT started_at FROM sessions WHERE id = ?`, sessionID).Scan(&s.StartedAt)
	if err != nil {
		return s, fmt.Errorf("query session: %w", err)
	}

	var minNanos, maxNanos sql.NullInt64
	err = db.QueryRow(
		`SELECT MIN(ts_unix_nanos), MAX(ts_unix_nanos) FROM (
		   SELECT ts_unix_nanos FROM pointer_obs WHERE session_id = ?
		   UNION ALL
		   SELECT ts_unix_nanos FROM click_events WHERE session_id = ?
		 )`, sessionID, sessionID).Scan(&minNanos, &maxNanos)
	if err != nil {
		return s, fmt.Errorf("query session span: %w", err)
	}
	if minNanos.Valid && maxNanos.Valid {
		s.Duration = time.Duration(maxNanos.Int64 - minNanos.Int64)
	}

	err = db.QueryRow(`SELECT COUNT(*) FROM pointer_obs WHERE session_id = ?`, sessionID).Scan(&s.Moves)
	if err != nil {
		return s, fmt.Errorf("count moves: %w", err)
	}

	var mean, max sql.NullFloat64
	err = db.QueryRow(
		`SELECT COUNT(*), AVG(mouth_ratio), MAX(mouth_ratio)
		 FROM click_events WHERE session_id = ?`, sessionID).Scan(&s.Clicks, &mean, &max)
	if err != nil {
		return s, fmt.Errorf("aggregate clicks: %w", err)
	}
	s.MeanRatio = mean.Float64
	s.MaxRatio = max.Float64
	return s, nil
}

// PruneSessions deletes all but the `keep` most recent sessions, including
// their observations. Returns the number of sessions removed.
func (db *DB) PruneSessions(keep int) (int64, error) {
	res, err := db.Exec(
		`DELETE FROM sessions WHERE id NOT IN (
		   SELECT id FROM sessions ORDER BY started_at DESC LIMIT ?
		 )`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	// SQLite only honours ON DELETE CASCADE with foreign keys enabled, and
	// the driver leaves them off per connection. Sweep orphans explicitly.
	if _, err := db.Exec(`DELETE FROM pointer_obs WHERE session_id NOT IN (SELECT id FROM sessions)`); err != nil {
		return removed, fmt.Errorf("prune pointer obs: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM click_events WHERE session_id NOT IN (SELECT id FROM sessions)`); err != nil {
		return removed, fmt.Errorf("prune click events: %w", err)
	}
	return removed, nil
}
