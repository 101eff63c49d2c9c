package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ernie/pitchside/internal/domain"
)

// ErrNotFound is returned when a looked-up row does not exist
var ErrNotFound = errors.New("not found")

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string
// The Z suffix ensures the Go sqlite driver parses it back as UTC
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

//go:embed schema.sql
var schema string

// Store provides database access
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Player methods ---

// PlayerJoined upserts the player and opens a play session. Sessions left
// open by a previous crash are closed at their last-seen time first.
func (s *Store) PlayerJoined(ctx context.Context, uuid, name string, at time.Time) (*domain.PlayerRecord, *domain.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	ts := formatTimestamp(at)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO players (uuid, name, clean_name, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			name = excluded.name,
			clean_name = excluded.clean_name
	`, uuid, name, domain.CleanName(name), ts, ts)
	if err != nil {
		return nil, nil, fmt.Errorf("upserting player: %w", err)
	}

	var playerID int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM players WHERE uuid = ?", uuid).Scan(&playerID); err != nil {
		return nil, nil, err
	}

	// Close stale sessions at the player's last-seen time
	_, err = tx.ExecContext(ctx, `
		UPDATE sessions SET
			left_at = (SELECT last_seen FROM players WHERE id = ?),
			duration_seconds = MAX(0, CAST(ROUND((julianday((SELECT last_seen FROM players WHERE id = ?)) - julianday(joined_at)) * 86400) AS INTEGER))
		WHERE player_id = ? AND left_at IS NULL
	`, playerID, playerID, playerID)
	if err != nil {
		return nil, nil, fmt.Errorf("closing stale sessions: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE players SET last_seen = ? WHERE id = ?", ts, playerID); err != nil {
		return nil, nil, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (player_id, joined_at) VALUES (?, ?)
	`, playerID, ts)
	if err != nil {
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}
	sess := &domain.Session{PlayerID: playerID, JoinedAt: at.UTC().Truncate(time.Second)}
	sess.ID, _ = result.LastInsertId()

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	player, err := s.GetPlayerByUUID(ctx, uuid)
	if err != nil {
		return nil, nil, err
	}
	return player, sess, nil
}

// PlayerLeft closes the player's open session (no-op if none is open)
func (s *Store) PlayerLeft(ctx context.Context, uuid string, at time.Time) error {
	ts := formatTimestamp(at)
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			left_at = ?,
			duration_seconds = MAX(0, CAST(ROUND((julianday(?) - julianday(joined_at)) * 86400) AS INTEGER))
		WHERE left_at IS NULL AND player_id = (SELECT id FROM players WHERE uuid = ?)
	`, ts, ts, uuid)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "UPDATE players SET last_seen = ? WHERE uuid = ?", ts, uuid)
	return err
}

// EndOpenSessions closes every open session, used on startup and shutdown
func (s *Store) EndOpenSessions(ctx context.Context, at time.Time) (int64, error) {
	ts := formatTimestamp(at)
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			left_at = ?,
			duration_seconds = MAX(0, CAST(ROUND((julianday(?) - julianday(joined_at)) * 86400) AS INTEGER))
		WHERE left_at IS NULL
	`, ts, ts)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const playerColumns = `
	p.id, p.uuid, p.name, p.first_seen, p.last_seen, p.mention_sound,
	COALESCE((SELECT SUM(
		CASE WHEN s.left_at IS NULL
			THEN MAX(0, CAST(ROUND((julianday(?) - julianday(s.joined_at)) * 86400) AS INTEGER))
			ELSE s.duration_seconds END)
		FROM sessions s WHERE s.player_id = p.id), 0)`

// GetPlayerByUUID returns a player with their total playtime
func (s *Store) GetPlayerByUUID(ctx context.Context, uuid string) (*domain.PlayerRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players p WHERE p.uuid = ?`,
		formatTimestamp(s.now()), uuid)
	return scanPlayer(row)
}

// GetPlayerByName looks a player up by name, ignoring case and colour codes
func (s *Store) GetPlayerByName(ctx context.Context, name string) (*domain.PlayerRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players p WHERE p.clean_name = ? ORDER BY p.last_seen DESC LIMIT 1`,
		formatTimestamp(s.now()), domain.CleanName(name))
	return scanPlayer(row)
}

// --- Settings ---

// MentionSound reports whether the player wants a sound on mention.
// Unknown players get the default (true).
func (s *Store) MentionSound(ctx context.Context, uuid string) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx, "SELECT mention_sound FROM players WHERE uuid = ?", uuid).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	return enabled, err
}

// ToggleMentionSound flips the mention sound setting and returns the new value
func (s *Store) ToggleMentionSound(ctx context.Context, uuid string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "UPDATE players SET mention_sound = NOT mention_sound WHERE uuid = ?", uuid)
	if err != nil {
		return false, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, fmt.Errorf("player %s: %w", uuid, ErrNotFound)
	}
	return s.MentionSound(ctx, uuid)
}

// --- Playtime ---

// Playtime returns total seconds played, counting open sessions up to now
func (s *Store) Playtime(ctx context.Context, uuid string) (int64, error) {
	p, err := s.GetPlayerByUUID(ctx, uuid)
	if err != nil {
		return 0, err
	}
	return p.TotalPlaytimeSeconds, nil
}

// TopPlaytime returns a page of the playtime leaderboard and the number of ranked players
func (s *Store) TopPlaytime(ctx context.Context, limit, offset int) ([]domain.PlaytimeEntry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT player_id) FROM sessions").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.uuid, p.name, SUM(
			CASE WHEN s.left_at IS NULL
				THEN MAX(0, CAST(ROUND((julianday(?) - julianday(s.joined_at)) * 86400) AS INTEGER))
				ELSE s.duration_seconds END) AS seconds
		FROM sessions s
		JOIN players p ON p.id = s.player_id
		GROUP BY p.id
		ORDER BY seconds DESC, p.clean_name ASC
		LIMIT ? OFFSET ?
	`, formatTimestamp(s.now()), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.PlaytimeEntry
	rank := offset
	for rows.Next() {
		var e domain.PlaytimeEntry
		if err := rows.Scan(&e.UUID, &e.Name, &e.Seconds); err != nil {
			return nil, 0, err
		}
		rank++
		e.Rank = rank
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// --- Match results ---

// RecordMatchResult stores a finished match
func (s *Store) RecordMatchResult(ctx context.Context, r domain.MatchResult) (int64, error) {
	started := r.StartedAt
	if started.IsZero() {
		started = r.EndedAt
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO match_results (home, away, home_score, away_score, reason, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.Home, r.Away, r.HomeScore, r.AwayScore, r.Reason, formatTimestamp(started), formatTimestamp(r.EndedAt))
	if err != nil {
		return 0, fmt.Errorf("recording match: %w", err)
	}
	return result.LastInsertId()
}

// RecentMatchResults returns the most recently finished matches
func (s *Store) RecentMatchResults(ctx context.Context, limit int) ([]domain.MatchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, home, away, home_score, away_score, reason, started_at, ended_at
		FROM match_results
		ORDER BY ended_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.MatchResult
	for rows.Next() {
		r, err := scanMatchResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}
