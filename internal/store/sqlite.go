package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs
// migrations. dbPath may be ":memory:" for tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			verifier TEXT NOT NULL,
			rate INTEGER NOT NULL DEFAULT 1500,
			match_history TEXT NOT NULL DEFAULT '[]',
			memos TEXT NOT NULL DEFAULT '',
			battle_records TEXT NOT NULL DEFAULT '',
			registered_decks TEXT NOT NULL DEFAULT '',
			current_match_id TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_login_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			p1 TEXT NOT NULL REFERENCES users(id),
			p2 TEXT NOT NULL REFERENCES users(id),
			p1_report TEXT,
			p2_report TEXT,
			resolved_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_rate ON users(rate)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*User, error) {
	var u User
	var historyJSON string
	err := row.Scan(
		&u.ID, &u.Name, &u.Verifier, &u.Rate, &historyJSON,
		&u.Memos, &u.BattleRecords, &u.RegisteredDecks,
		&u.CurrentMatchID, &u.CreatedAt, &u.LastLoginAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(historyJSON), &u.MatchHistory); err != nil {
		return nil, fmt.Errorf("decode match history: %w", err)
	}
	return &u, nil
}

const userColumns = `id, name, verifier, rate, match_history, memos, battle_records, registered_decks, current_match_id, created_at, last_login_at`

// FetchUser retrieves a user by id.
func (s *SQLiteStore) FetchUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// FetchUserByName retrieves a user by their (unique) login name.
func (s *SQLiteStore) FetchUserByName(ctx context.Context, name string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE name = ?`, name)
	return scanUser(row)
}

// InsertUser creates a new user with default rating and empty blobs.
func (s *SQLiteStore) InsertUser(ctx context.Context, id, name, verifier string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, verifier, rate, match_history, memos, battle_records, registered_decks)
		 VALUES (?, ?, ?, 1500, '[]', '', '', '')`,
		id, name, verifier,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("username %q already taken: %w", name, ErrUniqueViolation)
	}
	return err
}

// PatchUser applies a partial update. Fields left nil in patch are
// untouched.
func (s *SQLiteStore) PatchUser(ctx context.Context, id string, patch UserPatch) error {
	sets := []string{}
	args := []any{}

	if patch.Rate != nil {
		sets = append(sets, "rate = ?")
		args = append(args, *patch.Rate)
	}
	if patch.MatchHistory != nil {
		b, err := json.Marshal(*patch.MatchHistory)
		if err != nil {
			return fmt.Errorf("encode match history: %w", err)
		}
		sets = append(sets, "match_history = ?")
		args = append(args, string(b))
	}
	if patch.Memos != nil {
		sets = append(sets, "memos = ?")
		args = append(args, *patch.Memos)
	}
	if patch.BattleRecords != nil {
		sets = append(sets, "battle_records = ?")
		args = append(args, *patch.BattleRecords)
	}
	if patch.RegisteredDecks != nil {
		sets = append(sets, "registered_decks = ?")
		args = append(args, *patch.RegisteredDecks)
	}
	if patch.CurrentMatchID != nil {
		sets = append(sets, "current_match_id = ?")
		if *patch.CurrentMatchID == "" {
			args = append(args, nil)
		} else {
			args = append(args, *patch.CurrentMatchID)
		}
	}
	if patch.Username != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Username)
	}

	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE users SET " + joinComma(sets) + " WHERE id = ?"
	args = append(args, id)
	_, err := s.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("username already taken: %w", ErrUniqueViolation)
	}
	return err
}

// TouchLogin stamps the user's last-login timestamp.
func (s *SQLiteStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at, id)
	return err
}

// InsertMatch creates a match row with both reports null.
func (s *SQLiteStore) InsertMatch(ctx context.Context, id, p1, p2 string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO matches (id, p1, p2) VALUES (?, ?, ?)`, id, p1, p2)
	return err
}

// FetchMatch retrieves a match by id.
func (s *SQLiteStore) FetchMatch(ctx context.Context, id string) (*Match, error) {
	var m Match
	err := s.db.QueryRowContext(ctx,
		`SELECT id, p1, p2, p1_report, p2_report, resolved_at, created_at FROM matches WHERE id = ?`, id,
	).Scan(&m.ID, &m.P1, &m.P2, &m.P1Report, &m.P2Report, &m.ResolvedAt, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// PatchMatchReport writes slot's report only if it is currently null.
func (s *SQLiteStore) PatchMatchReport(ctx context.Context, id string, slot int, value string) (bool, error) {
	col := "p1_report"
	if slot == 2 {
		col = "p2_report"
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET `+col+` = ? WHERE id = ? AND `+col+` IS NULL`, value, id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkResolved transitions resolved_at from null to at exactly once.
func (s *SQLiteStore) MarkResolved(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`, at, id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TopByRating returns the top `limit` users ordered by rate descending.
func (s *SQLiteStore) TopByRating(ctx context.Context, limit int) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY rate DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func joinComma(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
