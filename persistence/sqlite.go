package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE,
			name TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game (
			id INTEGER PRIMARY KEY,
			ticker TEXT NOT NULL,
			creator_id INTEGER NOT NULL REFERENCES session(id),
			created_at INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'in_progress', 'completed'))
		)`,
		`CREATE TABLE IF NOT EXISTS game_participant (
			id INTEGER PRIMARY KEY,
			game_id INTEGER NOT NULL REFERENCES game(id),
			user_id INTEGER NOT NULL REFERENCES session(id),
			joined_at INTEGER NOT NULL,
			UNIQUE (game_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_ticker ON game(ticker, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_game_participant_user ON game_participant(user_id)`,
	},
}

var sqlitePragmas = []string{
	`PRAGMA journal_mode=WAL`,
	`PRAGMA foreign_keys=1`,
	`PRAGMA busy_timeout=1000`,
	`PRAGMA synchronous=1`,
}

// NewSQLite opens (or creates) the sqlite database at path. ":memory:" gives a
// private in-memory database.
func NewSQLite(path string) (Database, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// sqlite has a single writer; one connection also keeps pragmas and
	// in-memory databases stable.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	for _, p := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	store, err := newSQLStore(db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
