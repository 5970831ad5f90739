// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS session (
			id BIGSERIAL PRIMARY KEY,
			session_id VARCHAR(64) NOT NULL UNIQUE,
			name VARCHAR(32),
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game (
			id BIGSERIAL PRIMARY KEY,
			ticker VARCHAR(16) NOT NULL,
			creator_id BIGINT NOT NULL REFERENCES session(id),
			created_at BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'in_progress', 'completed'))
		)`,
		`CREATE TABLE IF NOT EXISTS game_participant (
			id BIGSERIAL PRIMARY KEY,
			game_id BIGINT NOT NULL REFERENCES game(id),
			user_id BIGINT NOT NULL REFERENCES session(id),
			joined_at BIGINT NOT NULL,
			UNIQUE (game_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_ticker ON game(ticker, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_game_participant_user ON game_participant(user_id)`,
	},
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (Database, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := newSQLStore(db, postgresDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
