package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wfunc/boomberg/models"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name     string
	schema   []string
	numbered bool // $1, $2... instead of ?
}

// sqlStore implements Database over database/sql. Queries are written with
// ? placeholders and rebound for dialects that number them.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func newSQLStore(db *sql.DB, d dialect) (*sqlStore, error) {
	s := &sqlStore{db: db, dialect: d, now: time.Now}
	if err := s.initTables(); err != nil {
		return nil, fmt.Errorf("init %s schema: %w", d.name, err)
	}
	return s, nil
}

func (s *sqlStore) initTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	for _, q := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const gameColumns = `g.id, g.ticker, g.creator_id, g.status, g.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (models.Game, error) {
	var (
		g       models.Game
		status  string
		created int64
	)
	if err := row.Scan(&g.ID, &g.Ticker, &g.CreatorID, &status, &created); err != nil {
		return g, err
	}
	g.Status = models.GameStatus(status)
	g.CreatedAt = time.Unix(created, 0)
	return g, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u       models.User
		name    sql.NullString
		created int64
	)
	if err := row.Scan(&u.ID, &name, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	u.Name, u.HasName = name.String, name.Valid
	u.CreatedAt = time.Unix(created, 0)
	return &u, nil
}

func (s *sqlStore) SessionByToken(ctx context.Context, token string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := s.rebind(`SELECT id, name, created_at FROM session WHERE session_id = ?`)
	return scanUser(s.db.QueryRowContext(ctx, query, token))
}

func (s *sqlStore) CreateSession(ctx context.Context, token string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	created := s.now().Unix()
	query := s.rebind(`INSERT INTO session (session_id, created_at) VALUES (?, ?) RETURNING id`)

	u := &models.User{CreatedAt: time.Unix(created, 0)}
	if err := s.db.QueryRowContext(ctx, query, token, created).Scan(&u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *sqlStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := s.rebind(`SELECT id, name, created_at FROM session WHERE id = ?`)
	return scanUser(s.db.QueryRowContext(ctx, query, userID))
}

func (s *sqlStore) SetUserName(ctx context.Context, userID int64, name string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE session SET name = ? WHERE id = ?`), name, userID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (s *sqlStore) ActiveGamesForUser(ctx context.Context, userID int64, since time.Time, limit int) ([]models.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := s.rebind(`
		SELECT ` + gameColumns + `
		FROM game g
		INNER JOIN game_participant p ON g.id = p.game_id
		WHERE p.user_id = ? AND g.status <> 'completed' AND g.created_at > ?
		ORDER BY g.id
		LIMIT ?`)
	return s.queryGames(ctx, query, userID, since.Unix(), limit)
}

func (s *sqlStore) ActiveGamesByTicker(ctx context.Context, ticker string, since time.Time) ([]models.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := s.rebind(`
		SELECT ` + gameColumns + `
		FROM game g
		WHERE g.ticker = ? AND g.status <> 'completed' AND g.created_at > ?
		ORDER BY g.id`)
	return s.queryGames(ctx, query, ticker, since.Unix())
}

func (s *sqlStore) queryGames(ctx context.Context, query string, args ...any) ([]models.Game, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *sqlStore) CreateGame(ctx context.Context, creatorID int64, ticker string, since time.Time) (*models.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var taken int
	err = tx.QueryRowContext(ctx, s.rebind(`
		SELECT 1 FROM game
		WHERE ticker = ? AND status <> 'completed' AND created_at > ?
		LIMIT 1`), ticker, since.Unix()).Scan(&taken)
	switch {
	case err == nil:
		return nil, ErrTickerTaken
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	now := s.now().Unix()
	g := &models.Game{Ticker: ticker, CreatorID: creatorID, Status: models.StatusPending, CreatedAt: time.Unix(now, 0)}
	err = tx.QueryRowContext(ctx, s.rebind(`
		INSERT INTO game (ticker, creator_id, status, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`),
		ticker, creatorID, string(models.StatusPending), now).Scan(&g.ID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO game_participant (game_id, user_id, joined_at) VALUES (?, ?, ?)`),
		g.ID, creatorID, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *sqlStore) GetGame(ctx context.Context, gameID int64) (*models.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+gameColumns+` FROM game g WHERE g.id = ?`), gameID)
	g, err := scanGame(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (s *sqlStore) SetGameStatus(ctx context.Context, gameID int64, status models.GameStatus) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE game SET status = ? WHERE id = ?`), string(status), gameID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (s *sqlStore) AddParticipant(ctx context.Context, gameID, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO game_participant (game_id, user_id, joined_at) VALUES (?, ?, ?)
		ON CONFLICT (game_id, user_id) DO NOTHING`),
		gameID, userID, s.now().Unix())
	return err
}

func (s *sqlStore) Participants(ctx context.Context, gameID int64) ([]models.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT p.user_id, s.name
		FROM game_participant p
		INNER JOIN session s ON p.user_id = s.id
		WHERE p.game_id = ?
		ORDER BY p.id`), gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.Participant
	for rows.Next() {
		var (
			p    models.Participant
			name sql.NullString
		)
		if err := rows.Scan(&p.ID, &name); err != nil {
			return nil, err
		}
		p.Name = name.String
		if !name.Valid || name.String == "" {
			p.Name = models.DefaultName(p.ID)
		}
		users = append(users, p)
	}
	return users, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
