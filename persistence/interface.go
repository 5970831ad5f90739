// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/boomberg/models"
)

// Database 数据库接口
type Database interface {
	SessionByToken(ctx context.Context, token string) (*models.User, error)
	CreateSession(ctx context.Context, token string) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SetUserName(ctx context.Context, userID int64, name string) error

	// ActiveGamesForUser lists games the user participates in that are not
	// completed and were created after since.
	ActiveGamesForUser(ctx context.Context, userID int64, since time.Time, limit int) ([]models.Game, error)
	// ActiveGamesByTicker lists non-completed games created after since.
	ActiveGamesByTicker(ctx context.Context, ticker string, since time.Time) ([]models.Game, error)
	// CreateGame inserts a pending game and its creator as first participant in
	// one transaction. It fails with ErrTickerTaken if the ticker became active
	// in the meantime.
	CreateGame(ctx context.Context, creatorID int64, ticker string, since time.Time) (*models.Game, error)
	GetGame(ctx context.Context, gameID int64) (*models.Game, error)
	SetGameStatus(ctx context.Context, gameID int64, status models.GameStatus) error

	// AddParticipant is a no-op when the user already participates.
	AddParticipant(ctx context.Context, gameID, userID int64) error
	// Participants returns the roster in join order with names defaulted.
	Participants(ctx context.Context, gameID int64) ([]models.Participant, error)

	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrTickerTaken    = errors.New("ticker already used by an active game")
)

const queryTimeout = 5 * time.Second
