// services/game_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wfunc/boomberg/broadcast"
	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/models"
	"github.com/wfunc/boomberg/persistence"
	"github.com/wfunc/boomberg/session"
	"github.com/wfunc/boomberg/state"
	"github.com/wfunc/boomberg/tickers"
)

// existing games shown on a create/join conflict
const existingGamesLimit = 10

const msgNoTicker = "couldn't find an available ticker symbol, server might be overloaded!"

type GameService struct {
	db          persistence.Database
	allocator   *tickers.Allocator
	broadcaster broadcast.Broadcaster
	machine     *state.Machine
	validator   *session.Validator
	sessions    *session.Manager
	raceRetries int
}

// NewGameService wires the game endpoints. raceRetries bounds how often a
// ticker lost to a concurrent create is re-allocated.
func NewGameService(db persistence.Database, allocator *tickers.Allocator, broadcaster broadcast.Broadcaster,
	validator *session.Validator, sessions *session.Manager, raceRetries int) *GameService {
	if raceRetries < 1 {
		raceRetries = 1
	}
	s := &GameService{
		db:          db,
		allocator:   allocator,
		broadcaster: broadcaster,
		machine:     state.NewGameMachine(),
		validator:   validator,
		sessions:    sessions,
		raceRetries: raceRetries,
	}
	// 游戏开始时刷新所有玩家的名单
	s.machine.OnEnter(models.StatusInProgress, func(ctx context.Context, g models.Game) {
		s.emitRoster(ctx, g.ID)
	})
	return s
}

func (s *GameService) company(ticker string) string {
	sym, _ := s.allocator.Dictionary().Lookup(ticker)
	return sym.Company
}

func (s *GameService) emitRoster(ctx context.Context, gameID int64) {
	if err := s.broadcaster.EmitToGame(ctx, gameID, models.EmitUserJoined{}); err != nil {
		logger.Log.Warnf("广播名单失败 game=%d: %v", gameID, err)
	}
}

// conflicts returns the user's active games unless force is set.
func (s *GameService) conflicts(ctx context.Context, userID int64, force bool) ([]models.Game, error) {
	if force {
		return nil, nil
	}
	games, err := s.db.ActiveGamesForUser(ctx, userID, s.allocator.Since(), existingGamesLimit)
	if err != nil {
		return nil, fmt.Errorf("load active games of user %d: %w", userID, err)
	}
	return games, nil
}

// Create allocates a fresh ticker and opens a pending game with the caller
// as first participant. Losing the insert to a concurrent create starts a
// new allocation, raceRetries rounds at most.
func (s *GameService) Create(ctx context.Context, user models.User, force bool) (models.GameResponse, error) {
	existing, err := s.conflicts(ctx, user.ID, force)
	if err != nil {
		return models.GameResponse{}, err
	}
	if len(existing) > 0 {
		return models.Conflict(existing), nil
	}

	for i := 0; i < s.raceRetries; i++ {
		sym, err := s.allocator.Allocate(ctx)
		if errors.Is(err, tickers.ErrNoTickerAvailable) || errors.Is(err, tickers.ErrSamplingExhausted) {
			logger.Log.Warnf("ticker allocation failed for user %d: %v", user.ID, err)
			return models.Failed(msgNoTicker), nil
		}
		if err != nil {
			return models.GameResponse{}, err
		}

		game, err := s.db.CreateGame(ctx, user.ID, sym.Ticker, s.allocator.Since())
		if errors.Is(err, persistence.ErrTickerTaken) {
			logger.Log.Debugw("ticker taken between check and insert", "ticker", sym.Ticker, "attempt", i+1)
			continue
		}
		if err != nil {
			return models.GameResponse{}, fmt.Errorf("create game: %w", err)
		}

		logger.Log.Infof("创建游戏 game=%d ticker=%s creator=%d", game.ID, game.Ticker, user.ID)
		return models.Created(sym.Ticker, sym.Company), nil
	}
	return models.Failed(msgNoTicker), nil
}

// Join adds the caller to the single pending game holding gameTicker.
func (s *GameService) Join(ctx context.Context, user models.User, gameTicker string, force bool) (models.GameResponse, error) {
	existing, err := s.conflicts(ctx, user.ID, force)
	if err != nil {
		return models.GameResponse{}, err
	}
	if len(existing) > 0 {
		return models.Conflict(existing), nil
	}

	ticker := strings.TrimPrefix(gameTicker, "$")
	candidates, err := s.db.ActiveGamesByTicker(ctx, ticker, s.allocator.Since())
	if err != nil {
		return models.GameResponse{}, fmt.Errorf("find games for %s: %w", ticker, err)
	}

	var game models.Game
	switch len(candidates) {
	case 0:
		return models.Failed(fmt.Sprintf("no game found for ticker $%s", ticker)), nil
	case 1:
		game = candidates[0]
	default:
		var pending []models.Game
		for _, g := range candidates {
			if g.Status == models.StatusPending {
				pending = append(pending, g)
			}
		}
		switch len(pending) {
		case 0:
			return models.Failed(fmt.Sprintf(
				"there are %d games going on with ticker $%s, but they've all started already", len(candidates), ticker)), nil
		case 1:
			game = pending[0]
		default:
			return models.Failed(fmt.Sprintf("ticker $%s is ambiguous, found %d pending games", ticker, len(pending))), nil
		}
	}

	if err := s.db.AddParticipant(ctx, game.ID, user.ID); err != nil {
		return models.GameResponse{}, fmt.Errorf("join game %d: %w", game.ID, err)
	}
	logger.Log.Infof("加入游戏 game=%d user=%d", game.ID, user.ID)

	s.emitRoster(ctx, game.ID)
	return models.Created(game.Ticker, s.company(game.Ticker)), nil
}

// Start moves the caller's pending game into play.
func (s *GameService) Start(ctx context.Context, user models.User) (models.GameResponse, error) {
	games, err := s.db.ActiveGamesForUser(ctx, user.ID, s.allocator.Since(), existingGamesLimit)
	if err != nil {
		return models.GameResponse{}, fmt.Errorf("load active games of user %d: %w", user.ID, err)
	}

	for _, g := range games {
		if g.CreatorID != user.ID || g.Status != models.StatusPending {
			continue
		}
		if err := s.machine.ChangeState(ctx, s.db, &g, models.StatusInProgress); err != nil {
			if errors.Is(err, state.ErrTransitionNotAllowed) {
				return models.Failed(err.Error()), nil
			}
			return models.GameResponse{}, fmt.Errorf("start game %d: %w", g.ID, err)
		}
		logger.Log.Infof("游戏开始 game=%d ticker=%s", g.ID, g.Ticker)
		return models.Created(g.Ticker, s.company(g.Ticker)), nil
	}
	return models.Failed("you don't have a pending game to start"), nil
}

// Lobby sends the current roster of gameID to the caller only.
func (s *GameService) Lobby(ctx context.Context, user models.User, gameID int64) (models.GameResponse, error) {
	roster, err := s.db.Participants(ctx, gameID)
	if err != nil {
		return models.GameResponse{}, fmt.Errorf("load roster of game %d: %w", gameID, err)
	}

	member := false
	for _, p := range roster {
		if p.ID == user.ID {
			member = true
			break
		}
	}
	if !member {
		return models.Failed(fmt.Sprintf("you're not in game %d", gameID)), nil
	}

	if err := s.broadcaster.EmitToUser(ctx, gameID, user.ID, models.EmitUserJoined{}); err != nil {
		return models.GameResponse{}, err
	}
	return models.GameResponse{}, nil
}

// SetName validates and stores a new display name.
func (s *GameService) SetName(ctx context.Context, user models.User, name string) (models.NameResponse, error) {
	accepted, err := s.validator.Validate(name)
	if err != nil {
		var nameErr *session.NameError
		if errors.As(err, &nameErr) {
			return models.NameResponse{Error: nameErr.Error()}, nil
		}
		return models.NameResponse{}, err
	}

	if err := s.db.SetUserName(ctx, user.ID, accepted); err != nil {
		return models.NameResponse{}, fmt.Errorf("set name of user %d: %w", user.ID, err)
	}
	if s.sessions != nil {
		s.sessions.InvalidateUser(user.ID)
	}
	return models.NameResponse{NewName: accepted}, nil
}

// Roster lists the participants of gameID.
func (s *GameService) Roster(ctx context.Context, gameID int64) ([]models.Participant, error) {
	if _, err := s.db.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	return s.db.Participants(ctx, gameID)
}

// ActiveGames lists the user's games that still count as active.
func (s *GameService) ActiveGames(ctx context.Context, userID int64) ([]models.Game, error) {
	return s.db.ActiveGamesForUser(ctx, userID, s.allocator.Since(), existingGamesLimit)
}
