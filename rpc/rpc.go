package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/models"
)

const callTimeout = 5 * time.Second

// GameReader is the part of the game service exposed over RPC.
type GameReader interface {
	Roster(ctx context.Context, gameID int64) ([]models.Participant, error)
	ActiveGames(ctx context.Context, userID int64) ([]models.Game, error)
}

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers the Games service on a private
// rpc.Server.
func NewServer(addr string, games GameReader) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("Games", NewGameService(games)); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

func (s *Server) Addr() string { return s.address }

// Start begins listening for RPC requests. It returns once the listener is closed.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService is the struct that exposes RPC methods.
// Methods follow the net/rpc signature: exported method, exported arguments,
// second argument is a pointer, return type is error.
type GameService struct {
	games GameReader
}

func NewGameService(games GameReader) *GameService {
	return &GameService{games: games}
}

type RosterArgs struct {
	GameID int64
}

type RosterReply struct {
	Users []models.Participant
}

func (gs *GameService) Roster(args *RosterArgs, reply *RosterReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	users, err := gs.games.Roster(ctx, args.GameID)
	if err != nil {
		return err
	}
	reply.Users = users
	return nil
}

type ActiveGamesArgs struct {
	UserID int64
}

type ActiveGamesReply struct {
	Games []models.Game
}

func (gs *GameService) ActiveGames(args *ActiveGamesArgs, reply *ActiveGamesReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	games, err := gs.games.ActiveGames(ctx, args.UserID)
	if err != nil {
		return err
	}
	reply.Games = games
	return nil
}
