package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/models"
	"github.com/wfunc/boomberg/network"
	"github.com/wfunc/boomberg/session"
)

const maxBodyBytes = 64 << 10

// Games is the game service behind the API. *services.GameService implements it.
type Games interface {
	Create(ctx context.Context, user models.User, force bool) (models.GameResponse, error)
	Join(ctx context.Context, user models.User, gameTicker string, force bool) (models.GameResponse, error)
	Start(ctx context.Context, user models.User) (models.GameResponse, error)
	Lobby(ctx context.Context, user models.User, gameID int64) (models.GameResponse, error)
	SetName(ctx context.Context, user models.User, name string) (models.NameResponse, error)
}

// Sessions resolves the session cookie. *session.Provider implements it.
type Sessions interface {
	Resolve(ctx context.Context, token string) (models.User, string, error)
}

type Metrics interface {
	network.StreamMetrics
	ObserveRequest(route string, duration time.Duration)
}

type Options struct {
	Addr              string
	SecureCookies     bool
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
}

type GameServer struct {
	opts     Options
	games    Games
	sessions Sessions
	broker   network.Subscriber
	timers   network.Scheduler
	metrics  Metrics
	upgrader websocket.Upgrader
	router   *httprouter.Router

	// 关闭时取消所有事件流
	baseCtx context.Context
	cancel  context.CancelFunc
	streams sync.WaitGroup

	mutex      sync.Mutex
	httpServer *http.Server
}

type userHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, user models.User)

func NewGameServer(opts Options, games Games, sessions Sessions, broker network.Subscriber, timers network.Scheduler, metrics Metrics) *GameServer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &GameServer{
		opts:     opts,
		games:    games,
		sessions: sessions,
		broker:   broker,
		timers:   timers,
		metrics:  metrics,
		baseCtx:  ctx,
		cancel:   cancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	router := httprouter.New()
	router.GET("/healthz", s.handleHealth)
	router.GET("/api/events", s.withUser(s.handleEvents))
	router.GET("/ws/events", s.withUser(s.handleWebSocket))
	router.GET("/api/me", s.withUser(s.timed("me", s.handleMe)))
	router.POST("/api/game/create", s.withUser(s.timed("game:create", s.handleCreate)))
	router.POST("/api/game/join", s.withUser(s.timed("game:join", s.handleJoin)))
	router.POST("/api/game/start", s.withUser(s.timed("game:start", s.handleStart)))
	router.POST("/api/game/lobby", s.withUser(s.timed("game:lobby", s.handleLobby)))
	router.POST("/api/user/setname", s.withUser(s.timed("user:setname", s.handleSetName)))
	s.router = router
	return s
}

func (s *GameServer) Handler() http.Handler {
	return s.router
}

func (s *GameServer) Start() error {
	l, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve blocks until Shutdown. A clean shutdown returns nil.
func (s *GameServer) Serve(l net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	s.mutex.Lock()
	s.httpServer = srv
	s.mutex.Unlock()

	logger.Log.Infof("Game server listening on %s", l.Addr())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends every open event stream, then drains the HTTP server.
func (s *GameServer) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Log.Warn("event streams did not close before the shutdown deadline")
	}

	s.mutex.Lock()
	srv := s.httpServer
	s.mutex.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// withUser resolves the session cookie, issuing a new one when needed.
func (s *GameServer) withUser(h userHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := ""
		if ck, err := r.Cookie(session.CookieName); err == nil {
			token = ck.Value
		}

		user, issued, err := s.sessions.Resolve(r.Context(), token)
		if err != nil {
			logger.Log.Errorf("resolve session: %v", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if issued != "" {
			http.SetCookie(w, session.Cookie(issued, s.opts.SecureCookies))
		}
		h(w, r, ps, user)
	}
}

func (s *GameServer) timed(route string, h userHandle) userHandle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, user models.User) {
		start := time.Now()
		defer func() { s.metrics.ObserveRequest(route, time.Since(start)) }()
		h(w, r, ps, user)
	}
}

// decode reads a JSON body into v. An empty body leaves v zero.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("encode response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// respond sends domain results with 200, errors as a bare 500.
func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		logger.Log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, v)
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, "ok\n")
}

func (s *GameServer) handleMe(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user models.User) {
	writeJSON(w, models.MeResponse{ID: user.ID, Name: user.DisplayName()})
}

func (s *GameServer) handleCreate(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user models.User) {
	var req models.CreateGameRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.games.Create(r.Context(), user, req.Force)
	respond(w, r, resp, err)
}

func (s *GameServer) handleJoin(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user models.User) {
	var req models.JoinGameRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.games.Join(r.Context(), user, req.GameTicker, req.Force)
	respond(w, r, resp, err)
}

func (s *GameServer) handleStart(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user models.User) {
	resp, err := s.games.Start(r.Context(), user)
	respond(w, r, resp, err)
}

func (s *GameServer) handleLobby(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user models.User) {
	var req models.LobbyRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.games.Lobby(r.Context(), user, req.GameID)
	respond(w, r, resp, err)
}

func (s *GameServer) handleSetName(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user models.User) {
	var req models.SetNameRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.games.SetName(r.Context(), user, req.Name)
	respond(w, r, resp, err)
}

func (s *GameServer) handleEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user models.User) {
	conn, err := network.NewSSEConnection(w, r, s.opts.WriteTimeout)
	if err != nil {
		logger.Log.Errorf("open event stream: %v", err)
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	s.serveStream(r.Context(), user, conn)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user models.User) {
	// w.Header() carries the session cookie, if one was issued
	ws, err := s.upgrader.Upgrade(w, r, w.Header())
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	conn := network.NewWSConnection(ws, s.opts.WriteTimeout)
	s.serveStream(conn.Watch(r.Context()), user, conn)
}

// serveStream holds conn open until the client leaves or the server shuts down.
func (s *GameServer) serveStream(parent context.Context, user models.User, conn network.Connection) {
	s.streams.Add(1)
	defer s.streams.Done()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(s.baseCtx, cancel)
	defer stop()

	stream := network.NewStream(user.ID, conn, s.broker, s.timers, s.opts.HeartbeatInterval, s.metrics)
	if err := stream.Open(); err != nil {
		logger.Log.Warnf("stream %s for user %d failed to open: %v", stream.ID, user.ID, err)
		return
	}
	logger.Log.Infof("New stream %s for user %d from %s", stream.ID, user.ID, conn.RemoteAddr())

	if err := stream.Serve(ctx); err != nil {
		logger.Log.Debugw("stream ended with error", "stream", stream.ID, "user", user.ID, "error", err)
	}
	logger.Log.Infof("Stream %s closed for user %d", stream.ID, user.ID)
}
