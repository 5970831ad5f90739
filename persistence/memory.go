package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/boomberg/models"
)

// Memory is a process-local Database for development and tests.
type Memory struct {
	mutex        sync.RWMutex
	users        map[int64]*models.User
	tokens       map[string]int64
	games        map[int64]*models.Game
	participants map[int64][]int64 // gameID -> userIDs in join order
	nextUser     int64
	nextGame     int64
	now          func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:        make(map[int64]*models.User),
		tokens:       make(map[string]int64),
		games:        make(map[int64]*models.Game),
		participants: make(map[int64][]int64),
		now:          time.Now,
	}
}

// SetClock replaces the time source used for created_at stamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.now = now
}

// InsertGame stores g as-is, assigning an id when it has none. Seeding helper.
func (m *Memory) InsertGame(g models.Game, participants ...int64) models.Game {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if g.ID == 0 {
		m.nextGame++
		g.ID = m.nextGame
	} else if g.ID > m.nextGame {
		m.nextGame = g.ID
	}
	m.games[g.ID] = &g
	m.participants[g.ID] = append([]int64(nil), participants...)
	return g
}

func (m *Memory) SessionByToken(_ context.Context, token string) (*models.User, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	id, ok := m.tokens[token]
	if !ok {
		return nil, ErrRecordNotFound
	}
	u := *m.users[id]
	return &u, nil
}

func (m *Memory) CreateSession(_ context.Context, token string) (*models.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.nextUser++
	u := &models.User{ID: m.nextUser, CreatedAt: m.now().Truncate(time.Second)}
	m.users[u.ID] = u
	m.tokens[token] = u.ID
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUser(_ context.Context, userID int64) (*models.User, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) SetUserName(_ context.Context, userID int64, name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrRecordNotFound
	}
	u.Name, u.HasName = name, true
	return nil
}

func (m *Memory) ActiveGamesForUser(_ context.Context, userID int64, since time.Time, limit int) ([]models.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var games []models.Game
	for _, g := range m.sortedGames() {
		if !g.Active(since) || !m.participates(g.ID, userID) {
			continue
		}
		games = append(games, g)
		if limit > 0 && len(games) == limit {
			break
		}
	}
	return games, nil
}

func (m *Memory) ActiveGamesByTicker(_ context.Context, ticker string, since time.Time) ([]models.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.activeByTicker(ticker, since), nil
}

func (m *Memory) activeByTicker(ticker string, since time.Time) []models.Game {
	var games []models.Game
	for _, g := range m.sortedGames() {
		if g.Ticker == ticker && g.Active(since) {
			games = append(games, g)
		}
	}
	return games
}

func (m *Memory) sortedGames() []models.Game {
	games := make([]models.Game, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, *g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games
}

func (m *Memory) participates(gameID, userID int64) bool {
	for _, id := range m.participants[gameID] {
		if id == userID {
			return true
		}
	}
	return false
}

func (m *Memory) CreateGame(_ context.Context, creatorID int64, ticker string, since time.Time) (*models.Game, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if len(m.activeByTicker(ticker, since)) > 0 {
		return nil, ErrTickerTaken
	}

	m.nextGame++
	g := &models.Game{
		ID:        m.nextGame,
		Ticker:    ticker,
		CreatorID: creatorID,
		Status:    models.StatusPending,
		CreatedAt: m.now().Truncate(time.Second),
	}
	m.games[g.ID] = g
	m.participants[g.ID] = []int64{creatorID}
	cp := *g
	return &cp, nil
}

func (m *Memory) GetGame(_ context.Context, gameID int64) (*models.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *Memory) SetGameStatus(_ context.Context, gameID int64, status models.GameStatus) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		return ErrRecordNotFound
	}
	g.Status = status
	return nil
}

func (m *Memory) AddParticipant(_ context.Context, gameID, userID int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.games[gameID]; !ok {
		return ErrRecordNotFound
	}
	if m.participates(gameID, userID) {
		return nil
	}
	m.participants[gameID] = append(m.participants[gameID], userID)
	return nil
}

func (m *Memory) Participants(_ context.Context, gameID int64) ([]models.Participant, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ids := m.participants[gameID]
	users := make([]models.Participant, 0, len(ids))
	for _, id := range ids {
		p := models.Participant{ID: id, Name: models.DefaultName(id)}
		if u, ok := m.users[id]; ok && u.HasName && u.Name != "" {
			p.Name = u.Name
		}
		users = append(users, p)
	}
	return users, nil
}

func (m *Memory) Close() error { return nil }
