package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/boomberg/broadcast"
	"github.com/wfunc/boomberg/models"
	"github.com/wfunc/boomberg/persistence"
	"github.com/wfunc/boomberg/session"
	"github.com/wfunc/boomberg/tickers"
)

type inbox struct {
	mutex  sync.Mutex
	events []models.UserEvent
}

func (i *inbox) handle(ev models.UserEvent) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	i.events = append(i.events, ev)
}

func (i *inbox) all() []models.UserEvent {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return append([]models.UserEvent(nil), i.events...)
}

type fixture struct {
	db       persistence.Database
	mem      *persistence.Memory
	broker   *broadcast.Broker
	sessions *session.Manager
	svc      *GameService
}

func newFixture(t *testing.T, dict tickers.Dictionary) *fixture {
	t.Helper()
	mem := persistence.NewMemory()
	return newFixtureWithDB(t, dict, mem, mem)
}

func newFixtureWithDB(t *testing.T, dict tickers.Dictionary, db persistence.Database, mem *persistence.Memory) *fixture {
	t.Helper()
	broker := broadcast.NewBroker()
	sessions := session.NewManager()
	alloc := tickers.NewAllocator(dict, tickers.NewSampler(nil, 15, nil), db, 10, 24*time.Hour)
	svc := NewGameService(db, alloc, broadcast.NewGameBroadcaster(broker, db), session.NewValidator(3, 15), sessions, 3)
	return &fixture{db: db, mem: mem, broker: broker, sessions: sessions, svc: svc}
}

func (f *fixture) user(t *testing.T, token string) models.User {
	t.Helper()
	u, err := f.mem.CreateSession(context.Background(), token)
	require.NoError(t, err)
	return *u
}

func (f *fixture) listen(userID int64) *inbox {
	in := &inbox{}
	f.broker.Subscribe(broadcast.UserChannel(userID), in.handle)
	return in
}

func TestJoinWithForceAddsParticipant(t *testing.T) {
	f := newFixture(t, tickers.Default())
	ctx := context.Background()

	creator := f.user(t, "creator")
	caller := f.user(t, "caller")
	game := f.mem.InsertGame(models.Game{
		Ticker: "AB", CreatorID: creator.ID, Status: models.StatusPending, CreatedAt: time.Now(),
	}, creator.ID)

	creatorInbox, callerInbox := f.listen(creator.ID), f.listen(caller.ID)

	resp, err := f.svc.Join(ctx, caller, "$AB", true)
	require.NoError(t, err)
	assert.Empty(t, resp.ExistingGames)
	assert.Equal(t, models.GameCreated{Code: "AB", Desc: "Aardvark Bancorp"}, resp.Result())

	roster, err := f.db.Participants(ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, caller.ID, roster[1].ID)

	want := models.UserJoinedEvent{Users: roster}
	assert.Equal(t, []models.UserEvent{want}, creatorInbox.all())
	assert.Equal(t, []models.UserEvent{want}, callerInbox.all())
}

func TestJoinReportsExistingGamesWithoutForce(t *testing.T) {
	f := newFixture(t, tickers.Default())
	ctx := context.Background()

	caller := f.user(t, "caller")
	mine := f.mem.InsertGame(models.Game{Ticker: "BOOM", CreatorID: caller.ID, Status: models.StatusPending, CreatedAt: time.Now()}, caller.ID)
	f.mem.InsertGame(models.Game{Ticker: "AB", Status: models.StatusPending, CreatedAt: time.Now()})

	resp, err := f.svc.Join(ctx, caller, "AB", false)
	require.NoError(t, err)
	conflict, ok := resp.Result().(models.GameConflict)
	require.True(t, ok, "got %#v", resp.Result())
	require.Len(t, conflict.ExistingGames, 1)
	assert.Equal(t, mine.ID, conflict.ExistingGames[0].ID)
}

func TestJoinErrors(t *testing.T) {
	f := newFixture(t, tickers.Default())
	ctx := context.Background()
	caller := f.user(t, "caller")
	now := time.Now()

	f.mem.InsertGame(models.Game{Ticker: "GO", Status: models.StatusInProgress, CreatedAt: now})
	f.mem.InsertGame(models.Game{Ticker: "GO", Status: models.StatusInProgress, CreatedAt: now})
	f.mem.InsertGame(models.Game{Ticker: "DUP", Status: models.StatusPending, CreatedAt: now})
	f.mem.InsertGame(models.Game{Ticker: "DUP", Status: models.StatusPending, CreatedAt: now})
	f.mem.InsertGame(models.Game{Ticker: "OLD", Status: models.StatusPending, CreatedAt: now.Add(-25 * time.Hour)})
	f.mem.InsertGame(models.Game{Ticker: "DONE", Status: models.StatusCompleted, CreatedAt: now})

	cases := map[string]string{
		"$NONE": "no game found for ticker $NONE",
		"OLD":   "no game found for ticker $OLD",
		"DONE":  "no game found for ticker $DONE",
		"$GO":   "there are 2 games going on with ticker $GO, but they've all started already",
		"DUP":   "ticker $DUP is ambiguous, found 2 pending games",
	}
	for ticker, msg := range cases {
		resp, err := f.svc.Join(ctx, caller, ticker, true)
		require.NoError(t, err, ticker)
		assert.Equal(t, models.GameFailed{Error: msg}, resp.Result(), ticker)
	}
}

func TestJoinPicksTheSinglePendingGame(t *testing.T) {
	f := newFixture(t, tickers.Default())
	ctx := context.Background()
	caller := f.user(t, "caller")

	f.mem.InsertGame(models.Game{Ticker: "AB", Status: models.StatusInProgress, CreatedAt: time.Now()})
	pending := f.mem.InsertGame(models.Game{Ticker: "AB", Status: models.StatusPending, CreatedAt: time.Now()})

	resp, err := f.svc.Join(ctx, caller, "AB", true)
	require.NoError(t, err)
	assert.IsType(t, models.GameCreated{}, resp.Result())

	roster, err := f.db.Participants(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.Participant{{ID: caller.ID, Name: models.DefaultName(caller.ID)}}, roster)
}

func TestCreate(t *testing.T) {
	dict := tickers.Dictionary{{Ticker: "ONLY", Company: "Only Corp"}}
	f := newFixture(t, dict)
	ctx := context.Background()

	alice := f.user(t, "alice")
	resp, err := f.svc.Create(ctx, alice, false)
	require.NoError(t, err)
	assert.Equal(t, models.GameCreated{Code: "ONLY", Desc: "Only Corp"}, resp.Result())

	games, err := f.db.ActiveGamesForUser(ctx, alice.ID, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, models.StatusPending, games[0].Status)
	assert.Equal(t, alice.ID, games[0].CreatorID)

	// second create without force reports the game we already have
	resp, err = f.svc.Create(ctx, alice, false)
	require.NoError(t, err)
	assert.IsType(t, models.GameConflict{}, resp.Result())

	// the only ticker is taken, so nobody else can create
	bob := f.user(t, "bob")
	resp, err = f.svc.Create(ctx, bob, false)
	require.NoError(t, err)
	assert.Equal(t, models.GameFailed{Error: msgNoTicker}, resp.Result())
}

// racyDB loses the first losses CreateGame calls to a concurrent insert.
type racyDB struct {
	*persistence.Memory
	losses int
	lost   int
}

func (r *racyDB) CreateGame(ctx context.Context, creatorID int64, ticker string, since time.Time) (*models.Game, error) {
	if r.lost < r.losses {
		r.lost++
		return nil, persistence.ErrTickerTaken
	}
	return r.Memory.CreateGame(ctx, creatorID, ticker, since)
}

func TestCreateRetriesWhenTickerIsTakenConcurrently(t *testing.T) {
	mem := persistence.NewMemory()
	db := &racyDB{Memory: mem, losses: 1}
	f := newFixtureWithDB(t, tickers.Default(), db, mem)

	resp, err := f.svc.Create(context.Background(), f.user(t, "alice"), true)
	require.NoError(t, err)
	assert.IsType(t, models.GameCreated{}, resp.Result())
	assert.Equal(t, 1, db.lost)
}

func TestCreateGivesUpAfterRaceRetries(t *testing.T) {
	mem := persistence.NewMemory()
	db := &racyDB{Memory: mem, losses: 100}
	f := newFixtureWithDB(t, tickers.Default(), db, mem)

	resp, err := f.svc.Create(context.Background(), f.user(t, "alice"), true)
	require.NoError(t, err)
	assert.Equal(t, models.GameFailed{Error: msgNoTicker}, resp.Result())
	// one fresh allocation per round, three rounds
	assert.Equal(t, 3, db.lost)
}

func TestStart(t *testing.T) {
	f := newFixture(t, tickers.Default())
	ctx := context.Background()

	creator := f.user(t, "creator")
	player := f.user(t, "player")
	game := f.mem.InsertGame(models.Game{Ticker: "AB", CreatorID: creator.ID, Status: models.StatusPending, CreatedAt: time.Now()},
		creator.ID, player.ID)
	playerInbox := f.listen(player.ID)

	// only the creator can start
	resp, err := f.svc.Start(ctx, player)
	require.NoError(t, err)
	assert.IsType(t, models.GameFailed{}, resp.Result())

	resp, err = f.svc.Start(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, models.GameCreated{Code: "AB", Desc: "Aardvark Bancorp"}, resp.Result())

	got, err := f.db.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Len(t, playerInbox.all(), 1, "roster refresh on start")

	// already started
	resp, err = f.svc.Start(ctx, creator)
	require.NoError(t, err)
	assert.IsType(t, models.GameFailed{}, resp.Result())
}

func TestLobby(t *testing.T) {
	f := newFixture(t, tickers.Default())
	ctx := context.Background()

	member := f.user(t, "member")
	other := f.user(t, "other")
	game := f.mem.InsertGame(models.Game{Ticker: "AB", Status: models.StatusPending, CreatedAt: time.Now()}, member.ID)
	memberInbox, otherInbox := f.listen(member.ID), f.listen(other.ID)

	resp, err := f.svc.Lobby(ctx, member, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameAccepted{}, resp.Result())
	assert.Len(t, memberInbox.all(), 1)

	resp, err = f.svc.Lobby(ctx, other, game.ID)
	require.NoError(t, err)
	assert.IsType(t, models.GameFailed{}, resp.Result())
	assert.Empty(t, otherInbox.all())
}

func TestSetName(t *testing.T) {
	f := newFixture(t, tickers.Default())
	ctx := context.Background()

	u := f.user(t, "tok")
	f.sessions.Add("tok", u)
	game := f.mem.InsertGame(models.Game{Ticker: "AB", Status: models.StatusPending, CreatedAt: time.Now()}, u.ID)

	resp, err := f.svc.SetName(ctx, u, "no spaces")
	require.NoError(t, err)
	assert.Equal(t, "name can only contain numbers, letters, and underscores", resp.Error)

	resp, err = f.svc.SetName(ctx, u, "x")
	require.NoError(t, err)
	assert.Equal(t, "name must be at least 3 characters", resp.Error)

	resp, err = f.svc.SetName(ctx, u, "gordon_gekko")
	require.NoError(t, err)
	assert.Equal(t, models.NameResponse{NewName: "gordon_gekko"}, resp)

	roster, err := f.svc.Roster(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, "gordon_gekko", roster[0].Name)

	_, cached := f.sessions.Get("tok")
	assert.False(t, cached, "rename invalidates the cached session")
}
