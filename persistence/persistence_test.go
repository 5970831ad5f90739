package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/boomberg/models"
)

// backends runs fn against every store that needs no external server.
func backends(t *testing.T, fn func(t *testing.T, db Database)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		db, err := NewSQLite(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		fn(t, db)
	})
}

func since() time.Time { return time.Now().Add(-24 * time.Hour) }

func TestSessions(t *testing.T) {
	backends(t, func(t *testing.T, db Database) {
		ctx := context.Background()

		created, err := db.CreateSession(ctx, "token-a")
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.False(t, created.HasName)

		found, err := db.SessionByToken(ctx, "token-a")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)

		_, err = db.SessionByToken(ctx, "missing")
		assert.ErrorIs(t, err, ErrRecordNotFound)

		require.NoError(t, db.SetUserName(ctx, created.ID, "bob"))
		u, err := db.GetUser(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, u.HasName)
		assert.Equal(t, "bob", u.DisplayName())

		assert.ErrorIs(t, db.SetUserName(ctx, 999, "nobody"), ErrRecordNotFound)
		_, err = db.GetUser(ctx, 999)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})
}

func TestGameLifecycle(t *testing.T) {
	backends(t, func(t *testing.T, db Database) {
		ctx := context.Background()
		creator, err := db.CreateSession(ctx, "creator")
		require.NoError(t, err)
		other, err := db.CreateSession(ctx, "other")
		require.NoError(t, err)

		game, err := db.CreateGame(ctx, creator.ID, "AB", since())
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, game.Status)

		_, err = db.CreateGame(ctx, other.ID, "AB", since())
		assert.ErrorIs(t, err, ErrTickerTaken)

		active, err := db.ActiveGamesByTicker(ctx, "AB", since())
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, game.ID, active[0].ID)

		mine, err := db.ActiveGamesForUser(ctx, creator.ID, since(), 10)
		require.NoError(t, err)
		assert.Len(t, mine, 1)
		theirs, err := db.ActiveGamesForUser(ctx, other.ID, since(), 10)
		require.NoError(t, err)
		assert.Empty(t, theirs)

		// games older than the window no longer count
		later, err := db.ActiveGamesByTicker(ctx, "AB", time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, later)

		require.NoError(t, db.SetGameStatus(ctx, game.ID, models.StatusCompleted))
		got, err := db.GetGame(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, got.Status)

		// a completed game releases its ticker
		_, err = db.CreateGame(ctx, other.ID, "AB", since())
		assert.NoError(t, err)

		_, err = db.GetGame(ctx, 999)
		assert.ErrorIs(t, err, ErrRecordNotFound)
		assert.ErrorIs(t, db.SetGameStatus(ctx, 999, models.StatusCompleted), ErrRecordNotFound)
	})
}

func TestParticipants(t *testing.T) {
	backends(t, func(t *testing.T, db Database) {
		ctx := context.Background()
		creator, err := db.CreateSession(ctx, "creator")
		require.NoError(t, err)
		joiner, err := db.CreateSession(ctx, "joiner")
		require.NoError(t, err)
		require.NoError(t, db.SetUserName(ctx, joiner.ID, "bob"))

		game, err := db.CreateGame(ctx, creator.ID, "XY", since())
		require.NoError(t, err)

		require.NoError(t, db.AddParticipant(ctx, game.ID, joiner.ID))
		require.NoError(t, db.AddParticipant(ctx, game.ID, joiner.ID), "joining twice is a no-op")

		roster, err := db.Participants(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, []models.Participant{
			{ID: creator.ID, Name: models.DefaultName(creator.ID)},
			{ID: joiner.ID, Name: "bob"},
		}, roster)
	})
}
