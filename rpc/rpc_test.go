package rpc

import (
	"context"
	"errors"
	"net/rpc"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/boomberg/models"
)

type fakeGames struct {
	rosters map[int64][]models.Participant
	active  map[int64][]models.Game
}

func (f *fakeGames) Roster(_ context.Context, gameID int64) ([]models.Participant, error) {
	users, ok := f.rosters[gameID]
	if !ok {
		return nil, errors.New("record not found")
	}
	return users, nil
}

func (f *fakeGames) ActiveGames(_ context.Context, userID int64) ([]models.Game, error) {
	return f.active[userID], nil
}

func TestGamesOverTCP(t *testing.T) {
	games := &fakeGames{
		rosters: map[int64][]models.Participant{7: {{ID: 1, Name: "ann"}, {ID: 2, Name: "trader2"}}},
		active:  map[int64][]models.Game{1: {{ID: 7, Ticker: "AB", CreatorID: 1, Status: models.StatusPending}}},
	}
	srv, err := NewServer("127.0.0.1:0", games)
	require.NoError(t, err)
	go srv.Start()
	defer srv.Stop()

	client, err := rpc.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer client.Close()

	var roster RosterReply
	require.NoError(t, client.Call("Games.Roster", &RosterArgs{GameID: 7}, &roster))
	assert.Equal(t, games.rosters[7], roster.Users)

	var active ActiveGamesReply
	require.NoError(t, client.Call("Games.ActiveGames", &ActiveGamesArgs{UserID: 1}, &active))
	require.Len(t, active.Games, 1)
	assert.Equal(t, "AB", active.Games[0].Ticker)

	err = client.Call("Games.Roster", &RosterArgs{GameID: 99}, &roster)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record not found")
}
