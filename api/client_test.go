package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/boomberg/models"
)

func TestClientSessionHandling(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("session")
		if err != nil {
			seen = append(seen, "")
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok123", Path: "/", Secure: true, HttpOnly: true})
		} else {
			seen = append(seen, ck.Value)
		}
		json.NewEncoder(w).Encode(models.MeResponse{ID: 1, Name: "trader1"})
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "session")
	c, err := New(srv.URL, WithSessionFile(file))
	require.NoError(t, err)

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.MeResponse{ID: 1, Name: "trader1"}, me)

	_, err = c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"", "tok123"}, seen)

	saved, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "tok123\n", string(saved))

	// a new client picks the token up from disk
	again, err := New(srv.URL, WithSessionFile(file))
	require.NoError(t, err)
	assert.Equal(t, "tok123", again.Token())
}

func TestClientPostsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/game/join", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.JoinGameRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.JoinGameRequest{GameTicker: "$AB", Force: true}, req)
		fmt.Fprint(w, `{"code":"AB","desc":"Aardvark Bancorp"}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	resp, err := c.JoinGame(context.Background(), "$AB", true)
	require.NoError(t, err)
	assert.Equal(t, models.GameCreated{Code: "AB", Desc: "Aardvark Bancorp"}, resp.Result())
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.CreateGame(context.Background(), false)

	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "server returned 500: database unavailable", se.Error())
}

func TestClientEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: ping\ndata: ping\n\n")
		io.WriteString(w, "event: data\ndata: {\"type\":\"mystery\"}\n\n")
		io.WriteString(w, "event: data\ndata: {\"type\":\"userJoined\",\"users\":[{\"id\":2,\"name\":\"trader2\"}]}\n\n")
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	var got []models.UserEvent
	err = c.Events(context.Background(), func(ev models.UserEvent) { got = append(got, ev) })
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []models.UserEvent{
		models.UserJoinedEvent{Users: []models.Participant{{ID: 2, Name: "trader2"}}},
	}, got)
}

func TestClientEventsCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: ping\ndata: ping\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = c.Events(ctx, func(models.UserEvent) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
