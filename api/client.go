// Package api is the terminal client's view of the boomberg HTTP API.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/models"
	"github.com/wfunc/boomberg/network"
)

const sessionCookie = "session"

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
}

// Client talks to one server and carries the session token between calls.
// The token is sent explicitly so that Secure cookies still work against a
// plain-http development server.
type Client struct {
	base        *url.URL
	http        *http.Client
	sessionFile string

	mutex sync.Mutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSessionFile persists the session token at path across runs.
func WithSessionFile(path string) Option {
	return func(c *Client) { c.sessionFile = path }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	c := &Client{base: base, http: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}

	if c.sessionFile != "" {
		data, err := os.ReadFile(c.sessionFile)
		switch {
		case err == nil:
			c.token = strings.TrimSpace(string(data))
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read session file: %w", err)
		}
	}
	return c, nil
}

func (c *Client) Token() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.token
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	c.remember(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

// remember keeps a token issued by the server.
func (c *Client) remember(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name != sessionCookie || ck.Value == "" {
			continue
		}
		c.mutex.Lock()
		changed := c.token != ck.Value
		c.token = ck.Value
		c.mutex.Unlock()

		if changed && c.sessionFile != "" {
			if err := os.WriteFile(c.sessionFile, []byte(ck.Value+"\n"), 0o600); err != nil {
				logger.Log.Warnf("save session file: %v", err)
			}
		}
	}
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) Me(ctx context.Context) (models.MeResponse, error) {
	var out models.MeResponse
	err := c.call(ctx, http.MethodGet, "/api/me", nil, &out)
	return out, err
}

func (c *Client) CreateGame(ctx context.Context, force bool) (models.GameResponse, error) {
	var out models.GameResponse
	err := c.call(ctx, http.MethodPost, "/api/game/create", models.CreateGameRequest{Force: force}, &out)
	return out, err
}

func (c *Client) JoinGame(ctx context.Context, ticker string, force bool) (models.GameResponse, error) {
	var out models.GameResponse
	err := c.call(ctx, http.MethodPost, "/api/game/join", models.JoinGameRequest{GameTicker: ticker, Force: force}, &out)
	return out, err
}

func (c *Client) StartGame(ctx context.Context) (models.GameResponse, error) {
	var out models.GameResponse
	err := c.call(ctx, http.MethodPost, "/api/game/start", struct{}{}, &out)
	return out, err
}

func (c *Client) Lobby(ctx context.Context, gameID int64) (models.GameResponse, error) {
	var out models.GameResponse
	err := c.call(ctx, http.MethodPost, "/api/game/lobby", models.LobbyRequest{GameID: gameID}, &out)
	return out, err
}

func (c *Client) SetName(ctx context.Context, name string) (models.NameResponse, error) {
	var out models.NameResponse
	err := c.call(ctx, http.MethodPost, "/api/user/setname", models.SetNameRequest{Name: name}, &out)
	return out, err
}

// Events holds the event stream open and calls fn for every data frame until
// ctx is cancelled or the stream ends. Heartbeats are skipped, undecodable
// frames logged and skipped.
func (c *Client) Events(ctx context.Context, fn func(models.UserEvent)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	err = network.ParseFrames(resp.Body, func(f network.Frame) error {
		if f.Kind != network.KindData {
			return nil
		}
		ev, err := models.DecodeUserEvent(f.Data)
		if err != nil {
			logger.Log.Warnf("skip event: %v", err)
			return nil
		}
		fn(ev)
		return nil
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return io.EOF
	}
	return err
}
