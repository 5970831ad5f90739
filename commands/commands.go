// Package commands is the command tree every terminal view dispatches into.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/wfunc/boomberg/api"
	"github.com/wfunc/boomberg/models"
	"github.com/wfunc/boomberg/terminal"
)

// API is the part of the server the commands talk to. *api.Client implements it.
type API interface {
	CreateGame(ctx context.Context, force bool) (models.GameResponse, error)
	JoinGame(ctx context.Context, ticker string, force bool) (models.GameResponse, error)
	StartGame(ctx context.Context) (models.GameResponse, error)
	Lobby(ctx context.Context, gameID int64) (models.GameResponse, error)
	SetName(ctx context.Context, name string) (models.NameResponse, error)
}

// Identity is the signed-in user. setname updates it in place, so every view
// sharing it sees the new name.
type Identity struct {
	ID   int64
	Name string
}

func New(client API, me *Identity) *terminal.Registry {
	return terminal.NewRegistry(
		&terminal.Command{Name: "help", Description: "list available commands", Action: help},
		&terminal.Command{Name: "clear", Description: "clear the screen", Action: clearScreen},
		&terminal.Command{Name: "whoami", Description: "show who you are", Action: whoami(me)},
		&terminal.Command{Name: "stonk", Description: "look at stonks", Subcommands: []*terminal.Command{
			{Name: "view", Usage: "<ticker>", Description: "open a chart for a ticker", Action: stonkView},
		}},
		&terminal.Command{Name: "view", Description: "manage views", Subcommands: []*terminal.Command{
			{Name: "terminal", Description: "open another terminal", Action: openTerminal},
			{Name: "close", Description: "close the focused view", Action: closeView},
		}},
		&terminal.Command{Name: "game", Description: "create and join games", Subcommands: []*terminal.Command{
			{Name: "create", Usage: "[--force]", Description: "create a new game", Action: createGame(client)},
			{Name: "join", Usage: "<$ticker> [--force]", Description: "join a pending game", Action: joinGame(client)},
			{Name: "start", Description: "start the game you created", Action: startGame(client)},
			{Name: "lobby", Usage: "<gameId>", Description: "watch a game's lobby", Action: lobby(client)},
		}},
		&terminal.Command{Name: "user", Description: "manage your user", Subcommands: []*terminal.Command{
			{Name: "setname", Usage: "<name>", Description: "change your display name", Action: setName(client, me)},
		}},
	)
}

func help(c *terminal.Call) terminal.BlockHandler {
	c.Message(c.Help()...)
	return nil
}

func clearScreen(c *terminal.Call) terminal.BlockHandler {
	c.Clear()
	return nil
}

func whoami(me *Identity) terminal.Action {
	return func(c *terminal.Call) terminal.BlockHandler {
		c.Print(fmt.Sprintf("%s (id %d)", me.Name, me.ID))
		return nil
	}
}

func stonkView(c *terminal.Call) terminal.BlockHandler {
	if len(c.Args) != 1 {
		c.Error("usage: stonk view <ticker>")
		return nil
	}
	ticker := strings.ToUpper(strings.TrimPrefix(c.Args[0], "$"))
	if ticker == "" {
		c.Error("usage: stonk view <ticker>")
		return nil
	}
	c.RequestView(models.StonkViewRequest{Ticker: ticker, Seed: ticker})
	return nil
}

func openTerminal(c *terminal.Call) terminal.BlockHandler {
	c.RequestView(models.TerminalViewRequest{})
	return nil
}

func closeView(c *terminal.Call) terminal.BlockHandler {
	c.RequestView(models.CloseViewRequest{})
	return nil
}

// flags parses c.Args. Output goes to the terminal, not stderr.
func flags(c *terminal.Call, define func(fs *pflag.FlagSet)) (*pflag.FlagSet, bool) {
	fs := pflag.NewFlagSet(strings.Join(c.Path, " "), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if define != nil {
		define(fs)
	}
	if err := fs.Parse(c.Args); err != nil {
		c.Errorf("%s: %v", fs.Name(), err)
		return nil, false
	}
	return fs, true
}

func createGame(client API) terminal.Action {
	return func(c *terminal.Call) terminal.BlockHandler {
		var force bool
		fs, ok := flags(c, func(fs *pflag.FlagSet) {
			fs.BoolVar(&force, "force", false, "create even if you're in other games")
		})
		if !ok {
			return nil
		}
		if fs.NArg() != 0 {
			c.Error("usage: game create [--force]")
			return nil
		}

		return c.Await("creating game...", func(ctx context.Context) (any, error) {
			return client.CreateGame(ctx, force)
		}, func(v any, err error) terminal.BlockHandler {
			if err != nil {
				renderError(c, err)
				return nil
			}
			switch res := v.(models.GameResponse).Result().(type) {
			case models.GameCreated:
				c.Print(
					fmt.Sprintf("created game $%s (%s)", res.Code, res.Desc),
					fmt.Sprintf("others can join with 'game join $%s', start it with 'game start'", res.Code),
				)
			default:
				renderResult(c, res)
			}
			return nil
		})
	}
}

func joinGame(client API) terminal.Action {
	return func(c *terminal.Call) terminal.BlockHandler {
		var force bool
		fs, ok := flags(c, func(fs *pflag.FlagSet) {
			fs.BoolVar(&force, "force", false, "join even if you're in other games")
		})
		if !ok {
			return nil
		}
		if fs.NArg() != 1 {
			c.Error("usage: game join <$ticker> [--force]")
			return nil
		}
		ticker := fs.Arg(0)

		return awaitRoster(c, "joining "+ticker+"...", func(ctx context.Context) (models.GameResponse, error) {
			return client.JoinGame(ctx, ticker, force)
		}, func(res models.GameResult) bool {
			created, ok := res.(models.GameCreated)
			if !ok {
				renderResult(c, res)
				return false
			}
			c.Print(fmt.Sprintf("joined game $%s (%s)", created.Code, created.Desc))
			return true
		}, func(users []models.Participant) bool {
			c.Message(rosterRows(users)...)
			return true
		})
	}
}

func startGame(client API) terminal.Action {
	return func(c *terminal.Call) terminal.BlockHandler {
		return c.Await("starting game...", func(ctx context.Context) (any, error) {
			return client.StartGame(ctx)
		}, func(v any, err error) terminal.BlockHandler {
			if err != nil {
				renderError(c, err)
				return nil
			}
			switch res := v.(models.GameResponse).Result().(type) {
			case models.GameCreated:
				c.Print(fmt.Sprintf("game $%s (%s) started!", res.Code, res.Desc))
			default:
				renderResult(c, res)
			}
			return nil
		})
	}
}

func lobby(client API) terminal.Action {
	return func(c *terminal.Call) terminal.BlockHandler {
		if len(c.Args) != 1 {
			c.Error("usage: game lobby <gameId>")
			return nil
		}
		gameID, err := strconv.ParseInt(c.Args[0], 10, 64)
		if err != nil || gameID <= 0 {
			c.Errorf("invalid game id: %s", c.Args[0])
			return nil
		}

		return awaitRoster(c, "entering lobby...", func(ctx context.Context) (models.GameResponse, error) {
			return client.Lobby(ctx, gameID)
		}, func(res models.GameResult) bool {
			if _, ok := res.(models.GameAccepted); !ok {
				renderResult(c, res)
				return false
			}
			c.Print(fmt.Sprintf("watching the lobby of game %d, press q to leave", gameID))
			return true
		}, func(users []models.Participant) bool {
			c.Message(rosterRows(users)...)
			return false
		}, 'q')
	}
}

// awaitRoster runs call and, when accepted reports true, keeps blocking on
// roster notifications; onRoster reports whether to stop. The server may push
// the roster before the HTTP response arrives, so one seen early is replayed.
// Pressing one of quit ends the wait.
func awaitRoster(
	c *terminal.Call,
	label string,
	call func(ctx context.Context) (models.GameResponse, error),
	accepted func(res models.GameResult) bool,
	onRoster func(users []models.Participant) bool,
	quit ...rune,
) terminal.BlockHandler {
	var early *models.UserJoinedEvent
	resolved := false

	wait := c.Await(label, func(ctx context.Context) (any, error) {
		return call(ctx)
	}, func(v any, err error) terminal.BlockHandler {
		resolved = true
		if err != nil {
			renderError(c, err)
			return nil
		}
		if !accepted(v.(models.GameResponse).Result()) {
			return nil
		}
		if early != nil && onRoster(early.Users) {
			return nil
		}

		return func(ev terminal.Event) bool {
			switch ev := ev.(type) {
			case terminal.NotifyEvent:
				if joined, ok := ev.Event.(models.UserJoinedEvent); ok {
					return onRoster(joined.Users)
				}
			case terminal.KeyEvent:
				for _, r := range quit {
					if ev.Key == terminal.KeyRune && ev.Rune == r {
						return true
					}
				}
			}
			return false
		}
	})

	return func(ev terminal.Event) bool {
		if n, ok := ev.(terminal.NotifyEvent); ok && !resolved {
			if joined, ok := n.Event.(models.UserJoinedEvent); ok {
				early = &joined
			}
		}
		return wait(ev)
	}
}

func setName(client API, me *Identity) terminal.Action {
	return func(c *terminal.Call) terminal.BlockHandler {
		if len(c.Args) != 1 {
			c.Error("usage: user setname <name>")
			return nil
		}
		name := c.Args[0]

		return c.Await("setting name...", func(ctx context.Context) (any, error) {
			return client.SetName(ctx, name)
		}, func(v any, err error) terminal.BlockHandler {
			if err != nil {
				renderError(c, err)
				return nil
			}
			res := v.(models.NameResponse)
			if res.Error != "" {
				c.Error(res.Error)
				return nil
			}
			me.Name = res.NewName
			c.SetPrompt(terminal.PromptFor(res.NewName))
			c.Print("your name is now " + res.NewName)
			return nil
		})
	}
}

func rosterRows(users []models.Participant) []terminal.Row {
	rows := []terminal.Row{terminal.Plain(fmt.Sprintf("players in the lobby (%d):", len(users)))}
	for _, u := range users {
		rows = append(rows, terminal.Plain(fmt.Sprintf("  %s (id %d)", u.Name, u.ID)))
	}
	return rows
}

func renderResult(c *terminal.Call, res models.GameResult) {
	switch res := res.(type) {
	case models.GameFailed:
		c.Error(res.Error)
	case models.GameConflict:
		rows := []terminal.Row{terminal.Warn(fmt.Sprintf("you're already in %d active game(s):", len(res.ExistingGames)))}
		for _, g := range res.ExistingGames {
			rows = append(rows, terminal.Warn(fmt.Sprintf("  $%s  game %d  %s", g.Ticker, g.ID, g.Status)))
		}
		rows = append(rows, terminal.Warn("re-run with --force to ignore them"))
		c.Message(rows...)
	case models.GameCreated:
		c.Print(fmt.Sprintf("$%s (%s)", res.Code, res.Desc))
	case models.GameAccepted:
		c.Print("ok")
	}
}

func renderError(c *terminal.Call, err error) {
	var se *api.StatusError
	switch {
	case errors.As(err, &se):
		c.Errorf("request failed: server returned %d", se.Code)
	case errors.Is(err, context.Canceled):
		// interrupted, the engine already printed ^C
	default:
		c.Errorf("request failed: %v", err)
	}
}
