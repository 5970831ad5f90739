package terminal

import (
	"context"
	"fmt"

	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/models"
)

// Call is what an action sees: its arguments and the engine's output.
type Call struct {
	Path []string
	Args []string

	engine *Engine
	ctx    context.Context
}

// Context is cancelled when the command finishes blocking or is interrupted.
func (c *Call) Context() context.Context { return c.ctx }

func (c *Call) Message(rows ...Row) { c.engine.addMessage(rows...) }

func (c *Call) Print(lines ...string) {
	rows := make([]Row, len(lines))
	for i, l := range lines {
		rows[i] = Plain(l)
	}
	c.engine.addMessage(rows...)
}

func (c *Call) Error(msg string) { c.engine.addMessage(Error(msg)) }

func (c *Call) Errorf(format string, args ...any) { c.Error(fmt.Sprintf(format, args...)) }

func (c *Call) Warn(lines ...string) {
	rows := make([]Row, len(lines))
	for i, l := range lines {
		rows[i] = Warn(l)
	}
	c.engine.addMessage(rows...)
}

// Clear wipes the screen. The next prompt starts at the top.
func (c *Call) Clear() { c.engine.rows = c.engine.rows[:0] }

func (c *Call) SetPrompt(prompt string) { c.engine.SetPrompt(prompt) }

func (c *Call) RequestView(req models.ViewRequest) {
	if c.engine.views != nil {
		c.engine.views(req)
	}
}

func (c *Call) Help() []Row { return c.engine.registry.Help() }

// Go runs work off the event loop and posts its result back as a ResultEvent
// carrying the returned token.
func (c *Call) Go(work func(ctx context.Context) (any, error)) uint64 {
	e := c.engine
	e.nextToken++
	token := e.nextToken
	ctx, post := c.ctx, e.post

	go func() {
		var res ResultEvent
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Errorf("terminal task panicked: %v", r)
				res = ResultEvent{Token: token, Err: fmt.Errorf("command panicked: %v", r)}
			}
			post(res)
		}()
		v, err := work(ctx)
		res = ResultEvent{Token: token, Value: v, Err: err}
	}()
	return token
}

// Await shows a loading row, runs work, and hands the result to then once it
// arrives. then may return a handler to keep blocking; nil unblocks.
func (c *Call) Await(label string, work func(ctx context.Context) (any, error), then func(v any, err error) BlockHandler) BlockHandler {
	token := c.Go(work)
	c.engine.addRows(Loading(label))

	var next BlockHandler
	return func(ev Event) bool {
		if next != nil {
			return next(ev)
		}
		res, ok := ev.(ResultEvent)
		if !ok || res.Token != token {
			return false
		}
		c.engine.dropLoading()
		next = then(res.Value, res.Err)
		return next == nil
	}
}
