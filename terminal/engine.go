package terminal

import (
	"context"
	"fmt"

	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/models"
)

const (
	interruptMarker = "^C"
	maxRows         = 2000
)

// PromptFor is the prompt shown to a user.
func PromptFor(name string) string {
	return name + "@boom $ "
}

// Engine is one terminal view's line editor and command loop. It is not safe
// for concurrent use: the host feeds it one event at a time.
//
// When not blocked, the last row is the plain prompt row being edited and the
// cursor indexes into it (in runes), never left of the prompt.
type Engine struct {
	registry *Registry
	prompt   string

	rows   []Row
	cursor int

	history    []string
	historyPos int // -1 when not browsing
	tempDraft  string

	block   BlockHandler
	cancel  context.CancelFunc
	pending bool // inside Dispatch, the prompt row is already submitted

	post      func(Event)
	views     func(models.ViewRequest)
	nextToken uint64
}

type Option func(*Engine)

// WithPost sets where async results are sent. They must come back through Handle.
func WithPost(post func(Event)) Option {
	return func(e *Engine) { e.post = post }
}

// WithViewHandler receives view requests made by commands.
func WithViewHandler(fn func(models.ViewRequest)) Option {
	return func(e *Engine) { e.views = fn }
}

// WithWelcome puts rows above the first prompt.
func WithWelcome(rows ...Row) Option {
	return func(e *Engine) { e.rows = append(e.rows, rows...) }
}

func NewEngine(registry *Registry, prompt string, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		prompt:     prompt,
		historyPos: -1,
		post:       func(Event) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.newPrompt()
	return e
}

// DefaultWelcome is the banner of a fresh terminal.
func DefaultWelcome() []Row {
	return []Row{
		Plain("Welcome to your Boomberg terminal!"),
		Plain(""),
		Plain("Type 'help' then hit <Enter> to get started."),
		Plain(""),
	}
}

func (e *Engine) Rows() []Row {
	return append([]Row(nil), e.rows...)
}

func (e *Engine) Cursor() int { return e.cursor }

func (e *Engine) Prompt() string { return e.prompt }

func (e *Engine) PromptLen() int { return len([]rune(e.prompt)) }

func (e *Engine) Blocked() bool { return e.block != nil }

func (e *Engine) History() []string {
	return append([]string(nil), e.history...)
}

// Input is the text after the prompt, or "" while blocked.
func (e *Engine) Input() string {
	if !e.editing() {
		return ""
	}
	return string(e.lastRunes()[e.PromptLen():])
}

// SetPrompt changes the prompt, rewriting the row being edited if any.
func (e *Engine) SetPrompt(prompt string) {
	if e.editing() {
		input := e.Input()
		offset := e.cursor - e.PromptLen()
		e.prompt = prompt
		e.setLast(prompt + input)
		e.cursor = e.PromptLen() + offset
		return
	}
	e.prompt = prompt
}

// Close cancels whatever the blocked command is waiting on.
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.block = nil
}

// Handle processes one event.
func (e *Engine) Handle(ev Event) {
	if k, ok := ev.(KeyEvent); ok && k.interrupt() {
		e.interrupt()
		return
	}

	if e.block != nil {
		e.runBlock(ev)
		return
	}

	k, ok := ev.(KeyEvent)
	if !ok {
		// notifications and stale results only matter to a blocked command
		return
	}
	e.handleKey(k)
}

func (e *Engine) runBlock(ev Event) {
	unblock := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Errorf("blocking command panicked: %v", r)
				e.dropLoading()
				e.addMessage(Error(fmt.Sprintf("command failed: %v", r)))
				unblock = true
			}
		}()
		unblock = e.block(ev)
	}()

	if unblock {
		e.Close()
		e.newPrompt()
	}
}

func (e *Engine) handleKey(k KeyEvent) {
	if k.modified() {
		return
	}
	switch k.Key {
	case KeyRune:
		e.insert(k.Rune)
	case KeyEnter:
		e.submit()
	case KeyBackspace:
		if e.cursor > e.PromptLen() {
			line := e.lastRunes()
			e.setLast(string(line[:e.cursor-1]) + string(line[e.cursor:]))
			e.cursor--
		}
	case KeyDelete:
		line := e.lastRunes()
		if e.cursor < len(line) {
			e.setLast(string(line[:e.cursor]) + string(line[e.cursor+1:]))
		}
	case KeyLeft:
		if e.cursor > e.PromptLen() {
			e.cursor--
		}
	case KeyRight:
		if e.cursor < len(e.lastRunes()) {
			e.cursor++
		}
	case KeyHome:
		e.cursor = e.PromptLen()
	case KeyEnd:
		e.cursor = len(e.lastRunes())
	case KeyUp:
		e.historyBack()
	case KeyDown:
		e.historyForward()
	}
}

func (e *Engine) insert(r rune) {
	line := e.lastRunes()
	out := make([]rune, 0, len(line)+1)
	out = append(out, line[:e.cursor]...)
	out = append(out, r)
	out = append(out, line[e.cursor:]...)
	e.setLast(string(out))
	e.cursor++
}

func (e *Engine) historyBack() {
	if len(e.history) == 0 {
		return
	}
	switch {
	case e.historyPos < 0:
		e.tempDraft = e.Input()
		e.historyPos = len(e.history) - 1
	case e.historyPos > 0:
		e.historyPos--
	default:
		return
	}
	e.replaceInput(e.history[e.historyPos])
}

func (e *Engine) historyForward() {
	if e.historyPos < 0 {
		return
	}
	e.historyPos++
	if e.historyPos >= len(e.history) {
		e.historyPos = -1
		e.replaceInput(e.tempDraft)
		e.tempDraft = ""
		return
	}
	e.replaceInput(e.history[e.historyPos])
}

func (e *Engine) replaceInput(input string) {
	e.setLast(e.prompt + input)
	e.cursor = len(e.lastRunes())
}

func (e *Engine) submit() {
	input := e.Input()
	e.historyPos, e.tempDraft = -1, ""
	if input != "" {
		e.history = append(e.history, input)
	}

	// the prompt row becomes a plain transcript row
	e.cursor = 0
	block := e.dispatch(input)
	if block != nil {
		e.block = block
		return
	}
	e.newPrompt()
}

func (e *Engine) dispatch(input string) (block BlockHandler) {
	ctx, cancel := context.WithCancel(context.Background())
	call := &Call{engine: e, ctx: ctx}

	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("command %q panicked: %v", input, r)
			e.dropLoading()
			e.addMessage(Error(fmt.Sprintf("command failed: %v", r)))
			block = nil
		}
		if block == nil {
			cancel()
			return
		}
		e.cancel = cancel
	}()

	e.pending = true
	defer func() { e.pending = false }()
	return e.registry.Dispatch(call, input)
}

func (e *Engine) interrupt() {
	if e.block != nil {
		e.Close()
		e.dropLoading()
		e.addRows(Plain(interruptMarker))
	} else {
		e.setLast(string(e.lastRunes()) + interruptMarker)
	}
	e.historyPos, e.tempDraft = -1, ""
	e.newPrompt()
}

func (e *Engine) newPrompt() {
	e.addRows(Plain(e.prompt))
	e.cursor = e.PromptLen()
}

// editing reports whether the last row is the live prompt row.
func (e *Engine) editing() bool {
	return e.block == nil && !e.pending && len(e.rows) > 0 && e.rows[len(e.rows)-1].Kind == RowPlain
}

func (e *Engine) lastRunes() []rune {
	if len(e.rows) == 0 {
		return nil
	}
	return []rune(e.rows[len(e.rows)-1].Text)
}

func (e *Engine) setLast(text string) {
	e.rows[len(e.rows)-1].Text = text
}

func (e *Engine) addRows(rows ...Row) {
	e.rows = append(e.rows, rows...)
	if over := len(e.rows) - maxRows; over > 0 {
		e.rows = append(e.rows[:0], e.rows[over:]...)
	}
}

// addMessage writes output as a block: a blank separator unless the screen
// already ends blank, one row per item, then a trailing blank.
func (e *Engine) addMessage(rows ...Row) {
	var prompt *Row
	if e.editing() {
		// keep the prompt row last
		last := e.rows[len(e.rows)-1]
		prompt = &last
		e.rows = e.rows[:len(e.rows)-1]
	}

	if n := len(e.rows); n > 0 && !e.rows[n-1].blank() {
		e.addRows(Plain(""))
	}
	e.addRows(rows...)
	e.addRows(Plain(""))

	if prompt != nil {
		e.addRows(*prompt)
	}
}

func (e *Engine) dropLoading() {
	kept := e.rows[:0]
	for _, r := range e.rows {
		if r.Kind != RowLoading {
			kept = append(kept, r)
		}
	}
	e.rows = kept
}
