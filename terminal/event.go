package terminal

import "github.com/wfunc/boomberg/models"

// Event is one input to the engine. Exactly one is handled at a time.
type Event interface {
	event()
}

type Key int

const (
	KeyRune Key = iota
	KeyEnter
	KeyBackspace
	KeyDelete
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyTab
	KeyEscape
	// modifier-only presses
	KeyShift
	KeyCtrl
	KeyAlt
	KeyMeta
	KeyOther
)

// KeyEvent is a key press. Rune is set for KeyRune; with Ctrl set it names the
// combination, e.g. {KeyRune, 'c', Ctrl} is Ctrl-C.
type KeyEvent struct {
	Key  Key
	Rune rune
	Ctrl bool
	Alt  bool
	Meta bool
}

func (KeyEvent) event() {}

// Runes builds the key events for typing s.
func Runes(s string) []Event {
	evs := make([]Event, 0, len(s))
	for _, r := range s {
		evs = append(evs, KeyEvent{Key: KeyRune, Rune: r})
	}
	return evs
}

func (k KeyEvent) interrupt() bool {
	return k.Key == KeyRune && k.Ctrl && (k.Rune == 'c' || k.Rune == 'C')
}

func (k KeyEvent) modified() bool {
	return k.Ctrl || k.Alt || k.Meta
}

// NotifyEvent carries a server-pushed event into the engine.
type NotifyEvent struct {
	Event models.UserEvent
}

func (NotifyEvent) event() {}

// ResultEvent delivers the outcome of work started with Call.Go.
type ResultEvent struct {
	Token uint64
	Value any
	Err   error
}

func (ResultEvent) event() {}
