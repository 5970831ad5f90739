package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/wfunc/boomberg/terminal"
)

// keyEvents translates a bubbletea key into engine events. Pasted text arrives
// as one message with many runes.
func keyEvents(k tea.KeyMsg) []terminal.Event {
	switch k.Type {
	case tea.KeyRunes:
		evs := make([]terminal.Event, 0, len(k.Runes))
		for _, r := range k.Runes {
			evs = append(evs, terminal.KeyEvent{Key: terminal.KeyRune, Rune: r, Alt: k.Alt && !k.Paste})
		}
		return evs
	case tea.KeySpace:
		return one(terminal.KeyEvent{Key: terminal.KeyRune, Rune: ' '})
	case tea.KeyEnter:
		return one(terminal.KeyEvent{Key: terminal.KeyEnter})
	case tea.KeyBackspace:
		return one(terminal.KeyEvent{Key: terminal.KeyBackspace})
	case tea.KeyDelete:
		return one(terminal.KeyEvent{Key: terminal.KeyDelete})
	case tea.KeyLeft:
		return one(terminal.KeyEvent{Key: terminal.KeyLeft})
	case tea.KeyRight:
		return one(terminal.KeyEvent{Key: terminal.KeyRight})
	case tea.KeyUp:
		return one(terminal.KeyEvent{Key: terminal.KeyUp})
	case tea.KeyDown:
		return one(terminal.KeyEvent{Key: terminal.KeyDown})
	case tea.KeyHome:
		return one(terminal.KeyEvent{Key: terminal.KeyHome})
	case tea.KeyEnd:
		return one(terminal.KeyEvent{Key: terminal.KeyEnd})
	case tea.KeyTab:
		return one(terminal.KeyEvent{Key: terminal.KeyTab})
	case tea.KeyEsc:
		return one(terminal.KeyEvent{Key: terminal.KeyEscape})
	case tea.KeyCtrlC:
		return one(terminal.KeyEvent{Key: terminal.KeyRune, Rune: 'c', Ctrl: true})
	default:
		// other ctrl combinations, function keys
		return one(terminal.KeyEvent{Key: terminal.KeyOther, Ctrl: true})
	}
}

func one(ev terminal.Event) []terminal.Event {
	return []terminal.Event{ev}
}
