// view/view.go
package view

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/models"
	"github.com/wfunc/boomberg/stonk"
	"github.com/wfunc/boomberg/terminal"
)

var (
	ErrLastView    = errors.New("can't close the last view")
	ErrUnknownView = errors.New("unknown view")
)

// Kind 表示视图类型
type Kind int

const (
	KindTerminal Kind = iota
	KindStonk
)

func (k Kind) String() string {
	switch k {
	case KindTerminal:
		return models.ViewTerminal
	case KindStonk:
		return models.ViewStonk
	default:
		return "unknown"
	}
}

// View 是客户端布局中的一个窗格
type View struct {
	ID        int
	Kind      Kind
	Title     string
	CreatedAt time.Time

	// 终端视图
	Engine *terminal.Engine
	// 行情视图
	Ticker string
	Stonk  *stonk.Stonk
}

// Manager 管理一个客户端打开的所有视图，并记录焦点
type Manager struct {
	factory EngineFactory

	views  []*View // 按打开顺序
	focus  int
	nextID int
	mutex  sync.RWMutex
}

func NewManager(factory EngineFactory) *Manager {
	return &Manager{factory: factory, focus: -1}
}

// Open handles a view request. A Close request closes the focused view and
// returns nil.
func (m *Manager) Open(req models.ViewRequest) (*View, error) {
	switch req := req.(type) {
	case models.StonkViewRequest:
		v := &View{
			Kind:   KindStonk,
			Title:  "$" + req.Ticker,
			Ticker: req.Ticker,
			Stonk:  stonk.New(req.Seed),
		}
		m.add(v)
		return v, nil
	case models.TerminalViewRequest:
		m.mutex.Lock()
		id := m.reserveID()
		m.mutex.Unlock()

		// 工厂在锁外调用，它可能回调 Manager
		v := &View{ID: id, Kind: KindTerminal, Title: "terminal", Engine: m.factory.NewEngine(id)}
		m.add(v)
		return v, nil
	case models.CloseViewRequest:
		focused := m.Focused()
		if focused == nil {
			return nil, ErrUnknownView
		}
		return nil, m.Close(focused.ID)
	default:
		return nil, fmt.Errorf("unsupported view request %T", req)
	}
}

func (m *Manager) reserveID() int {
	m.nextID++
	return m.nextID
}

// add appends v and focuses it.
func (m *Manager) add(v *View) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if v.ID == 0 {
		v.ID = m.reserveID()
	}
	v.CreatedAt = time.Now()
	m.views = append(m.views, v)
	m.focus = len(m.views) - 1
	logger.Log.Debugf("opened %s view %d", v.Kind, v.ID)
}

// Close removes a view. A terminal's blocked command is cancelled. The last
// open view can't be closed.
func (m *Manager) Close(id int) error {
	m.mutex.Lock()
	i := m.index(id)
	if i < 0 {
		m.mutex.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownView, id)
	}
	if len(m.views) == 1 {
		m.mutex.Unlock()
		return ErrLastView
	}

	v := m.views[i]
	m.views = append(m.views[:i], m.views[i+1:]...)
	if m.focus > i || m.focus >= len(m.views) {
		m.focus--
	}
	m.mutex.Unlock()

	if v.Engine != nil {
		v.Engine.Close()
	}
	logger.Log.Debugf("closed %s view %d", v.Kind, v.ID)
	return nil
}

func (m *Manager) index(id int) int {
	for i, v := range m.views {
		if v.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) Get(id int) (*View, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if i := m.index(id); i >= 0 {
		return m.views[i], true
	}
	return nil, false
}

// Views returns the open views in order (thread-safe copy).
func (m *Manager) Views() []*View {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]*View(nil), m.views...)
}

func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.views)
}

func (m *Manager) Focused() *View {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.focus < 0 || m.focus >= len(m.views) {
		return nil
	}
	return m.views[m.focus]
}

func (m *Manager) Focus(id int) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	i := m.index(id)
	if i < 0 {
		return false
	}
	m.focus = i
	return true
}

// FocusNext moves focus by delta, wrapping around.
func (m *Manager) FocusNext(delta int) *View {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	n := len(m.views)
	if n == 0 {
		return nil
	}
	m.focus = ((m.focus+delta)%n + n) % n
	return m.views[m.focus]
}

// Deliver hands ev to one terminal view. Events for closed views are dropped.
func (m *Manager) Deliver(id int, ev terminal.Event) bool {
	v, ok := m.Get(id)
	if !ok || v.Engine == nil {
		return false
	}
	v.Engine.Handle(ev)
	return true
}

// Broadcast hands ev to every terminal view. Engines run outside the lock:
// a command may open or close views while handling it.
func (m *Manager) Broadcast(ev terminal.Event) {
	for _, v := range m.Views() {
		if v.Engine != nil {
			v.Engine.Handle(ev)
		}
	}
}
