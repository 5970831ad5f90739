package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wfunc/boomberg/models"
)

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Condition 额外的转换条件, nil表示无条件
type Condition func(g models.Game) bool

// Hook 进入某个状态后执行
type Hook func(ctx context.Context, g models.Game)

// 游戏状态机
type Machine struct {
	transitions map[models.GameStatus]map[models.GameStatus]Condition // from -> to -> condition
	onEnter     map[models.GameStatus][]Hook
	mutex       sync.RWMutex
}

func NewMachine() *Machine {
	return &Machine{
		transitions: make(map[models.GameStatus]map[models.GameStatus]Condition),
		onEnter:     make(map[models.GameStatus][]Hook),
	}
}

// NewGameMachine returns the machine with the game lifecycle registered:
// pending -> in_progress -> completed, and pending -> completed.
func NewGameMachine() *Machine {
	m := NewMachine()
	m.AddTransition(models.StatusPending, models.StatusInProgress, nil)
	m.AddTransition(models.StatusPending, models.StatusCompleted, nil)
	m.AddTransition(models.StatusInProgress, models.StatusCompleted, nil)
	return m
}

func (m *Machine) AddTransition(from, to models.GameStatus, condition Condition) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[models.GameStatus]Condition)
	}
	m.transitions[from][to] = condition
}

// OnEnter registers a hook run after a game reaches status.
func (m *Machine) OnEnter(status models.GameStatus, hook Hook) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onEnter[status] = append(m.onEnter[status], hook)
}

// Can reports whether g may move to status.
func (m *Machine) Can(g models.Game, to models.GameStatus) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	conditions, exists := m.transitions[g.Status]
	if !exists {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, g.Status, to)
	}
	condition, exists := conditions[to]
	if !exists || (condition != nil && !condition(g)) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, g.Status, to)
	}
	return nil
}

// ChangeState validates the transition, persists it and runs the hooks of the
// new status. g is updated in place on success.
func (m *Machine) ChangeState(ctx context.Context, store StatusStore, g *models.Game, to models.GameStatus) error {
	if err := m.Can(*g, to); err != nil {
		return err
	}
	if err := store.SetGameStatus(ctx, g.ID, to); err != nil {
		return err
	}
	g.Status = to

	m.mutex.RLock()
	hooks := append([]Hook(nil), m.onEnter[to]...)
	m.mutex.RUnlock()

	for _, hook := range hooks {
		hook(ctx, *g)
	}
	return nil
}
