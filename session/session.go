// session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/models"
	"github.com/wfunc/boomberg/persistence"
)

const (
	CookieName   = "session"
	CookieMaxAge = 365 * 24 * time.Hour
)

// Cookie builds the cookie handed out with a newly issued token.
func Cookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		MaxAge:   int(CookieMaxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
	}
}

// Store is the persistence a Provider needs.
type Store interface {
	SessionByToken(ctx context.Context, token string) (*models.User, error)
	CreateSession(ctx context.Context, token string) (*models.User, error)
}

// Session管理器, token -> user 缓存
type Manager struct {
	sessions map[string]models.User
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]models.User),
	}
}

func (m *Manager) Add(token string, user models.User) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[token] = user
}

func (m *Manager) Remove(token string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, token)
}

func (m *Manager) Get(token string) (models.User, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	user, exists := m.sessions[token]
	return user, exists
}

// InvalidateUser drops every cached token of userID, e.g. after a rename.
func (m *Manager) InvalidateUser(userID int64) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	n := 0
	for token, user := range m.sessions {
		if user.ID == userID {
			delete(m.sessions, token)
			n++
		}
	}
	return n
}

func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// Provider maps opaque tokens to users, creating a record when needed.
type Provider struct {
	store    Store
	manager  *Manager
	newToken func() (string, error)
}

func NewProvider(store Store, manager *Manager) *Provider {
	if manager == nil {
		manager = NewManager()
	}
	return &Provider{store: store, manager: manager, newToken: NewToken}
}

func (p *Provider) Manager() *Manager { return p.manager }

// Resolve returns the user behind token. When token is empty or unknown a new
// session is created and its token returned as issued; otherwise issued is "".
func (p *Provider) Resolve(ctx context.Context, token string) (user models.User, issued string, err error) {
	if token != "" {
		if cached, ok := p.manager.Get(token); ok {
			return cached, "", nil
		}

		found, err := p.store.SessionByToken(ctx, token)
		switch {
		case err == nil:
			p.manager.Add(token, *found)
			return *found, "", nil
		case !errors.Is(err, persistence.ErrRecordNotFound):
			return models.User{}, "", fmt.Errorf("lookup session: %w", err)
		}
	}

	issued, err = p.newToken()
	if err != nil {
		return models.User{}, "", fmt.Errorf("generate session token: %w", err)
	}
	created, err := p.store.CreateSession(ctx, issued)
	if err != nil {
		return models.User{}, "", fmt.Errorf("create session: %w", err)
	}
	p.manager.Add(issued, *created)

	logger.Log.Infof("新会话 user=%d", created.ID)
	return *created, issued, nil
}
