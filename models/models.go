// models/models.go
package models

import (
	"strconv"
	"time"
)

// User is the record behind a browser or terminal session.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name,omitempty"`
	HasName   bool      `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName falls back to a synthesized label for users who never set a name.
func (u User) DisplayName() string {
	if u.HasName && u.Name != "" {
		return u.Name
	}
	return DefaultName(u.ID)
}

func DefaultName(id int64) string {
	return "trader" + strconv.FormatInt(id, 10)
}

type GameStatus string

const (
	StatusPending    GameStatus = "pending"
	StatusInProgress GameStatus = "in_progress"
	StatusCompleted  GameStatus = "completed"
)

// Game is a single trading round identified by its ticker.
type Game struct {
	ID        int64      `json:"id"`
	Ticker    string     `json:"ticker"`
	CreatorID int64      `json:"creatorId"`
	Status    GameStatus `json:"status"`
	CreatedAt time.Time  `json:"-"`
}

// Active reports whether the game still blocks its ticker.
func (g Game) Active(since time.Time) bool {
	return g.Status != StatusCompleted && g.CreatedAt.After(since)
}

// Participant is a roster entry, name already defaulted.
type Participant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
