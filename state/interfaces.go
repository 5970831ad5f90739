// state/interfaces.go
package state

import (
	"context"

	"github.com/wfunc/boomberg/models"
)

// StatusStore persists a game's status. It breaks the import cycle between
// state and persistence.
type StatusStore interface {
	SetGameStatus(ctx context.Context, gameID int64, status models.GameStatus) error
}
