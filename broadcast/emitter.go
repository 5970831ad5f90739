package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/boomberg/models"
)

var ErrUnknownEmitEvent = errors.New("unknown emit event")

// Roster resolves the current participants of a game.
type Roster interface {
	Participants(ctx context.Context, gameID int64) ([]models.Participant, error)
}

// Broadcaster is what game logic uses to notify players.
type Broadcaster interface {
	EmitToGame(ctx context.Context, gameID int64, ev models.EmitEvent) error
	EmitToUser(ctx context.Context, gameID, userID int64, ev models.EmitEvent) error
}

// GameBroadcaster turns abstract game signals into concrete user events and
// publishes them on the broker.
type GameBroadcaster struct {
	broker *Broker
	roster Roster
}

func NewGameBroadcaster(broker *Broker, roster Roster) *GameBroadcaster {
	return &GameBroadcaster{broker: broker, roster: roster}
}

// EmitToGame computes the payload once and publishes the same value to every
// participant's channel. Recipients and payload come from one roster read.
func (g *GameBroadcaster) EmitToGame(ctx context.Context, gameID int64, ev models.EmitEvent) error {
	users, err := g.roster.Participants(ctx, gameID)
	if err != nil {
		return fmt.Errorf("resolve participants of game %d: %w", gameID, err)
	}

	msg, err := g.toUserEvent(ctx, gameID, ev, users)
	if err != nil {
		return err
	}

	for _, u := range users {
		g.broker.Publish(UserChannel(u.ID), msg)
	}
	return nil
}

func (g *GameBroadcaster) EmitToUser(ctx context.Context, gameID, userID int64, ev models.EmitEvent) error {
	msg, err := g.toUserEvent(ctx, gameID, ev, nil)
	if err != nil {
		return err
	}
	g.broker.Publish(UserChannel(userID), msg)
	return nil
}

// toUserEvent builds the payload for ev. users is the roster already loaded
// by the caller; nil means it is read here.
func (g *GameBroadcaster) toUserEvent(ctx context.Context, gameID int64, ev models.EmitEvent, users []models.Participant) (models.UserEvent, error) {
	switch ev.(type) {
	case models.EmitUserJoined:
		if users == nil {
			var err error
			if users, err = g.roster.Participants(ctx, gameID); err != nil {
				return nil, fmt.Errorf("load roster of game %d: %w", gameID, err)
			}
		}
		return models.UserJoinedEvent{Users: users}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEmitEvent, ev)
	}
}
