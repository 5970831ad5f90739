package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

const TypeUserJoined = "userJoined"

// UserEvent is what reaches a user's channel and, from there, the wire.
type UserEvent interface {
	EventType() string
	userEvent()
}

// UserJoinedEvent carries the full roster so receivers never need a second lookup.
type UserJoinedEvent struct {
	Users []Participant
}

func (UserJoinedEvent) EventType() string { return TypeUserJoined }
func (UserJoinedEvent) userEvent()        {}

type userJoinedWire struct {
	Type  string        `json:"type"`
	Users []Participant `json:"users"`
}

func (e UserJoinedEvent) MarshalJSON() ([]byte, error) {
	users := e.Users
	if users == nil {
		users = []Participant{}
	}
	return json.Marshal(userJoinedWire{Type: TypeUserJoined, Users: users})
}

// DecodeUserEvent parses a data frame payload.
func DecodeUserEvent(data []byte) (UserEvent, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	switch head.Type {
	case TypeUserJoined:
		var w userJoinedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return UserJoinedEvent{Users: w.Users}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}
}

// EmitEvent is the abstract signal handed to the broker; it is turned into a
// concrete UserEvent before fan-out.
type EmitEvent interface {
	emitEvent()
}

// EmitUserJoined asks the broker to send the current roster.
type EmitUserJoined struct{}

func (EmitUserJoined) emitEvent() {}
