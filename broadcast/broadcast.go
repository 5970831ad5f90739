// broadcast/broadcast.go
package broadcast

import (
	"strconv"
	"sync"

	"github.com/wfunc/boomberg/models"
)

// Channel addresses every open connection of one user.
type Channel string

func UserChannel(userID int64) Channel {
	return Channel("user:" + strconv.FormatInt(userID, 10))
}

// Handler receives events published to the channel it subscribed to.
type Handler func(ev models.UserEvent)

// Subscription identifies one registered handler.
type Subscription struct {
	channel Channel
	id      uint64
}

func (s Subscription) Channel() Channel { return s.channel }

type subscriber struct {
	id      uint64
	handler Handler
}

// Broker is an in-process publish/subscribe registry keyed by channel.
// Publish runs handlers synchronously, in registration order, outside the lock.
type Broker struct {
	subs   map[Channel][]subscriber
	nextID uint64
	mutex  sync.RWMutex
	onSend func(delivered int)
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[Channel][]subscriber),
	}
}

// OnPublish installs a hook that observes how many handlers each publish reached.
func (b *Broker) OnPublish(fn func(delivered int)) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.onSend = fn
}

func (b *Broker) Subscribe(channel Channel, handler Handler) Subscription {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.nextID++
	b.subs[channel] = append(b.subs[channel], subscriber{id: b.nextID, handler: handler})
	return Subscription{channel: channel, id: b.nextID}
}

// Unsubscribe removes the handler. Removing twice is a no-op.
func (b *Broker) Unsubscribe(sub Subscription) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	list := b.subs[sub.channel]
	for i, s := range list {
		if s.id != sub.id {
			continue
		}
		rest := make([]subscriber, 0, len(list)-1)
		rest = append(rest, list[:i]...)
		rest = append(rest, list[i+1:]...)
		if len(rest) == 0 {
			delete(b.subs, sub.channel)
		} else {
			b.subs[sub.channel] = rest
		}
		return
	}
}

// Publish delivers ev to every handler registered on channel and returns once
// all of them have run. It returns the number of handlers invoked.
func (b *Broker) Publish(channel Channel, ev models.UserEvent) int {
	// The slice is never mutated in place, so holding on to it after
	// unlocking gives a stable snapshot even if handlers unsubscribe.
	b.mutex.RLock()
	snapshot := b.subs[channel]
	onSend := b.onSend
	b.mutex.RUnlock()

	for _, s := range snapshot {
		s.handler(ev)
	}
	if onSend != nil {
		onSend(len(snapshot))
	}
	return len(snapshot)
}

// Subscribers reports how many handlers are registered on channel.
func (b *Broker) Subscribers(channel Channel) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.subs[channel])
}
