package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/boomberg/broadcast"
	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/models"
)

var ErrStreamClosed = errors.New("stream closed")

// Subscriber is the part of the broker a stream needs.
type Subscriber interface {
	Subscribe(channel broadcast.Channel, handler broadcast.Handler) broadcast.Subscription
	Unsubscribe(sub broadcast.Subscription)
}

// Scheduler runs the heartbeat.
type Scheduler interface {
	AddTimer(delay, interval time.Duration, callback func()) int64
	RemoveTimer(id int64) bool
}

type StreamMetrics interface {
	StreamOpened()
	StreamClosed()
	HeartbeatSent()
}

type noopStreamMetrics struct{}

func (noopStreamMetrics) StreamOpened()  {}
func (noopStreamMetrics) StreamClosed()  {}
func (noopStreamMetrics) HeartbeatSent() {}

// Stream adapts one user's broker channel plus a heartbeat onto a Connection.
//
// Lock order is writeMu -> mutex -> broker. Close takes writeMu so that once
// it returns nothing more is written.
type Stream struct {
	ID     string
	UserID int64

	conn     Connection
	broker   Subscriber
	timers   Scheduler
	interval time.Duration
	metrics  StreamMetrics

	writeMu sync.Mutex
	mutex   sync.Mutex

	sub        broadcast.Subscription
	subscribed bool
	timerID    int64
	scheduled  bool
	closed     bool
	err        error

	done     chan struct{}
	doneOnce sync.Once
}

func NewStream(userID int64, conn Connection, broker Subscriber, timers Scheduler, interval time.Duration, metrics StreamMetrics) *Stream {
	if metrics == nil {
		metrics = noopStreamMetrics{}
	}
	return &Stream{
		ID:       uuid.NewString(),
		UserID:   userID,
		conn:     conn,
		broker:   broker,
		timers:   timers,
		interval: interval,
		metrics:  metrics,
		done:     make(chan struct{}),
	}
}

// Open subscribes to the user's channel, writes the first heartbeat and
// schedules the rest.
func (s *Stream) Open() error {
	s.writeMu.Lock()
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		s.writeMu.Unlock()
		return ErrStreamClosed
	}
	s.sub = s.broker.Subscribe(broadcast.UserChannel(s.UserID), s.deliver)
	s.subscribed = true
	s.mutex.Unlock()

	s.metrics.StreamOpened()
	logger.Log.Debugw("stream opened", "stream", s.ID, "user", s.UserID, "remote", s.conn.RemoteAddr())

	err := s.conn.WriteFrame(PingFrame())
	s.writeMu.Unlock()
	if err != nil {
		s.fail(err)
		return err
	}
	s.metrics.HeartbeatSent()

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.timerID = s.timers.AddTimer(s.interval, s.interval, s.heartbeat)
	s.scheduled = true
	return nil
}

// Serve blocks until ctx is cancelled or a write fails, then cleans up.
func (s *Stream) Serve(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-s.done:
	}
	closeErr := s.Close()

	s.mutex.Lock()
	writeErr := s.err
	s.mutex.Unlock()
	return errors.Join(writeErr, closeErr)
}

// Done is closed when the stream ends for any reason.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) deliver(ev models.UserEvent) {
	f, err := DataFrame(ev)
	if err != nil {
		logger.Log.Errorw("encode event", "stream", s.ID, "type", ev.EventType(), "error", err)
		return
	}
	s.write(f)
}

func (s *Stream) heartbeat() {
	if s.write(PingFrame()) {
		s.metrics.HeartbeatSent()
	}
}

// write reports whether the frame went out.
func (s *Stream) write(f Frame) bool {
	s.writeMu.Lock()
	s.mutex.Lock()
	closed := s.closed
	s.mutex.Unlock()
	if closed {
		s.writeMu.Unlock()
		return false
	}
	err := s.conn.WriteFrame(f)
	s.writeMu.Unlock()

	if err != nil {
		s.fail(err)
		return false
	}
	return true
}

func (s *Stream) fail(err error) {
	s.mutex.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mutex.Unlock()

	logger.Log.Debugw("stream write failed", "stream", s.ID, "user", s.UserID, "error", err)
	s.Close()
}

// Close unsubscribes the handler, cancels the heartbeat and closes the
// connection. Every step runs even when an earlier one fails. Calling Close
// again is a no-op.
func (s *Stream) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	s.mutex.Unlock()

	defer s.doneOnce.Do(func() { close(s.done) })

	var errs []error
	for _, step := range []func() error{s.unsubscribe, s.cancelHeartbeat, s.conn.Close} {
		if err := runStep(step); err != nil {
			errs = append(errs, err)
		}
	}

	s.metrics.StreamClosed()
	logger.Log.Debugw("stream closed", "stream", s.ID, "user", s.UserID)
	return errors.Join(errs...)
}

func (s *Stream) unsubscribe() error {
	s.mutex.Lock()
	sub, ok := s.sub, s.subscribed
	s.subscribed = false
	s.mutex.Unlock()

	if ok {
		s.broker.Unsubscribe(sub)
	}
	return nil
}

func (s *Stream) cancelHeartbeat() error {
	s.mutex.Lock()
	id, ok := s.timerID, s.scheduled
	s.scheduled = false
	s.mutex.Unlock()

	if ok {
		s.timers.RemoveTimer(id)
	}
	return nil
}

func runStep(step func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panic: %v", r)
		}
	}()
	return step()
}
