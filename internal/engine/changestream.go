package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

const streamCloseTimeout = 5 * time.Second

// EventFunc receives change events in the order the backing store reports
// them. It runs on the subscription's delivery goroutine.
type EventFunc func(ChangeEvent)

// ErrorFunc receives the failure that ended a subscription's stream. The
// adapter does not retry; the owner decides backoff and resubscription.
type ErrorFunc func(error)

// ChangeStreamAdapter turns a collection's change stream into an ordered
// callback sequence with a synchronous cancellation guarantee.
type ChangeStreamAdapter struct {
	store DocumentStore
}

func NewChangeStreamAdapter(store DocumentStore) *ChangeStreamAdapter {
	return &ChangeStreamAdapter{store: store}
}

// Subscription is the cancellation handle for one active watch.
type Subscription struct {
	cancel context.CancelFunc
	stream ChangeStream
	done   chan struct{}

	// mu is held for every callback invocation. Cancel acquires it after
	// flipping stopped, so once Cancel returns no callback is running and
	// none will run again.
	mu      sync.Mutex
	stopped bool
}

// Subscribe opens a watch on collection and delivers its events to onEvent,
// one at a time, in stream order. A watch that cannot be opened is returned
// as an error immediately. A stream that fails later is reported once via
// onError and the subscription ends; replaying missed events after a
// resubscribe is safe because all downstream state is deduplicated by id.
func (a *ChangeStreamAdapter) Subscribe(ctx context.Context, collection string, filter map[string]any, onEvent EventFunc, onError ErrorFunc) (*Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := a.store.Watch(streamCtx, collection, filter)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Subscription{
		cancel: cancel,
		stream: stream,
		done:   make(chan struct{}),
	}
	go s.pump(streamCtx, onEvent, onError)
	return s, nil
}

func (s *Subscription) pump(ctx context.Context, onEvent EventFunc, onError ErrorFunc) {
	defer close(s.done)
	for {
		ev, err := s.stream.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.deliverError(onError, err)
			return
		}
		if !s.deliver(onEvent, ev) {
			return
		}
	}
}

func (s *Subscription) deliver(onEvent EventFunc, ev ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	onEvent(ev)
	return true
}

func (s *Subscription) deliverError(onError ErrorFunc, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || onError == nil {
		return
	}
	onError(err)
}

// Cancel stops the subscription. When it returns, no further callback will
// execute. Must not be called from inside a callback.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	already := s.stopped
	s.stopped = true
	s.mu.Unlock()
	if already {
		return
	}

	s.cancel()
	<-s.done

	closeCtx, cancel := context.WithTimeout(context.Background(), streamCloseTimeout)
	defer cancel()
	_ = s.stream.Close(closeCtx)
}
