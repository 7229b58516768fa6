package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscribeOpenFailure(t *testing.T) {
	store := newFakeStore()
	store.failWatch = ErrTransientIO
	a := NewChangeStreamAdapter(store)

	_, err := a.Subscribe(context.Background(), "bids", nil, func(ChangeEvent) {}, nil)
	if !errors.Is(err, ErrTransientIO) {
		t.Fatalf("Subscribe = %v, want ErrTransientIO", err)
	}
}

func TestSubscribeDeliversInOrder(t *testing.T) {
	store := newFakeStore()
	a := NewChangeStreamAdapter(store)

	got := make(chan string, 3)
	sub, err := a.Subscribe(context.Background(), "bids", nil, func(ev ChangeEvent) {
		got <- ev.DocumentID
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Cancel()

	for _, id := range []string{"d1", "d2", "d3"} {
		store.emit("bids", ChangeEvent{Kind: ChangeAdded, Collection: "bids", DocumentID: id})
	}
	for _, want := range []string{"d1", "d2", "d3"} {
		select {
		case id := <-got:
			if id != want {
				t.Fatalf("got %s, want %s", id, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestCancelIsSynchronous(t *testing.T) {
	store := newFakeStore()
	a := NewChangeStreamAdapter(store)

	var calls atomic.Int64
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	sub, err := a.Subscribe(context.Background(), "bids", nil, func(ev ChangeEvent) {
		calls.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	store.emit("bids", ChangeEvent{Kind: ChangeAdded, DocumentID: "d1"})
	<-started

	// Cancel while a callback is in flight: it must wait the callback out.
	done := make(chan struct{})
	go func() {
		sub.Cancel()
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("Cancel returned while a callback was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Cancel did not return after the callback finished")
	}

	// Events already queued must not reach the callback after Cancel.
	store.emit("bids", ChangeEvent{Kind: ChangeAdded, DocumentID: "d2"})
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("callback ran %d times, want 1", got)
	}

	sub.Cancel() // safe to repeat
}

func TestStreamErrorReportedOnce(t *testing.T) {
	store := newFakeStore()
	a := NewChangeStreamAdapter(store)

	errCh := make(chan error, 2)
	sub, err := a.Subscribe(context.Background(), "bids", nil, func(ChangeEvent) {}, func(err error) {
		errCh <- err
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Cancel()

	store.failStreams("bids", ErrTransientIO)
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrTransientIO) {
			t.Fatalf("onError got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for stream error")
	}
	select {
	case err := <-errCh:
		t.Fatalf("second error delivered: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelSuppressesPendingError(t *testing.T) {
	store := newFakeStore()
	a := NewChangeStreamAdapter(store)

	var reported atomic.Int64
	sub, err := a.Subscribe(context.Background(), "bids", nil, func(ChangeEvent) {}, func(error) {
		reported.Add(1)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sub.Cancel()
	store.failStreams("bids", ErrTransientIO)
	time.Sleep(50 * time.Millisecond)
	if got := reported.Load(); got != 0 {
		t.Fatalf("onError ran %d times after Cancel", got)
	}
}
