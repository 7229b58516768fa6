package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sajib-dev/fixmate/backend/internal/models"
)

func newTestBid(id string) *models.Bid {
	return &models.Bid{
		ID:           id,
		JobID:        "job-1",
		ContractorID: "contractor-1",
		HomeownerID:  "homeowner-1",
		Price:        250,
		Description:  "fix the fence",
		Status:       models.BidPending,
		BidDate:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func submitTestBid(t *testing.T, l *BidLedger, bid *models.Bid) {
	t.Helper()
	if err := l.SubmitBid(context.Background(), bid); err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
}

func TestBidLifecycle(t *testing.T) {
	store := newFakeStore()
	l := NewBidLedger(store)
	bid := newTestBid("bid-1")
	submitTestBid(t, l, bid)

	got, err := l.Get("bid-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.BidPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}

	if err := l.Transition(context.Background(), "bid-1", models.BidAccepted, "homeowner-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := l.Transition(context.Background(), "bid-1", models.BidCompleted, "contractor-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ = l.Get("bid-1")
	if got.Status != models.BidCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if doc := store.doc("bids", "bid-1"); doc["status"] != "completed" {
		t.Fatalf("stored status = %v, want completed", doc["status"])
	}
}

func TestTransitionAuthorization(t *testing.T) {
	tests := []struct {
		name    string
		status  models.BidStatus
		actor   string
		target  models.BidStatus
		wantErr error
	}{
		{"contractor cannot accept", models.BidPending, "contractor-1", models.BidAccepted, ErrUnauthorized},
		{"contractor cannot decline", models.BidPending, "contractor-1", models.BidDeclined, ErrUnauthorized},
		{"homeowner cannot complete", models.BidAccepted, "homeowner-1", models.BidCompleted, ErrUnauthorized},
		{"stranger cannot accept", models.BidPending, "someone-else", models.BidAccepted, ErrUnauthorized},
		{"no transition back to pending", models.BidAccepted, "homeowner-1", models.BidPending, ErrIllegalTransition},
		{"completed cannot revert to pending", models.BidCompleted, "contractor-1", models.BidPending, ErrIllegalTransition},
		{"unknown status", models.BidPending, "homeowner-1", models.BidStatus("paused"), ErrIllegalTransition},
		{"declined is terminal", models.BidDeclined, "homeowner-1", models.BidAccepted, ErrIllegalTransition},
		{"completed is terminal", models.BidCompleted, "contractor-1", models.BidCompleted, ErrIllegalTransition},
		{"cannot complete pending", models.BidPending, "contractor-1", models.BidCompleted, ErrIllegalTransition},
		{"empty actor", models.BidPending, "", models.BidAccepted, ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			l := NewBidLedger(store)
			bid := newTestBid("bid-1")
			submitTestBid(t, l, bid)
			if tt.status != models.BidPending {
				snap := *bid
				snap.Status = tt.status
				l.ApplyRemoteSnapshot(&snap)
			}

			err := l.Transition(context.Background(), "bid-1", tt.target, tt.actor)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Transition = %v, want %v", err, tt.wantErr)
			}
			got, _ := l.Get("bid-1")
			if got.Status != tt.status {
				t.Fatalf("status changed to %q after rejected transition", got.Status)
			}
		})
	}
}

func TestTransitionUnknownBid(t *testing.T) {
	l := NewBidLedger(newFakeStore())
	err := l.Transition(context.Background(), "nope", models.BidAccepted, "homeowner-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Transition = %v, want ErrNotFound", err)
	}
}

func TestSubmitDuplicatePending(t *testing.T) {
	store := newFakeStore()
	l := NewBidLedger(store)
	submitTestBid(t, l, newTestBid("bid-1"))

	dup := newTestBid("bid-2")
	err := l.SubmitBid(context.Background(), dup)
	if !errors.Is(err, ErrDuplicateBid) {
		t.Fatalf("second pending bid = %v, want ErrDuplicateBid", err)
	}

	// After the first bid is declined, the contractor may bid again.
	if err := l.Transition(context.Background(), "bid-1", models.BidDeclined, "homeowner-1"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := l.SubmitBid(context.Background(), dup); err != nil {
		t.Fatalf("resubmit after decline: %v", err)
	}
}

func TestSubmitBidStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failInsert = ErrTransientIO
	l := NewBidLedger(store)

	err := l.SubmitBid(context.Background(), newTestBid("bid-1"))
	if !errors.Is(err, ErrTransientIO) {
		t.Fatalf("SubmitBid = %v, want ErrTransientIO", err)
	}
	if _, err := l.Get("bid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed submit became visible locally")
	}
}

func TestTransitionStoreFailure(t *testing.T) {
	store := newFakeStore()
	l := NewBidLedger(store)
	submitTestBid(t, l, newTestBid("bid-1"))

	var events []BidStatusChanged
	l.Subscribe(func(ev BidStatusChanged) { events = append(events, ev) })

	store.failUpdate = ErrTransientIO
	err := l.Transition(context.Background(), "bid-1", models.BidAccepted, "homeowner-1")
	if !errors.Is(err, ErrTransientIO) {
		t.Fatalf("Transition = %v, want ErrTransientIO", err)
	}
	got, _ := l.Get("bid-1")
	if got.Status != models.BidPending {
		t.Fatalf("status = %q after failed write, want pending", got.Status)
	}
	if len(events) != 0 {
		t.Fatalf("emitted %d events for a failed transition", len(events))
	}
}

func TestApplyRemoteSnapshotNeverRegresses(t *testing.T) {
	statuses := []models.BidStatus{models.BidPending, models.BidAccepted, models.BidCompleted}
	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	for _, perm := range permutations {
		l := NewBidLedger(newFakeStore())
		for _, i := range perm {
			snap := newTestBid("bid-1")
			snap.Status = statuses[i]
			l.ApplyRemoteSnapshot(snap)
		}
		got, err := l.Get("bid-1")
		if err != nil {
			t.Fatalf("perm %v: %v", perm, err)
		}
		if got.Status != models.BidCompleted {
			t.Fatalf("perm %v: converged to %q, want completed", perm, got.Status)
		}
	}
}

func TestApplyRemoteSnapshotStaleDropped(t *testing.T) {
	l := NewBidLedger(newFakeStore())
	accepted := newTestBid("bid-1")
	accepted.Status = models.BidAccepted
	l.ApplyRemoteSnapshot(accepted)

	stale := newTestBid("bid-1")
	stale.Status = models.BidPending
	stale.Review = "should not be adopted"
	l.ApplyRemoteSnapshot(stale)

	got, _ := l.Get("bid-1")
	if got.Status != models.BidAccepted {
		t.Fatalf("status regressed to %q", got.Status)
	}
	if got.Review != "" {
		t.Fatalf("stale snapshot fields were adopted")
	}
}

func TestStatusChangeEmittedExactlyOnce(t *testing.T) {
	store := newFakeStore()
	l := NewBidLedger(store)
	submitTestBid(t, l, newTestBid("bid-1"))

	var events []BidStatusChanged
	l.Subscribe(func(ev BidStatusChanged) { events = append(events, ev) })

	if err := l.Transition(context.Background(), "bid-1", models.BidAccepted, "homeowner-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// Change-stream replay of the transition we just made.
	replay := newTestBid("bid-1")
	replay.Status = models.BidAccepted
	l.ApplyRemoteSnapshot(replay)
	l.ApplyRemoteSnapshot(replay)

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.OldStatus != models.BidPending || ev.NewStatus != models.BidAccepted || ev.ActorID != "homeowner-1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRemoteTransitionEmitsWithoutActor(t *testing.T) {
	l := NewBidLedger(newFakeStore())
	l.ApplyRemoteSnapshot(newTestBid("bid-1"))

	var events []BidStatusChanged
	l.Subscribe(func(ev BidStatusChanged) { events = append(events, ev) })

	remote := newTestBid("bid-1")
	remote.Status = models.BidAccepted
	l.ApplyRemoteSnapshot(remote)

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ActorID != "" {
		t.Fatalf("remote transition carried actor %q", events[0].ActorID)
	}
}

func TestReviewBid(t *testing.T) {
	store := newFakeStore()
	l := NewBidLedger(store)
	submitTestBid(t, l, newTestBid("bid-1"))

	err := l.ReviewBid(context.Background(), "bid-1", "great work", "homeowner-1")
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("review before completion = %v, want ErrIllegalTransition", err)
	}

	if err := l.Transition(context.Background(), "bid-1", models.BidAccepted, "homeowner-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := l.Transition(context.Background(), "bid-1", models.BidCompleted, "contractor-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := l.ReviewBid(context.Background(), "bid-1", "great work", "contractor-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("contractor review = %v, want ErrUnauthorized", err)
	}
	if err := l.ReviewBid(context.Background(), "bid-1", "great work", "homeowner-1"); err != nil {
		t.Fatalf("review: %v", err)
	}
	got, _ := l.Get("bid-1")
	if got.Review != "great work" {
		t.Fatalf("review = %q", got.Review)
	}
	if doc := store.doc("bids", "bid-1"); doc["review"] != "great work" {
		t.Fatalf("stored review = %v", doc["review"])
	}
}

func TestBidsForJobSortedNewestFirst(t *testing.T) {
	l := NewBidLedger(newFakeStore())
	older := newTestBid("bid-a")
	older.ContractorID = "contractor-2"
	newer := newTestBid("bid-b")
	newer.BidDate = older.BidDate.Add(time.Hour)
	l.ApplyRemoteSnapshot(older)
	l.ApplyRemoteSnapshot(newer)

	bids := l.BidsForJob("job-1")
	if len(bids) != 2 {
		t.Fatalf("got %d bids, want 2", len(bids))
	}
	if bids[0].ID != "bid-b" || bids[1].ID != "bid-a" {
		t.Fatalf("order = %s, %s", bids[0].ID, bids[1].ID)
	}

	forContractor := l.BidsForUser("contractor-2")
	if len(forContractor) != 1 || forContractor[0].ID != "bid-a" {
		t.Fatalf("BidsForUser = %+v", forContractor)
	}
}
