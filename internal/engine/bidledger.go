package engine

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sajib-dev/fixmate/backend/internal/models"
)

const bidsCollection = "bids"

// BidStatusChanged is emitted exactly once per successful status transition,
// whether the transition happened locally or was adopted from the change
// stream. ActorID is empty for remotely observed transitions.
type BidStatusChanged struct {
	Bid       models.Bid
	OldStatus models.BidStatus
	NewStatus models.BidStatus
	ActorID   string
}

// BidLedger owns bid records and enforces the status state machine. It is
// the single source of truth for a bid's state within the process; the
// document store is written through on every mutation and replayed changes
// are reconciled without regressing.
type BidLedger struct {
	store DocumentStore
	locks *keyedMutex

	mu   sync.RWMutex
	bids map[string]*models.Bid

	subMu    sync.Mutex
	subSeq   int
	subs     map[int]func(BidStatusChanged)
	onChange []func()
}

func NewBidLedger(store DocumentStore) *BidLedger {
	return &BidLedger{
		store: store,
		locks: newKeyedMutex(),
		bids:  make(map[string]*models.Bid),
		subs:  make(map[int]func(BidStatusChanged)),
	}
}

// Subscribe registers fn for status-change events and returns its cancel
// function. Events are delivered synchronously on the mutating goroutine.
func (l *BidLedger) Subscribe(fn func(BidStatusChanged)) func() {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	l.subSeq++
	id := l.subSeq
	l.subs[id] = fn
	return func() {
		l.subMu.Lock()
		defer l.subMu.Unlock()
		delete(l.subs, id)
	}
}

// OnChange registers fn to run after any commit that altered ledger state.
// Unchanged commits (replayed snapshots identical to local state) do not
// fire it.
func (l *BidLedger) OnChange(fn func()) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	l.onChange = append(l.onChange, fn)
}

func (l *BidLedger) notifyChanged() {
	l.subMu.Lock()
	fns := append([]func(){}, l.onChange...)
	l.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (l *BidLedger) emit(ev BidStatusChanged) {
	l.subMu.Lock()
	fns := make([]func(BidStatusChanged), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// SubmitBid inserts a new pending bid. The write must be acknowledged by
// the store before the bid becomes visible locally; replay of the insert
// from the change stream is deduplicated by id.
func (l *BidLedger) SubmitBid(ctx context.Context, bid *models.Bid) error {
	if bid.ContractorID == "" {
		return ErrUnauthenticated
	}
	unlock := l.locks.Lock("submit|" + bid.JobID + "|" + bid.ContractorID)
	defer unlock()

	l.mu.RLock()
	for _, existing := range l.bids {
		if existing.JobID == bid.JobID && existing.ContractorID == bid.ContractorID && existing.Status == models.BidPending {
			l.mu.RUnlock()
			return ErrDuplicateBid
		}
	}
	l.mu.RUnlock()

	if bid.ID == "" {
		bid.ID = uuid.NewString()
	}
	bid.Status = models.BidPending
	if bid.BidDate.IsZero() {
		bid.BidDate = time.Now()
	}

	if _, err := l.store.Insert(ctx, bidsCollection, bidFields(bid)); err != nil {
		return err
	}

	cp := *bid
	l.commit(&cp)
	return nil
}

// Transition moves a bid to newStatus on behalf of actorID. Validation is
// synchronous and happens before any write: an illegal or unauthorized
// transition leaves both store and local state untouched.
func (l *BidLedger) Transition(ctx context.Context, bidID string, newStatus models.BidStatus, actorID string) error {
	if actorID == "" {
		return ErrUnauthenticated
	}
	unlock := l.locks.Lock(bidID)
	defer unlock()

	l.mu.RLock()
	local, ok := l.bids[bidID]
	if !ok {
		l.mu.RUnlock()
		return ErrNotFound
	}
	bid := *local
	l.mu.RUnlock()

	// A target the state machine can never reach is illegal regardless of
	// who asks.
	if !newStatus.Valid() || newStatus == models.BidPending {
		return ErrIllegalTransition
	}

	switch newStatus {
	case models.BidAccepted, models.BidDeclined:
		if actorID != bid.HomeownerID {
			return ErrUnauthorized
		}
	case models.BidCompleted:
		if actorID != bid.ContractorID {
			return ErrUnauthorized
		}
	}

	if !bid.Status.CanTransition(newStatus) {
		return ErrIllegalTransition
	}

	if err := l.store.Update(ctx, bidsCollection, bidID, map[string]any{"status": string(newStatus)}); err != nil {
		return err
	}

	oldStatus := bid.Status
	bid.Status = newStatus
	l.commit(&bid)
	l.emit(BidStatusChanged{Bid: bid, OldStatus: oldStatus, NewStatus: newStatus, ActorID: actorID})
	return nil
}

// ApplyRemoteSnapshot reconciles a bid pushed from the change stream. The
// remote copy is adopted when its status is reachable from the local one;
// a remote status the local state has already moved past is stale and is
// dropped with a logged conflict instead of regressing.
func (l *BidLedger) ApplyRemoteSnapshot(bid *models.Bid) {
	unlock := l.locks.Lock(bid.ID)
	defer unlock()

	l.mu.RLock()
	local, ok := l.bids[bid.ID]
	var localStatus models.BidStatus
	if ok {
		localStatus = local.Status
	}
	l.mu.RUnlock()

	if !ok {
		cp := *bid
		l.commit(&cp)
		return
	}

	if localStatus == bid.Status {
		cp := *bid
		l.commit(&cp)
		return
	}

	if !localStatus.Reachable(bid.Status) {
		log.Printf("bid %s: reconciliation conflict, keeping local status %q over stale remote %q", bid.ID, localStatus, bid.Status)
		return
	}

	cp := *bid
	l.commit(&cp)
	l.emit(BidStatusChanged{Bid: cp, OldStatus: localStatus, NewStatus: cp.Status})
}

func (l *BidLedger) commit(bid *models.Bid) {
	l.mu.Lock()
	existing := l.bids[bid.ID]
	if existing != nil && *existing == *bid {
		l.mu.Unlock()
		return
	}
	l.bids[bid.ID] = bid
	l.mu.Unlock()
	l.notifyChanged()
}

// AttachConversation records the conversation created for a bid's two
// parties. No-op if already attached to the same conversation.
func (l *BidLedger) AttachConversation(ctx context.Context, bidID, conversationID string) error {
	unlock := l.locks.Lock(bidID)
	defer unlock()

	l.mu.RLock()
	local, ok := l.bids[bidID]
	if !ok {
		l.mu.RUnlock()
		return ErrNotFound
	}
	bid := *local
	l.mu.RUnlock()

	if bid.ConversationID == conversationID {
		return nil
	}
	if err := l.store.Update(ctx, bidsCollection, bidID, map[string]any{"conversation_id": conversationID}); err != nil {
		return err
	}
	bid.ConversationID = conversationID
	l.commit(&bid)
	return nil
}

// ReviewBid stores the homeowner's review text on a completed bid.
func (l *BidLedger) ReviewBid(ctx context.Context, bidID, review, actorID string) error {
	if actorID == "" {
		return ErrUnauthenticated
	}
	unlock := l.locks.Lock(bidID)
	defer unlock()

	l.mu.RLock()
	local, ok := l.bids[bidID]
	if !ok {
		l.mu.RUnlock()
		return ErrNotFound
	}
	bid := *local
	l.mu.RUnlock()

	if actorID != bid.HomeownerID {
		return ErrUnauthorized
	}
	if bid.Status != models.BidCompleted {
		return ErrIllegalTransition
	}
	if err := l.store.Update(ctx, bidsCollection, bidID, map[string]any{"review": review}); err != nil {
		return err
	}
	bid.Review = review
	l.commit(&bid)
	return nil
}

// Get returns a copy of the bid, or ErrNotFound.
func (l *BidLedger) Get(bidID string) (models.Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bid, ok := l.bids[bidID]
	if !ok {
		return models.Bid{}, ErrNotFound
	}
	return *bid, nil
}

// Bids returns copies of all bids, newest first.
func (l *BidLedger) Bids() []models.Bid {
	l.mu.RLock()
	out := make([]models.Bid, 0, len(l.bids))
	for _, bid := range l.bids {
		out = append(out, *bid)
	}
	l.mu.RUnlock()
	sortBids(out)
	return out
}

// BidsForJob returns copies of all bids on the given job, newest first.
func (l *BidLedger) BidsForJob(jobID string) []models.Bid {
	l.mu.RLock()
	var out []models.Bid
	for _, bid := range l.bids {
		if bid.JobID == jobID {
			out = append(out, *bid)
		}
	}
	l.mu.RUnlock()
	sortBids(out)
	return out
}

// BidsForUser returns copies of all bids the user participates in, as
// contractor or homeowner, newest first.
func (l *BidLedger) BidsForUser(userID string) []models.Bid {
	l.mu.RLock()
	var out []models.Bid
	for _, bid := range l.bids {
		if bid.ContractorID == userID || bid.HomeownerID == userID {
			out = append(out, *bid)
		}
	}
	l.mu.RUnlock()
	sortBids(out)
	return out
}

func sortBids(bids []models.Bid) {
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].BidDate.Equal(bids[j].BidDate) {
			return bids[i].ID < bids[j].ID
		}
		return bids[i].BidDate.After(bids[j].BidDate)
	})
}

// bidFields flattens a bid to the persisted field contract.
func bidFields(bid *models.Bid) map[string]any {
	return map[string]any{
		"_id":             bid.ID,
		"job_id":          bid.JobID,
		"contractor_id":   bid.ContractorID,
		"homeowner_id":    bid.HomeownerID,
		"price":           bid.Price,
		"description":     bid.Description,
		"status":          string(bid.Status),
		"bid_date":        bid.BidDate,
		"review":          bid.Review,
		"number":          bid.Number,
		"conversation_id": bid.ConversationID,
	}
}
