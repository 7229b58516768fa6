package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sajib-dev/fixmate/backend/internal/models"
)

const (
	jobsCollection          = "jobs"
	notificationsCollection = "notifications"

	watchBackoffMin = time.Second
	watchBackoffMax = 30 * time.Second
)

// Snapshot is the read-only view model exposed to presentation code.
type Snapshot struct {
	Jobs          []models.Job
	Bids          []models.Bid
	Conversations []models.Conversation
	Messages      map[string][]models.Message
	Notifications []models.JobNotification
}

// SyncCoordinator owns the change-stream adapters and the stores they feed.
// It starts the adapters on activation, routes each collection's events to
// the right store, and guarantees every adapter is released on shutdown.
// Presentation code reads Snapshot and subscribes to the change hook; it
// never talks to the adapters directly.
type SyncCoordinator struct {
	store   DocumentStore
	adapter *ChangeStreamAdapter
	ledger  *BidLedger
	convs   *ConversationStore
	router  *NotificationRouter

	jobMu sync.RWMutex
	jobs  map[string]*models.Job

	subMu  sync.Mutex
	subSeq int
	subs   map[int]func()

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	unsubLedger func()
}

func NewSyncCoordinator(store DocumentStore, archive NotificationArchive) *SyncCoordinator {
	convs := NewConversationStore(store)
	router := NewNotificationRouter(archive, convs)
	ledger := NewBidLedger(store)

	c := &SyncCoordinator{
		store:   store,
		adapter: NewChangeStreamAdapter(store),
		ledger:  ledger,
		convs:   convs,
		router:  router,
		jobs:    make(map[string]*models.Job),
		subs:    make(map[int]func()),
	}

	// The router folds over the ledger's event stream; the stores report
	// state changes upward via callbacks and hold no reference back.
	c.unsubLedger = ledger.Subscribe(router.HandleBidStatusChanged)
	ledger.OnChange(c.notify)
	convs.OnChange(c.notify)
	router.OnChange(c.notify)
	return c
}

// Bids returns the bid ledger for direct user-initiated operations.
func (c *SyncCoordinator) Bids() *BidLedger { return c.ledger }

// Conversations returns the conversation store.
func (c *SyncCoordinator) Conversations() *ConversationStore { return c.convs }

// Notifications returns the notification router.
func (c *SyncCoordinator) Notifications() *NotificationRouter { return c.router }

// Subscribe registers fn to run whenever the snapshot actually changes, and
// returns its cancel function. Replayed events that change nothing do not
// fire it.
func (c *SyncCoordinator) Subscribe(fn func()) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subSeq++
	id := c.subSeq
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *SyncCoordinator) notify() {
	c.subMu.Lock()
	fns := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Start rehydrates local state from the store and opens one change-stream
// subscription per watched collection. It returns after the initial load;
// the watches run until Stop. Calling Start twice is an error.
func (c *SyncCoordinator) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return fmt.Errorf("sync coordinator already started")
	}

	if err := c.router.Rehydrate(ctx); err != nil {
		return fmt.Errorf("rehydrate notifications: %w", err)
	}
	if err := c.loadInitial(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true

	for collection, handle := range map[string]EventFunc{
		jobsCollection:          c.handleJobEvent,
		bidsCollection:          c.handleBidEvent,
		messagesCollection:      c.handleMessageEvent,
		notificationsCollection: c.handleNotificationEvent,
	} {
		c.wg.Add(1)
		go c.watchLoop(runCtx, collection, handle)
	}
	return nil
}

// Stop cancels every adapter subscription and waits until no callback can
// execute anymore. Safe to call more than once.
func (c *SyncCoordinator) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if !c.running {
		return
	}
	c.cancel()
	c.wg.Wait()
	c.running = false
}

func (c *SyncCoordinator) loadInitial(ctx context.Context) error {
	jobs, err := c.store.Query(ctx, jobsCollection, nil, "posted_at", false)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	for _, doc := range jobs {
		job, err := models.DecodeJob(doc)
		if err != nil {
			log.Printf("sync: skipping job document: %v", err)
			continue
		}
		c.commitJob(job)
	}

	bids, err := c.store.Query(ctx, bidsCollection, nil, "bid_date", false)
	if err != nil {
		return fmt.Errorf("load bids: %w", err)
	}
	for _, doc := range bids {
		bid, err := models.DecodeBid(doc)
		if err != nil {
			log.Printf("sync: skipping bid document: %v", err)
			continue
		}
		c.ledger.ApplyRemoteSnapshot(bid)
	}

	msgs, err := c.store.Query(ctx, messagesCollection, nil, "timestamp", false)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	for _, doc := range msgs {
		msg, err := models.DecodeMessage(doc)
		if err != nil {
			log.Printf("sync: skipping message document: %v", err)
			continue
		}
		c.convs.ApplyRemoteMessage(msg)
	}

	notifs, err := c.store.Query(ctx, notificationsCollection, nil, "created_at", false)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}
	for _, doc := range notifs {
		n, err := models.DecodeJobNotification(doc)
		if err != nil {
			log.Printf("sync: skipping notification document: %v", err)
			continue
		}
		c.router.ApplyRemoteJobNotification(n)
	}
	return nil
}

// watchLoop keeps one collection subscribed for the coordinator's lifetime,
// resubscribing with exponential backoff when the stream fails. Replayed
// events after a reconnect are harmless: every store dedups by id.
func (c *SyncCoordinator) watchLoop(ctx context.Context, collection string, handle EventFunc) {
	defer c.wg.Done()
	backoff := watchBackoffMin
	for ctx.Err() == nil {
		errCh := make(chan error, 1)
		sub, err := c.adapter.Subscribe(ctx, collection, nil, handle, func(err error) {
			errCh <- err
		})
		if err != nil {
			log.Printf("sync: watch %s: %v, retrying in %s", collection, err, backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, watchBackoffMax)
			continue
		}
		backoff = watchBackoffMin

		select {
		case <-ctx.Done():
			sub.Cancel()
			return
		case err := <-errCh:
			log.Printf("sync: stream %s failed: %v, resubscribing", collection, err)
			sub.Cancel()
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, watchBackoffMax)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *SyncCoordinator) handleJobEvent(ev ChangeEvent) {
	if ev.Kind == ChangeRemoved {
		c.jobMu.Lock()
		_, ok := c.jobs[ev.DocumentID]
		delete(c.jobs, ev.DocumentID)
		c.jobMu.Unlock()
		if ok {
			c.notify()
		}
		return
	}
	job, err := models.DecodeJob(ev.Document)
	if err != nil {
		log.Printf("sync: dropping job event: %v", err)
		return
	}
	if c.commitJob(job) {
		c.notify()
	}
}

func (c *SyncCoordinator) handleBidEvent(ev ChangeEvent) {
	if ev.Kind == ChangeRemoved {
		// Bids are never deleted; a removal is an operational anomaly, not
		// state to adopt.
		log.Printf("sync: ignoring removal of bid %s", ev.DocumentID)
		return
	}
	bid, err := models.DecodeBid(ev.Document)
	if err != nil {
		log.Printf("sync: dropping bid event: %v", err)
		return
	}
	c.ledger.ApplyRemoteSnapshot(bid)
}

func (c *SyncCoordinator) handleMessageEvent(ev ChangeEvent) {
	if ev.Kind == ChangeRemoved {
		c.convs.RemoveRemoteByID(ev.DocumentID)
		return
	}
	msg, err := models.DecodeMessage(ev.Document)
	if err != nil {
		log.Printf("sync: dropping message event: %v", err)
		return
	}
	c.convs.ApplyRemoteMessage(msg)
}

func (c *SyncCoordinator) handleNotificationEvent(ev ChangeEvent) {
	if ev.Kind == ChangeRemoved {
		return
	}
	n, err := models.DecodeJobNotification(ev.Document)
	if err != nil {
		log.Printf("sync: dropping notification event: %v", err)
		return
	}
	c.router.ApplyRemoteJobNotification(n)
}

// commitJob stores a copy of job and reports whether anything changed.
func (c *SyncCoordinator) commitJob(job *models.Job) bool {
	c.jobMu.Lock()
	defer c.jobMu.Unlock()
	existing := c.jobs[job.ID]
	if existing != nil && *existing == *job {
		return false
	}
	cp := *job
	c.jobs[job.ID] = &cp
	return true
}

// PostJob writes a new job and derives its notification. The job becomes
// visible in the snapshot as soon as the store acknowledges the write.
func (c *SyncCoordinator) PostJob(ctx context.Context, job *models.Job) (*models.JobNotification, error) {
	if job.HomeownerID == "" {
		return nil, ErrUnauthenticated
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.PostedAt.IsZero() {
		job.PostedAt = time.Now()
	}
	if _, err := c.store.Insert(ctx, jobsCollection, jobFields(job)); err != nil {
		return nil, err
	}
	if c.commitJob(job) {
		c.notify()
	}

	n := c.router.HandleJobPosted(job)
	if _, err := c.store.Insert(ctx, notificationsCollection, jobNotificationFields(n)); err != nil {
		// The job itself is durable; only the broadcast record failed.
		log.Printf("sync: persist job notification %s: %v", n.ID, err)
	}
	return n, nil
}

// Job returns a copy of the job, or ErrNotFound.
func (c *SyncCoordinator) Job(jobID string) (models.Job, error) {
	c.jobMu.RLock()
	defer c.jobMu.RUnlock()
	job, ok := c.jobs[jobID]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	return *job, nil
}

// Jobs returns copies of all jobs, newest first.
func (c *SyncCoordinator) Jobs() []models.Job {
	c.jobMu.RLock()
	out := make([]models.Job, 0, len(c.jobs))
	for _, job := range c.jobs {
		out = append(out, *job)
	}
	c.jobMu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].PostedAt.Equal(out[j].PostedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].PostedAt.After(out[j].PostedAt)
	})
	return out
}

// Snapshot assembles the current read-only view model.
func (c *SyncCoordinator) Snapshot() Snapshot {
	conversations := c.convs.All()
	messages := make(map[string][]models.Message, len(conversations))
	for _, conv := range conversations {
		messages[conv.ID] = c.convs.Messages(conv.ID)
	}
	return Snapshot{
		Jobs:          c.Jobs(),
		Bids:          c.ledger.Bids(),
		Conversations: conversations,
		Messages:      messages,
		Notifications: c.router.JobFeed(),
	}
}

func jobFields(job *models.Job) map[string]any {
	return map[string]any{
		"_id":          job.ID,
		"homeowner_id": job.HomeownerID,
		"title":        job.Title,
		"description":  job.Description,
		"location":     job.Location,
		"budget":       job.Budget,
		"image_url":    job.ImageURL,
		"posted_at":    job.PostedAt,
	}
}

func jobNotificationFields(n *models.JobNotification) map[string]any {
	return map[string]any{
		"_id":        n.ID,
		"job_id":     n.JobID,
		"message":    n.Message,
		"created_at": n.CreatedAt,
	}
}
