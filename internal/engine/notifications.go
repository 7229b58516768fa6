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

// NotificationArchive persists notification records durably. The router's
// in-memory state stays authoritative for deduplication; the archive exists
// so notifications survive a restart and is replayed at startup.
type NotificationArchive interface {
	SaveBidNotification(ctx context.Context, n *models.BidNotification) error
	MarkBidNotificationRead(ctx context.Context, id string) error
	SaveJobNotification(ctx context.Context, n *models.JobNotification) error
	BidNotifications(ctx context.Context) ([]models.BidNotification, error)
	JobNotifications(ctx context.Context) ([]models.JobNotification, error)
}

// NotificationRouter folds bid and conversation events into user-facing
// notification records. All of its state is a function of prior events plus
// read status, so replaying a stream after a reconnect is harmless: records
// are keyed by (bidId, newStatus) and re-derived duplicates are dropped.
type NotificationRouter struct {
	archive NotificationArchive
	convs   *ConversationStore

	mu       sync.RWMutex
	byKey    map[string]*models.BidNotification // bidID|status -> record
	byID     map[string]*models.BidNotification
	jobByJob map[string]*models.JobNotification // jobID -> record

	changeMu sync.Mutex
	onChange []func()
}

// OnChange registers fn to run after any mutation that altered router state.
func (r *NotificationRouter) OnChange(fn func()) {
	r.changeMu.Lock()
	defer r.changeMu.Unlock()
	r.onChange = append(r.onChange, fn)
}

func (r *NotificationRouter) notifyChanged() {
	r.changeMu.Lock()
	fns := append([]func(){}, r.onChange...)
	r.changeMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// NewNotificationRouter creates a router. archive may be nil for a purely
// in-memory router (tests).
func NewNotificationRouter(archive NotificationArchive, convs *ConversationStore) *NotificationRouter {
	return &NotificationRouter{
		archive:  archive,
		convs:    convs,
		byKey:    make(map[string]*models.BidNotification),
		byID:     make(map[string]*models.BidNotification),
		jobByJob: make(map[string]*models.JobNotification),
	}
}

func dedupKey(bidID string, status models.BidStatus) string {
	return bidID + "|" + string(status)
}

// Rehydrate loads archived notifications so dedup keys survive restarts.
func (r *NotificationRouter) Rehydrate(ctx context.Context) error {
	if r.archive == nil {
		return nil
	}
	bids, err := r.archive.BidNotifications(ctx)
	if err != nil {
		return err
	}
	jobs, err := r.archive.JobNotifications(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range bids {
		n := bids[i]
		r.byKey[dedupKey(n.BidID, n.Status)] = &n
		r.byID[n.ID] = &n
	}
	for i := range jobs {
		n := jobs[i]
		r.jobByJob[n.JobID] = &n
	}
	return nil
}

// HandleBidStatusChanged derives exactly one notification per transition,
// addressed to the party that did not cause it: the contractor hears about
// homeowner decisions, the homeowner hears about completion. Reprocessing
// the same event is a no-op.
func (r *NotificationRouter) HandleBidStatusChanged(ev BidStatusChanged) {
	var recipient, text string
	switch ev.NewStatus {
	case models.BidAccepted:
		recipient = ev.Bid.ContractorID
		text = fmt.Sprintf("Your bid on job %s was accepted", ev.Bid.JobID)
	case models.BidDeclined:
		recipient = ev.Bid.ContractorID
		text = fmt.Sprintf("Your bid on job %s was declined", ev.Bid.JobID)
	case models.BidCompleted:
		recipient = ev.Bid.HomeownerID
		text = fmt.Sprintf("Work on job %s was marked completed", ev.Bid.JobID)
	default:
		return
	}

	key := dedupKey(ev.Bid.ID, ev.NewStatus)
	r.mu.Lock()
	if _, seen := r.byKey[key]; seen {
		r.mu.Unlock()
		return
	}
	n := &models.BidNotification{
		ID:          uuid.NewString(),
		BidID:       ev.Bid.ID,
		RecipientID: recipient,
		Message:     text,
		Status:      ev.NewStatus,
		CreatedAt:   time.Now(),
	}
	r.byKey[key] = n
	r.byID[n.ID] = n
	cp := *n
	r.mu.Unlock()
	r.notifyChanged()

	if r.archive != nil {
		if err := r.archive.SaveBidNotification(context.Background(), &cp); err != nil {
			log.Printf("notification archive: save bid notification %s: %v", cp.ID, err)
		}
	}
}

// HandleJobPosted records the one notification a job post produces. Keyed
// by job id so a replayed post event does not create a second record.
func (r *NotificationRouter) HandleJobPosted(job *models.Job) *models.JobNotification {
	r.mu.Lock()
	if existing, seen := r.jobByJob[job.ID]; seen {
		cp := *existing
		r.mu.Unlock()
		return &cp
	}
	n := &models.JobNotification{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		Message:   fmt.Sprintf("New job posted: %s", job.Title),
		CreatedAt: time.Now(),
	}
	r.jobByJob[job.ID] = n
	cp := *n
	r.mu.Unlock()
	r.notifyChanged()

	if r.archive != nil {
		if err := r.archive.SaveJobNotification(context.Background(), &cp); err != nil {
			log.Printf("notification archive: save job notification %s: %v", cp.ID, err)
		}
	}
	out := cp
	return &out
}

// ApplyRemoteJobNotification merges a notification document observed on the
// change stream, keeping job-id dedup intact across processes.
func (r *NotificationRouter) ApplyRemoteJobNotification(n *models.JobNotification) {
	r.mu.Lock()
	if _, seen := r.jobByJob[n.JobID]; seen {
		r.mu.Unlock()
		return
	}
	cp := *n
	r.jobByJob[n.JobID] = &cp
	r.mu.Unlock()
	r.notifyChanged()
}

// MarkRead flips a bid notification's read flag for its recipient.
func (r *NotificationRouter) MarkRead(ctx context.Context, notificationID, userID string) error {
	r.mu.Lock()
	n, ok := r.byID[notificationID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if n.RecipientID != userID {
		r.mu.Unlock()
		return ErrUnauthorized
	}
	already := n.IsRead
	n.IsRead = true
	r.mu.Unlock()

	if already {
		return nil
	}
	r.notifyChanged()
	if r.archive == nil {
		return nil
	}
	return r.archive.MarkBidNotificationRead(ctx, notificationID)
}

// PendingNotifications merges the user's bid notifications with their
// unread-conversation indicators, newest first. Message arrival has no
// persisted record of its own; the conversation's new-message flag is the
// indicator.
func (r *NotificationRouter) PendingNotifications(userID string) []models.PendingNotification {
	r.mu.RLock()
	var out []models.PendingNotification
	for _, n := range r.byID {
		if n.RecipientID != userID {
			continue
		}
		out = append(out, models.PendingNotification{
			Kind:           models.PendingBid,
			Timestamp:      n.CreatedAt,
			Message:        n.Message,
			BidID:          n.BidID,
			Status:         n.Status,
			NotificationID: n.ID,
			IsRead:         n.IsRead,
		})
	}
	r.mu.RUnlock()

	if r.convs != nil {
		for _, conv := range r.convs.UnreadConversations(userID) {
			out = append(out, models.PendingNotification{
				Kind:           models.PendingConversation,
				Timestamp:      conv.LastMessageTimestamp,
				Message:        conv.LastMessage,
				ConversationID: conv.ID,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].NotificationID+out[i].ConversationID < out[j].NotificationID+out[j].ConversationID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// UnreadCount is the number of unread entries PendingNotifications would
// return for the user.
func (r *NotificationRouter) UnreadCount(userID string) int {
	count := 0
	for _, p := range r.PendingNotifications(userID) {
		if !p.IsRead {
			count++
		}
	}
	return count
}

// JobFeed returns all job notifications, newest first.
func (r *NotificationRouter) JobFeed() []models.JobNotification {
	r.mu.RLock()
	out := make([]models.JobNotification, 0, len(r.jobByJob))
	for _, n := range r.jobByJob {
		out = append(out, *n)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
