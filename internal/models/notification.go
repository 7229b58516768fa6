package models

import "time"

// BidNotification records a bid status change for the party that did not
// cause it (PostgreSQL). Exactly one exists per (bid, status) pair; after
// creation only IsRead may change.
type BidNotification struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	BidID       string    `json:"bid_id" gorm:"index"`
	RecipientID string    `json:"recipient_id" gorm:"index"`
	Message     string    `json:"message"`
	Status      BidStatus `json:"status" gorm:"size:20"`
	IsRead      bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

// JobNotification records a job having been posted. Read-only after creation.
type JobNotification struct {
	ID        string    `json:"id" gorm:"primaryKey"` // UUID
	JobID     string    `json:"job_id" gorm:"index"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// PendingKind distinguishes the entries of a merged pending-notification feed.
type PendingKind string

const (
	PendingBid          PendingKind = "bid"
	PendingConversation PendingKind = "conversation"
)

// PendingNotification is one entry in a user's merged notification feed:
// either a bid notification or an unread-conversation indicator. The feed is
// sorted by Timestamp descending.
type PendingNotification struct {
	Kind           PendingKind `json:"kind"`
	Timestamp      time.Time   `json:"timestamp"`
	Message        string      `json:"message"`
	BidID          string      `json:"bid_id,omitempty"`
	Status         BidStatus   `json:"status,omitempty"`
	NotificationID string      `json:"notification_id,omitempty"`
	ConversationID string      `json:"conversation_id,omitempty"`
	IsRead         bool        `json:"is_read"`
}
