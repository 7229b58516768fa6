package models

import "time"

// BidStatus is the lifecycle state of a bid.
type BidStatus string

const (
	BidPending   BidStatus = "pending"
	BidAccepted  BidStatus = "accepted"
	BidDeclined  BidStatus = "declined"
	BidCompleted BidStatus = "completed"
)

// Valid reports whether s is one of the four known statuses.
func (s BidStatus) Valid() bool {
	switch s {
	case BidPending, BidAccepted, BidDeclined, BidCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s BidStatus) Terminal() bool {
	return s == BidDeclined || s == BidCompleted
}

// CanTransition reports whether a single transition from s to next is legal.
// Legal moves: pending -> accepted, pending -> declined, accepted -> completed.
func (s BidStatus) CanTransition(next BidStatus) bool {
	switch s {
	case BidPending:
		return next == BidAccepted || next == BidDeclined
	case BidAccepted:
		return next == BidCompleted
	}
	return false
}

// Reachable reports whether next is reachable from s in zero or more legal
// transitions. Used when reconciling remote snapshots: a remote status that
// is not reachable from the local one is stale and must not be adopted.
func (s BidStatus) Reachable(next BidStatus) bool {
	if s == next {
		return true
	}
	if s.CanTransition(next) {
		return true
	}
	// pending -> accepted -> completed is the only two-step path.
	return s == BidPending && next == BidCompleted
}

// Bid represents a contractor's priced offer on a job, stored in MongoDB.
type Bid struct {
	ID             string    `json:"id" bson:"_id"`
	JobID          string    `json:"job_id" bson:"job_id"`
	ContractorID   string    `json:"contractor_id" bson:"contractor_id"`
	HomeownerID    string    `json:"homeowner_id" bson:"homeowner_id"`
	Price          float64   `json:"price" bson:"price"`
	Description    string    `json:"description" bson:"description"`
	Status         BidStatus `json:"status" bson:"status"`
	BidDate        time.Time `json:"bid_date" bson:"bid_date"`
	Review         string    `json:"review,omitempty" bson:"review,omitempty"`
	Number         string    `json:"number,omitempty" bson:"number,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty" bson:"conversation_id,omitempty"`
}

// SubmitBidRequest defines the request body for submitting a bid on a job.
type SubmitBidRequest struct {
	JobID       string  `json:"job_id" validate:"required"`
	Price       float64 `json:"price" validate:"min=0"`
	Description string  `json:"description" validate:"required,min=1,max=2000"`
	Number      string  `json:"number,omitempty" validate:"omitempty,max=30"`
}

// TransitionBidRequest defines the request body for moving a bid to a new status.
type TransitionBidRequest struct {
	Status BidStatus `json:"status" validate:"required,oneof=accepted declined completed"`
}

// ReviewBidRequest defines the request body for leaving a review on a completed bid.
type ReviewBidRequest struct {
	Review string `json:"review" validate:"required,min=1,max=2000"`
}
