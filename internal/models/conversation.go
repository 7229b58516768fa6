package models

import (
	"sort"
	"strings"
	"time"
)

// Conversation is the single message thread between exactly two participants.
// Its ID is derived from the unordered participant pair, so the same two
// users always resolve to the same conversation no matter who opens it, and
// the thread can be re-derived from message history alone.
type Conversation struct {
	ID                   string    `json:"id" bson:"_id"`
	Participants         [2]string `json:"participants" bson:"participants"`
	LastMessage          string    `json:"last_message" bson:"last_message"`
	LastMessageTimestamp time.Time `json:"last_message_timestamp" bson:"last_message_timestamp"`

	// HasNewMessage is keyed by participant id: true while that participant
	// has unread messages in the thread. Derived view state, not persisted
	// as authoritative.
	HasNewMessage map[string]bool `json:"has_new_message" bson:"has_new_message"`

	// DisplayName is the resolved name of the other participant for the
	// requesting viewer. Filled in by the handler layer, never stored.
	DisplayName string `json:"display_name,omitempty" bson:"-"`
}

// Other returns the participant that is not userID, or "" if userID is not
// a participant.
func (c *Conversation) Other(userID string) string {
	switch userID {
	case c.Participants[0]:
		return c.Participants[1]
	case c.Participants[1]:
		return c.Participants[0]
	}
	return ""
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID == c.Participants[0] || userID == c.Participants[1]
}

// ConversationID derives the deterministic id for the unordered pair (a, b).
// ConversationID(a, b) == ConversationID(b, a) for all a, b.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// Message is one entry in a conversation. Immutable once created except for
// IsRead, which only ever flips false -> true.
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	SenderID       string    `json:"sender_id" bson:"sender_id"`
	ReceiverID     string    `json:"receiver_id" bson:"receiver_id"`
	Text           string    `json:"text" bson:"text"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
	IsRead         bool      `json:"is_read" bson:"is_read"`
}

// Before reports whether m sorts before other in a conversation's sequence:
// by timestamp, with id as the tie-break for equal timestamps.
func (m *Message) Before(other *Message) bool {
	if m.Timestamp.Equal(other.Timestamp) {
		return m.ID < other.ID
	}
	return m.Timestamp.Before(other.Timestamp)
}

// SendMessageRequest defines the request body for sending a chat message.
type SendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}
