package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DecodeError reports a document that could not be decoded into its typed
// record. Decoding is atomic: one bad required field fails the whole
// document rather than silently defaulting.
type DecodeError struct {
	Collection string
	Field      string
	Reason     string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: field %q %s", e.Collection, e.Field, e.Reason)
}

type decoder struct {
	collection string
	doc        map[string]any
	err        *DecodeError
}

func (d *decoder) fail(field, reason string) {
	if d.err == nil {
		d.err = &DecodeError{Collection: d.collection, Field: field, Reason: reason}
	}
}

func (d *decoder) str(field string, required bool) string {
	v, ok := d.doc[field]
	if !ok || v == nil {
		if required {
			d.fail(field, "is missing")
		}
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(field, fmt.Sprintf("has type %T, want string", v))
		return ""
	}
	if required && s == "" {
		d.fail(field, "is empty")
	}
	return s
}

func (d *decoder) num(field string, required bool) float64 {
	v, ok := d.doc[field]
	if !ok || v == nil {
		if required {
			d.fail(field, "is missing")
		}
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	d.fail(field, fmt.Sprintf("has type %T, want number", v))
	return 0
}

func (d *decoder) boolean(field string) bool {
	v, ok := d.doc[field]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.fail(field, fmt.Sprintf("has type %T, want bool", v))
		return false
	}
	return b
}

func (d *decoder) timestamp(field string, required bool) time.Time {
	v, ok := d.doc[field]
	if !ok || v == nil {
		if required {
			d.fail(field, "is missing")
		}
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case primitive.DateTime:
		return t.Time()
	}
	d.fail(field, fmt.Sprintf("has type %T, want timestamp", v))
	return time.Time{}
}

// DecodeBid decodes a bids-collection document. The review, contact number
// and conversation id are the only optional fields; everything else missing
// or mistyped is a DecodeError.
func DecodeBid(doc map[string]any) (*Bid, error) {
	d := &decoder{collection: "bids", doc: doc}
	b := &Bid{
		ID:             d.str("_id", true),
		JobID:          d.str("job_id", true),
		ContractorID:   d.str("contractor_id", true),
		HomeownerID:    d.str("homeowner_id", true),
		Price:          d.num("price", true),
		Description:    d.str("description", false),
		Status:         BidStatus(d.str("status", true)),
		BidDate:        d.timestamp("bid_date", true),
		Review:         d.str("review", false),
		Number:         d.str("number", false),
		ConversationID: d.str("conversation_id", false),
	}
	if d.err != nil {
		return nil, d.err
	}
	if !b.Status.Valid() {
		return nil, &DecodeError{Collection: "bids", Field: "status", Reason: fmt.Sprintf("has unknown value %q", b.Status)}
	}
	if b.Price < 0 {
		return nil, &DecodeError{Collection: "bids", Field: "price", Reason: "is negative"}
	}
	return b, nil
}

// DecodeMessage decodes a messages-collection document.
func DecodeMessage(doc map[string]any) (*Message, error) {
	d := &decoder{collection: "messages", doc: doc}
	m := &Message{
		ID:             d.str("_id", true),
		ConversationID: d.str("conversation_id", true),
		SenderID:       d.str("sender_id", true),
		ReceiverID:     d.str("receiver_id", true),
		Text:           d.str("text", true),
		Timestamp:      d.timestamp("timestamp", true),
		IsRead:         d.boolean("is_read"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

// DecodeJob decodes a jobs-collection document.
func DecodeJob(doc map[string]any) (*Job, error) {
	d := &decoder{collection: "jobs", doc: doc}
	j := &Job{
		ID:          d.str("_id", true),
		HomeownerID: d.str("homeowner_id", true),
		Title:       d.str("title", true),
		Description: d.str("description", false),
		Location:    d.str("location", false),
		Budget:      d.num("budget", false),
		ImageURL:    d.str("image_url", false),
		PostedAt:    d.timestamp("posted_at", true),
	}
	if d.err != nil {
		return nil, d.err
	}
	return j, nil
}

// DecodeJobNotification decodes a notifications-collection document.
func DecodeJobNotification(doc map[string]any) (*JobNotification, error) {
	d := &decoder{collection: "notifications", doc: doc}
	n := &JobNotification{
		ID:        d.str("_id", true),
		JobID:     d.str("job_id", true),
		Message:   d.str("message", true),
		CreatedAt: d.timestamp("created_at", true),
	}
	if d.err != nil {
		return nil, d.err
	}
	return n, nil
}
