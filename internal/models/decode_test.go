package models

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validBidDoc() map[string]any {
	return map[string]any{
		"_id":           "bid-1",
		"job_id":        "job-1",
		"contractor_id": "contractor-1",
		"homeowner_id":  "homeowner-1",
		"price":         float64(450),
		"description":   "fix the fence",
		"status":        "pending",
		"bid_date":      time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestDecodeBid(t *testing.T) {
	bid, err := DecodeBid(validBidDoc())
	if err != nil {
		t.Fatalf("DecodeBid: %v", err)
	}
	if bid.ID != "bid-1" || bid.Status != BidPending || bid.Price != 450 {
		t.Fatalf("decoded %+v", bid)
	}
}

func TestDecodeBidIsAtomic(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"missing id", func(d map[string]any) { delete(d, "_id") }, "_id"},
		{"missing job", func(d map[string]any) { delete(d, "job_id") }, "job_id"},
		{"missing price", func(d map[string]any) { delete(d, "price") }, "price"},
		{"missing date", func(d map[string]any) { delete(d, "bid_date") }, "bid_date"},
		{"empty contractor", func(d map[string]any) { d["contractor_id"] = "" }, "contractor_id"},
		{"price wrong type", func(d map[string]any) { d["price"] = "450" }, "price"},
		{"negative price", func(d map[string]any) { d["price"] = float64(-1) }, "price"},
		{"unknown status", func(d map[string]any) { d["status"] = "paused" }, "status"},
		{"status wrong type", func(d map[string]any) { d["status"] = 7 }, "status"},
		{"date wrong type", func(d map[string]any) { d["bid_date"] = "yesterday" }, "bid_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validBidDoc()
			tt.mutate(doc)
			bid, err := DecodeBid(doc)
			if bid != nil {
				t.Fatalf("partial bid returned for bad document")
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error = %v, want *DecodeError", err)
			}
			if de.Field != tt.field {
				t.Fatalf("failed field = %q, want %q", de.Field, tt.field)
			}
		})
	}
}

func TestDecodeBidOptionalFields(t *testing.T) {
	doc := validBidDoc()
	// Review, number and conversation id may be absent entirely.
	bid, err := DecodeBid(doc)
	if err != nil {
		t.Fatalf("DecodeBid without optionals: %v", err)
	}
	if bid.Review != "" || bid.Number != "" || bid.ConversationID != "" {
		t.Fatalf("optionals defaulted to %+v", bid)
	}

	doc["review"] = "solid work"
	doc["conversation_id"] = "a_b"
	bid, err = DecodeBid(doc)
	if err != nil {
		t.Fatalf("DecodeBid with optionals: %v", err)
	}
	if bid.Review != "solid work" || bid.ConversationID != "a_b" {
		t.Fatalf("optionals lost: %+v", bid)
	}
}

func TestDecodeBidNumericTypes(t *testing.T) {
	for _, price := range []any{int32(450), int64(450), 450, float64(450)} {
		doc := validBidDoc()
		doc["price"] = price
		bid, err := DecodeBid(doc)
		if err != nil {
			t.Fatalf("price %T: %v", price, err)
		}
		if bid.Price != 450 {
			t.Fatalf("price %T decoded as %v", price, bid.Price)
		}
	}
}

func TestDecodeMessage(t *testing.T) {
	at := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	doc := map[string]any{
		"_id":             "m1",
		"conversation_id": "a_b",
		"sender_id":       "a",
		"receiver_id":     "b",
		"text":            "hello",
		"timestamp":       primitive.NewDateTimeFromTime(at),
		"is_read":         true,
	}
	msg, err := DecodeMessage(doc)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if !msg.Timestamp.Equal(at) {
		t.Fatalf("timestamp = %v, want %v", msg.Timestamp, at)
	}
	if !msg.IsRead {
		t.Fatalf("is_read lost")
	}

	delete(doc, "text")
	if _, err := DecodeMessage(doc); err == nil {
		t.Fatalf("message without text decoded")
	}
}

func TestDecodeJob(t *testing.T) {
	doc := map[string]any{
		"_id":          "job-1",
		"homeowner_id": "homeowner-1",
		"title":        "Fix the roof",
		"posted_at":    time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	job, err := DecodeJob(doc)
	if err != nil {
		t.Fatalf("DecodeJob: %v", err)
	}
	if job.Budget != 0 || job.Location != "" {
		t.Fatalf("optional fields = %+v", job)
	}

	doc["title"] = ""
	if _, err := DecodeJob(doc); err == nil {
		t.Fatalf("job with empty title decoded")
	}
}

func TestDecodeJobNotification(t *testing.T) {
	doc := map[string]any{
		"_id":        "n1",
		"job_id":     "job-1",
		"message":    "New job posted: Fix the roof",
		"created_at": time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	n, err := DecodeJobNotification(doc)
	if err != nil {
		t.Fatalf("DecodeJobNotification: %v", err)
	}
	if n.JobID != "job-1" {
		t.Fatalf("decoded %+v", n)
	}

	delete(doc, "job_id")
	if _, err := DecodeJobNotification(doc); err == nil {
		t.Fatalf("notification without job id decoded")
	}
}
