package models

import "time"

// Job represents a homeowner's job posting, stored in MongoDB.
type Job struct {
	ID          string    `json:"id" bson:"_id"`
	HomeownerID string    `json:"homeowner_id" bson:"homeowner_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Location    string    `json:"location,omitempty" bson:"location,omitempty"`
	Budget      float64   `json:"budget" bson:"budget"`
	ImageURL    string    `json:"image_url,omitempty" bson:"image_url,omitempty"`
	PostedAt    time.Time `json:"posted_at" bson:"posted_at"`
}

// PostJobRequest defines the multipart/JSON fields for posting a job. The
// image, when present, is uploaded to the blob store before the job record
// is written; the core only ever sees the resulting URL.
type PostJobRequest struct {
	Title       string  `json:"title" validate:"required,min=2,max=120"`
	Description string  `json:"description" validate:"required,min=1,max=5000"`
	Location    string  `json:"location,omitempty" validate:"omitempty,max=200"`
	Budget      float64 `json:"budget" validate:"min=0"`
}
