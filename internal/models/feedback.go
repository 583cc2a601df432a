package models

import "time"

// Feedback is a visitor-submitted comment collected after a trip. VisitID is
// nullable and currently never populated by the public intake; the column
// exists so a future version can associate feedback with a concrete visit.
type Feedback struct {
	ID         string    `db:"id" json:"id"`
	VisitID    *string   `db:"visit_id" json:"visit_id,omitempty"`
	Name       string    `db:"name" json:"name"`
	SchoolName string    `db:"school_name" json:"school_name"`
	Email      string    `db:"email" json:"email"`
	Body       string    `db:"body" json:"body"`
	TripDate   time.Time `db:"trip_date" json:"trip_date"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FeedbackFilter captures admin listing options.
type FeedbackFilter struct {
	Search   string
	Page     int
	PageSize int
}
