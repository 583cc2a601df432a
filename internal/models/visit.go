package models

import "time"

// VisitStatus enumerates visit lifecycle states.
type VisitStatus string

const (
	VisitStatusScheduled VisitStatus = "SCHEDULED"
	VisitStatusCompleted VisitStatus = "COMPLETED"
)

// Visit is a site visit to a school at a specific date and time slot.
// VisitTime stays a plain string: office staff enter slots like "9:00" or
// "after lunch", and conflicts are defined as exact string equality on the
// (date, time) pair, not as time-window overlap.
type Visit struct {
	ID         string      `db:"id" json:"id"`
	SchoolID   string      `db:"school_id" json:"school_id"`
	SchoolName string      `db:"school_name" json:"school_name,omitempty"`
	VisitDate  time.Time   `db:"visit_date" json:"visit_date"`
	VisitTime  string      `db:"visit_time" json:"visit_time"`
	Status     VisitStatus `db:"status" json:"status"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// VisitFilter captures listing options for visits.
type VisitFilter struct {
	SchoolID string
	DateFrom *time.Time
	DateTo   *time.Time
	Status   *VisitStatus
	Page     int
	PageSize int
}
