package models

import "time"

// School is an institution record maintained by the coordination office.
// Capacity and NumTeachers are nullable: staff frequently leave them blank
// until the school supplies figures.
type School struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Address       string    `db:"address" json:"address"`
	ContactPerson string    `db:"contact_person" json:"contact_person"`
	ContactPhone  string    `db:"contact_phone" json:"contact_phone,omitempty"`
	ContactEmail  string    `db:"contact_email" json:"contact_email,omitempty"`
	Location      string    `db:"location" json:"location,omitempty"`
	Capacity      *int      `db:"capacity" json:"capacity,omitempty"`
	NumTeachers   *int      `db:"num_teachers" json:"num_teachers,omitempty"`
	StartTime     string    `db:"start_time" json:"start_time,omitempty"`
	EndTime       string    `db:"end_time" json:"end_time,omitempty"`
	ExamDates     string    `db:"exam_dates" json:"exam_dates,omitempty"`
	Holidays      string    `db:"holidays" json:"holidays,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// SchoolFilter captures listing options for the directory.
type SchoolFilter struct {
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
