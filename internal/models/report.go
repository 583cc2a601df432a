package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType enumerates supported summary report categories. The legacy
// system also advertised "by_partner", but no partner column ever existed;
// requests for it are rejected explicitly rather than silently ignored.
type ReportType string

const (
	ReportTypeByDateRange ReportType = "by_date_range"
	ReportTypeBySchool    ReportType = "by_school"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob is persisted summary-report job metadata.
type ReportJob struct {
	ID             string          `db:"id" json:"id"`
	Type           ReportType      `db:"type" json:"type"`
	Params         ReportJobParams `db:"params" json:"params"`
	Status         ReportStatus    `db:"status" json:"status"`
	Progress       int             `db:"progress" json:"progress"`
	ResultFilename *string         `db:"result_filename" json:"result_filename,omitempty"`
	ResultURL      *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy      string          `db:"created_by" json:"created_by"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	FinishedAt     *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage   *string         `db:"error_message" json:"error_message,omitempty"`
}

// ReportJobParams stores the report filter, persisted as JSONB. Dates are
// kept as validated YYYY-MM-DD strings so the stored params round-trip
// exactly what the caller submitted.
type ReportJobParams struct {
	StartDate string       `json:"startDate,omitempty"`
	EndDate   string       `json:"endDate,omitempty"`
	SchoolID  string       `json:"schoolId,omitempty"`
	Format    ReportFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p ReportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ReportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ReportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportJobParams", value)
	}
	if len(data) == 0 {
		*p = ReportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report job params: %w", err)
	}
	return nil
}

// ReportSummary holds the computed aggregates for a summary report.
type ReportSummary struct {
	NumberOfSchools int `db:"number_of_schools" json:"number_of_schools"`
	NumberOfVisits  int `db:"number_of_visits" json:"number_of_visits"`
}

// DashboardCounts are the office landing page figures.
type DashboardCounts struct {
	Schools         int       `db:"schools" json:"schools"`
	ScheduledVisits int       `db:"scheduled_visits" json:"scheduled_visits"`
	CompletedVisits int       `db:"completed_visits" json:"completed_visits"`
	FeedbackEntries int       `db:"feedback_entries" json:"feedback_entries"`
	GeneratedAt     time.Time `db:"-" json:"generated_at"`
}
