package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coordoffice/cdms-api/internal/models"
	"github.com/coordoffice/cdms-api/internal/repository"
	"github.com/coordoffice/cdms-api/pkg/export"
	appErrors "github.com/coordoffice/cdms-api/pkg/errors"
	"github.com/coordoffice/cdms-api/pkg/jobs"
)

type reportJobRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	FindByFilename(ctx context.Context, filename string) (*models.ReportJob, error)
	List(ctx context.Context, page, pageSize int) ([]models.ReportJob, int, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
}

type visitAggregator interface {
	Summarize(ctx context.Context, startDate, endDate *time.Time, schoolID string) (*models.ReportSummary, error)
}

type reportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Generate(jobID, filename string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, filename string, expiresAt time.Time, err error)
}

type reportEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ReportRequest is the raw summary-report request body.
type ReportRequest struct {
	ReportType string `json:"report_type"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	SchoolID   string `json:"school_id"`
	Format     string `json:"format"`
}

// ReportService owns summary-report jobs end to end: request validation,
// background generation, download resolution, and file retention.
type ReportService struct {
	repo      reportJobRepository
	visits    visitAggregator
	schools   visitSchoolLookup
	storage   reportStorage
	signer    downloadSigner
	queue     reportEnqueuer
	metrics   *MetricsService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
	resultTTL time.Duration
	urlPrefix string
}

// NewReportService constructs a ReportService. urlPrefix is the API prefix
// the signed download route lives under, e.g. "/api/v1".
func NewReportService(
	repo reportJobRepository,
	visits visitAggregator,
	schools visitSchoolLookup,
	storage reportStorage,
	signer downloadSigner,
	logger *zap.Logger,
	resultTTL time.Duration,
	urlPrefix string,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:      repo,
		visits:    visits,
		schools:   schools,
		storage:   storage,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
		resultTTL: resultTTL,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}
}

// SetQueue wires the background queue. Separate from the constructor because
// the queue's handler is this service's Generate method.
func (s *ReportService) SetQueue(queue reportEnqueuer) {
	s.queue = queue
}

// SetMetrics wires the optional Prometheus instrumentation.
func (s *ReportService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Request validates a summary-report request, persists a queued job, and
// hands it to the background queue.
func (s *ReportService) Request(ctx context.Context, userID string, req ReportRequest) (*models.ReportJob, error) {
	reportType, params, err := s.validateRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	job := &models.ReportJob{
		Type:      reportType,
		Params:    *params,
		Status:    models.ReportStatusQueued,
		CreatedBy: userID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(reportType)}); err != nil {
			s.logger.Error("failed to enqueue report job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	s.logger.Info("report job queued",
		zap.String("job_id", job.ID),
		zap.String("report_type", string(reportType)),
		zap.String("created_by", userID))
	return job, nil
}

func (s *ReportService) validateRequest(ctx context.Context, req ReportRequest) (models.ReportType, *models.ReportJobParams, error) {
	rawType := strings.TrimSpace(req.ReportType)
	var reportType models.ReportType
	switch models.ReportType(rawType) {
	case models.ReportTypeByDateRange:
		reportType = models.ReportTypeByDateRange
	case models.ReportTypeBySchool:
		reportType = models.ReportTypeBySchool
	case "by_partner":
		// The legacy UI listed this option but the data model never had
		// partners. Refuse it loudly instead of generating an empty report.
		return "", nil, appErrors.Validation("report_type by_partner is not supported", nil)
	default:
		return "", nil, appErrors.Validation(
			fmt.Sprintf("report_type must be %s or %s", models.ReportTypeByDateRange, models.ReportTypeBySchool), nil)
	}

	params := &models.ReportJobParams{
		StartDate: strings.TrimSpace(req.StartDate),
		EndDate:   strings.TrimSpace(req.EndDate),
		SchoolID:  strings.TrimSpace(req.SchoolID),
	}

	var start, end *time.Time
	var err error
	if start, err = parseOptionalDate(params.StartDate, "start_date"); err != nil {
		return "", nil, err
	}
	if end, err = parseOptionalDate(params.EndDate, "end_date"); err != nil {
		return "", nil, err
	}
	if start != nil && end != nil && start.After(*end) {
		return "", nil, appErrors.Validation("start_date must not be after end_date", nil)
	}

	if reportType == models.ReportTypeBySchool {
		if params.SchoolID == "" {
			return "", nil, appErrors.Validation("school_id is required for by_school reports", nil)
		}
		if _, err := s.schools.FindByID(ctx, params.SchoolID); err != nil {
			if err == sql.ErrNoRows {
				return "", nil, appErrors.Validation("school does not exist", nil)
			}
			return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
		}
	} else if params.SchoolID != "" {
		return "", nil, appErrors.Validation("school_id only applies to by_school reports", nil)
	}

	switch strings.ToLower(strings.TrimSpace(req.Format)) {
	case "", "csv":
		params.Format = models.ReportFormatCSV
	case "pdf":
		params.Format = models.ReportFormatPDF
	default:
		return "", nil, appErrors.Validation("format must be csv or pdf", nil)
	}

	return reportType, params, nil
}

// Generate runs as the queue handler. It computes the aggregates, renders
// the export file, stores it, and finishes the job with a signed download
// URL. A failure marks the job FAILED; the queue's retry brings it back
// through here with the stored params intact.
func (s *ReportService) Generate(ctx context.Context, job jobs.Job) error {
	record, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", job.ID, err)
	}
	if record.Status == models.ReportStatusFinished {
		return nil
	}

	if err := s.setStatus(ctx, record.ID, models.ReportStatusProcessing, 10); err != nil {
		return err
	}

	if err := s.generate(ctx, record); err != nil {
		s.fail(ctx, record.ID, err)
		s.metrics.RecordReportGenerated(string(record.Type), string(record.Params.Format), "failed")
		return err
	}
	s.metrics.RecordReportGenerated(string(record.Type), string(record.Params.Format), "finished")
	return nil
}

func (s *ReportService) generate(ctx context.Context, record *models.ReportJob) error {
	start, err := parseOptionalDate(record.Params.StartDate, "start_date")
	if err != nil {
		return err
	}
	end, err := parseOptionalDate(record.Params.EndDate, "end_date")
	if err != nil {
		return err
	}

	summary, err := s.visits.Summarize(ctx, start, end, record.Params.SchoolID)
	if err != nil {
		return fmt.Errorf("summarize visits: %w", err)
	}
	_ = s.setStatus(ctx, record.ID, models.ReportStatusProcessing, 50)

	data, ext, err := s.render(record, summary)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("summary_%s_%s.%s", record.Type, time.Now().UTC().Format("20060102_150405"), ext)
	if _, err := s.storage.Save(filename, data); err != nil {
		return fmt.Errorf("store report file: %w", err)
	}
	_ = s.setStatus(ctx, record.ID, models.ReportStatusProcessing, 90)

	token, _, err := s.signer.Generate(record.ID, filename)
	if err != nil {
		return fmt.Errorf("sign download url: %w", err)
	}
	resultURL := fmt.Sprintf("%s/reports/export/%s", s.urlPrefix, token)

	status := models.ReportStatusFinished
	progress := 100
	finishedAt := time.Now().UTC()
	if err := s.repo.Update(ctx, record.ID, repository.UpdateReportJobParams{
		Status:         &status,
		Progress:       &progress,
		ResultFilename: &filename,
		ResultURL:      &resultURL,
		FinishedAt:     &finishedAt,
	}); err != nil {
		return fmt.Errorf("finish report job: %w", err)
	}

	s.logger.Info("report generated",
		zap.String("job_id", record.ID),
		zap.String("filename", filename),
		zap.Int("number_of_schools", summary.NumberOfSchools),
		zap.Int("number_of_visits", summary.NumberOfVisits))
	return nil
}

func (s *ReportService) render(record *models.ReportJob, summary *models.ReportSummary) ([]byte, string, error) {
	out := export.Summary{
		Title: reportTitle(record.Type),
		Metrics: []export.Metric{
			{Name: "Number of Schools", Value: fmt.Sprintf("%d", summary.NumberOfSchools)},
			{Name: "Number of Visits", Value: fmt.Sprintf("%d", summary.NumberOfVisits)},
		},
	}

	switch record.Params.Format {
	case models.ReportFormatPDF:
		data, err := s.pdf.Render(out)
		if err != nil {
			return nil, "", fmt.Errorf("render pdf: %w", err)
		}
		return data, "pdf", nil
	default:
		data, err := s.csv.Render(out)
		if err != nil {
			return nil, "", fmt.Errorf("render csv: %w", err)
		}
		return data, "csv", nil
	}
}

func reportTitle(t models.ReportType) string {
	if t == models.ReportTypeBySchool {
		return "Visit Summary by School"
	}
	return "Visit Summary by Date Range"
}

// GetStatus returns a job by id.
func (s *ReportService) GetStatus(ctx context.Context, id string) (*models.ReportJob, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return record, nil
}

// List returns report jobs newest first.
func (s *ReportService) List(ctx context.Context, page, pageSize int) ([]models.ReportJob, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return records, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Download is a resolved report file ready to stream.
type Download struct {
	File     *os.File
	Filename string
	Format   models.ReportFormat
}

// ResolveByFilename opens a finished report by its exact stored filename.
func (s *ReportService) ResolveByFilename(ctx context.Context, filename string) (*Download, error) {
	record, err := s.repo.FindByFilename(ctx, filename)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve report file")
	}
	return s.open(record)
}

// ResolveByToken opens a finished report through a signed download token.
func (s *ReportService) ResolveByToken(ctx context.Context, token string) (*Download, error) {
	jobID, filename, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download link is invalid or expired")
	}

	record, err := s.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if record.ResultFilename == nil || *record.ResultFilename != filename {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report file not found")
	}
	return s.open(record)
}

func (s *ReportService) open(record *models.ReportJob) (*Download, error) {
	if record.Status != models.ReportStatusFinished || record.ResultFilename == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report is not ready for download")
	}
	file, err := s.storage.Open(*record.ResultFilename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report file has been removed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	return &Download{File: file, Filename: *record.ResultFilename, Format: record.Params.Format}, nil
}

// RecoverQueuedJobs re-enqueues jobs left QUEUED by a previous process.
func (s *ReportService) RecoverQueuedJobs(ctx context.Context, limit int) error {
	if s.queue == nil {
		return nil
	}
	queued, err := s.repo.ListQueued(ctx, limit)
	if err != nil {
		return fmt.Errorf("list queued report jobs: %w", err)
	}
	for _, record := range queued {
		if err := s.queue.Enqueue(jobs.Job{ID: record.ID, Type: string(record.Type)}); err != nil {
			s.logger.Error("failed to requeue report job", zap.String("job_id", record.ID), zap.Error(err))
			continue
		}
		s.logger.Info("recovered queued report job", zap.String("job_id", record.ID))
	}
	return nil
}

// StartCleanup launches the retention loop that removes report files older
// than the configured TTL. It exits when the context is cancelled.
func (s *ReportService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.resultTTL <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.storage.CleanupOlderThan(s.resultTTL)
				if err != nil {
					s.logger.Error("report cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("removed expired report files", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func (s *ReportService) setStatus(ctx context.Context, id string, status models.ReportStatus, progress int) error {
	if err := s.repo.Update(ctx, id, repository.UpdateReportJobParams{Status: &status, Progress: &progress}); err != nil {
		return fmt.Errorf("update report job %s: %w", id, err)
	}
	return nil
}

func (s *ReportService) fail(ctx context.Context, id string, cause error) {
	status := models.ReportStatusFailed
	msg := cause.Error()
	if err := s.repo.Update(ctx, id, repository.UpdateReportJobParams{Status: &status, ErrorMessage: &msg}); err != nil {
		s.logger.Error("failed to mark report job failed", zap.String("job_id", id), zap.Error(err))
	}
}
