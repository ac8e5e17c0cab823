package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mediapulse/mediapulse-back/internal/domain"
	"github.com/mediapulse/mediapulse-back/internal/queue"
	"github.com/mediapulse/mediapulse-back/internal/repository"
)

var ErrInvalidRequest = errors.New("invalid generation request")

var knownReportTypes = map[string]struct{}{
	"media_monitoring":     {},
	"competitor_landscape": {},
	"industry_digest":      {},
}

// JobsService is the submission boundary. Every submitted job carries an
// explicit target report id: when the caller did not pre-create a report,
// Submit bootstraps the owner, config and generating report before the job
// is enqueued.
type JobsService struct {
	queue   queue.Queue
	reports repository.ReportsRepository
}

func NewJobsService(jobQueue queue.Queue, reports repository.ReportsRepository) *JobsService {
	return &JobsService{queue: jobQueue, reports: reports}
}

func (s *JobsService) Submit(ctx context.Context, request domain.ReportRequest) (string, error) {
	request, err := normalizeRequest(request)
	if err != nil {
		return "", err
	}

	if request.TargetReportID == "" {
		reportID, err := s.prepareTargetReport(ctx, request)
		if err != nil {
			return "", fmt.Errorf("prepare target report: %w", err)
		}
		request.TargetReportID = reportID
	}

	jobID, err := s.queue.Submit(ctx, request)
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	return jobID, nil
}

func (s *JobsService) GetJob(ctx context.Context, jobID string) (domain.JobView, error) {
	return s.queue.Get(ctx, jobID)
}

func (s *JobsService) Cancel(ctx context.Context, jobID string) (bool, error) {
	return s.queue.Remove(ctx, jobID)
}

func (s *JobsService) Stats(ctx context.Context) (domain.QueueStats, error) {
	return s.queue.Stats(ctx)
}

func (s *JobsService) prepareTargetReport(ctx context.Context, request domain.ReportRequest) (string, error) {
	ownerID, err := s.reports.BootstrapOwner(ctx, request.CompanyDomain)
	if err != nil {
		return "", err
	}

	configID, err := s.reports.EnsureConfig(ctx, domain.ReportConfig{
		UserID:        ownerID,
		CompanyName:   request.CompanyName,
		CompanyDomain: request.CompanyDomain,
		Industry:      request.Industry,
		Keywords:      append([]string{request.CompanyName}, request.Competitors...),
		DateRangeDays: request.DateRangeDays,
	})
	if err != nil {
		return "", err
	}

	return s.reports.CreateGenerating(ctx, domain.Report{
		ReportConfigID: configID,
		UserID:         ownerID,
		IsPublic:       request.IsPublic,
	})
}

func normalizeRequest(request domain.ReportRequest) (domain.ReportRequest, error) {
	request.CompanyName = strings.TrimSpace(request.CompanyName)
	request.CompanyDomain = strings.ToLower(strings.TrimSpace(request.CompanyDomain))
	request.Industry = strings.TrimSpace(request.Industry)
	request.ReportType = strings.TrimSpace(request.ReportType)

	if request.CompanyName == "" || len(request.CompanyName) > 120 {
		return domain.ReportRequest{}, fmt.Errorf("%w: company_name is required", ErrInvalidRequest)
	}
	if request.CompanyDomain == "" || len(request.CompanyDomain) > 253 {
		return domain.ReportRequest{}, fmt.Errorf("%w: company_domain is required", ErrInvalidRequest)
	}
	if _, known := knownReportTypes[request.ReportType]; !known {
		return domain.ReportRequest{}, fmt.Errorf("%w: unknown report_type %q", ErrInvalidRequest, request.ReportType)
	}
	if request.DateRangeDays < 0 || request.DateRangeDays > 365 {
		return domain.ReportRequest{}, fmt.Errorf("%w: date_range_days out of range", ErrInvalidRequest)
	}
	if request.DateRangeDays == 0 {
		request.DateRangeDays = 7
	}

	competitors := make([]string, 0, len(request.Competitors))
	for _, competitor := range request.Competitors {
		if trimmed := strings.TrimSpace(competitor); trimmed != "" {
			competitors = append(competitors, trimmed)
		}
	}
	request.Competitors = competitors
	return request, nil
}
