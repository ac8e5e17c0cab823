package service

import (
	"context"
	"fmt"

	"github.com/mediapulse/mediapulse-back/internal/domain"
	"github.com/mediapulse/mediapulse-back/internal/quality"
	"github.com/mediapulse/mediapulse-back/internal/repository"
)

// ReportsService owns report persistence around a pipeline attempt and the
// read/visibility surface.
type ReportsService struct {
	repo      repository.ReportsRepository
	validator *quality.ReportValidator
}

func NewReportsService(repo repository.ReportsRepository, validator *quality.ReportValidator) *ReportsService {
	if validator == nil {
		validator = quality.NewReportValidator()
	}
	return &ReportsService{repo: repo, validator: validator}
}

// CompleteGeneration persists a successful attempt against the job's target
// report. Payloads without a target report id take the legacy path: owner,
// config and report are bootstrapped here before completion.
func (s *ReportsService) CompleteGeneration(
	ctx context.Context,
	payload domain.ReportRequest,
	content domain.ReportContent,
	durationMs int64,
) (domain.Report, error) {
	validated, err := s.validator.Validate(content)
	if err != nil {
		return domain.Report{}, err
	}

	reportID := payload.TargetReportID
	if reportID == "" {
		reportID, err = s.bootstrapReport(ctx, payload)
		if err != nil {
			return domain.Report{}, fmt.Errorf("bootstrap report: %w", err)
		}
	}

	report, err := s.repo.CompleteWithContent(ctx, reportID, validated, durationMs)
	if err != nil {
		return domain.Report{}, fmt.Errorf("complete report %s: %w", reportID, err)
	}
	return report, nil
}

// FailGeneration records a failed attempt. With a target report id the write
// is precise; without one it sweeps reports still generating under the
// payload's config.
func (s *ReportsService) FailGeneration(
	ctx context.Context,
	payload domain.ReportRequest,
	message string,
) error {
	if payload.TargetReportID != "" {
		if err := s.repo.MarkFailed(ctx, payload.TargetReportID, message); err != nil {
			return fmt.Errorf("mark report failed %s: %w", payload.TargetReportID, err)
		}
		return nil
	}

	ownerID, err := s.repo.BootstrapOwner(ctx, payload.CompanyDomain)
	if err != nil {
		return fmt.Errorf("resolve owner for sweep: %w", err)
	}
	configID, err := s.repo.EnsureConfig(ctx, domain.ReportConfig{
		UserID:        ownerID,
		CompanyName:   payload.CompanyName,
		CompanyDomain: payload.CompanyDomain,
		Industry:      payload.Industry,
		DateRangeDays: payload.DateRangeDays,
	})
	if err != nil {
		return fmt.Errorf("resolve config for sweep: %w", err)
	}
	if _, err := s.repo.MarkFailedByConfig(ctx, configID, message); err != nil {
		return fmt.Errorf("sweep generating reports: %w", err)
	}
	return nil
}

func (s *ReportsService) GetReport(ctx context.Context, reportID string) (domain.Report, error) {
	return s.repo.GetReport(ctx, reportID)
}

func (s *ReportsService) GetReportBySlug(ctx context.Context, slug string) (domain.Report, error) {
	return s.repo.GetReportBySlug(ctx, slug)
}

func (s *ReportsService) SetVisibility(ctx context.Context, reportID string, isPublic bool) (domain.Report, error) {
	return s.repo.SetVisibility(ctx, reportID, isPublic)
}

func (s *ReportsService) bootstrapReport(ctx context.Context, payload domain.ReportRequest) (string, error) {
	ownerID, err := s.repo.BootstrapOwner(ctx, payload.CompanyDomain)
	if err != nil {
		return "", err
	}
	configID, err := s.repo.EnsureConfig(ctx, domain.ReportConfig{
		UserID:        ownerID,
		CompanyName:   payload.CompanyName,
		CompanyDomain: payload.CompanyDomain,
		Industry:      payload.Industry,
		Keywords:      append([]string{payload.CompanyName}, payload.Competitors...),
		DateRangeDays: payload.DateRangeDays,
	})
	if err != nil {
		return "", err
	}
	return s.repo.CreateGenerating(ctx, domain.Report{
		ReportConfigID: configID,
		UserID:         ownerID,
		IsPublic:       payload.IsPublic,
	})
}
