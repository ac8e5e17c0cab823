package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mediapulse/mediapulse-back/internal/domain"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrSlugCollision = errors.New("public slug already taken")
)

// ReportsRepository is the persistence boundary for generated reports, their
// configs and placeholder owners.
type ReportsRepository interface {
	// CreateGenerating inserts a report in generating state and returns its id.
	CreateGenerating(ctx context.Context, report domain.Report) (string, error)
	// CompleteWithContent moves a generating report to completed, stores its
	// content and duration, and assigns a public slug when the report is
	// public. Returns the updated report.
	CompleteWithContent(ctx context.Context, reportID string, content domain.ReportContent, durationMs int64) (domain.Report, error)
	// MarkFailed moves a generating report to failed with the error message.
	MarkFailed(ctx context.Context, reportID, message string) error
	// MarkFailedByConfig fails every report still generating under a config.
	// Best-effort sweep for jobs submitted without a target report id.
	MarkFailedByConfig(ctx context.Context, configID, message string) (int, error)
	// BootstrapOwner returns the placeholder owner for a company domain,
	// creating it on first use.
	BootstrapOwner(ctx context.Context, companyDomain string) (string, error)
	// EnsureConfig returns an existing matching config id or creates one.
	EnsureConfig(ctx context.Context, config domain.ReportConfig) (string, error)
	GetReport(ctx context.Context, reportID string) (domain.Report, error)
	// GetReportBySlug resolves a public report and increments its view count.
	GetReportBySlug(ctx context.Context, slug string) (domain.Report, error)
	// SetVisibility toggles a report public or private. Going public assigns
	// a fresh slug; going private clears it.
	SetVisibility(ctx context.Context, reportID string, isPublic bool) (domain.Report, error)
}

// MemoryReportsRepository stores reports in memory for local development.
type MemoryReportsRepository struct {
	mu      sync.RWMutex
	reports map[string]*domain.Report
	slugs   map[string]string
	owners  map[string]string
	configs map[string]*domain.ReportConfig
}

func NewMemoryReportsRepository() *MemoryReportsRepository {
	return &MemoryReportsRepository{
		reports: make(map[string]*domain.Report),
		slugs:   make(map[string]string),
		owners:  make(map[string]string),
		configs: make(map[string]*domain.ReportConfig),
	}
}

func (r *MemoryReportsRepository) CreateGenerating(_ context.Context, report domain.Report) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	report.Status = domain.ReportStatusGenerating
	report.Content = nil
	report.PublicSlug = ""
	report.CreatedAt = now
	report.UpdatedAt = now

	r.reports[report.ID] = cloneReport(&report)
	return report.ID, nil
}

func (r *MemoryReportsRepository) CompleteWithContent(
	_ context.Context,
	reportID string,
	content domain.ReportContent,
	durationMs int64,
) (domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[reportID]
	if !ok {
		return domain.Report{}, ErrNotFound
	}

	report.Status = domain.ReportStatusCompleted
	contentCopy := content
	report.Content = &contentCopy
	report.GenerationDurationMs = durationMs
	report.ErrorMessage = ""
	report.UpdatedAt = time.Now().UTC()

	if report.IsPublic && report.PublicSlug == "" {
		report.PublicSlug = r.uniqueSlugLocked()
		r.slugs[report.PublicSlug] = report.ID
	}
	return *cloneReport(report), nil
}

func (r *MemoryReportsRepository) MarkFailed(_ context.Context, reportID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	failReportLocked(report, message)
	return nil
}

func (r *MemoryReportsRepository) MarkFailedByConfig(
	_ context.Context,
	configID, message string,
) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	swept := 0
	for _, report := range r.reports {
		if report.ReportConfigID == configID && report.Status == domain.ReportStatusGenerating {
			failReportLocked(report, message)
			swept++
		}
	}
	return swept, nil
}

func (r *MemoryReportsRepository) BootstrapOwner(_ context.Context, companyDomain string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(companyDomain))
	if key == "" {
		return "", errors.New("company domain is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ownerID, ok := r.owners[key]; ok {
		return ownerID, nil
	}
	ownerID := uuid.NewString()
	r.owners[key] = ownerID
	return ownerID, nil
}

func (r *MemoryReportsRepository) EnsureConfig(_ context.Context, config domain.ReportConfig) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.configs {
		if existing.UserID == config.UserID &&
			strings.EqualFold(existing.CompanyDomain, config.CompanyDomain) &&
			existing.DateRangeDays == config.DateRangeDays {
			return existing.ID, nil
		}
	}

	if config.ID == "" {
		config.ID = uuid.NewString()
	}
	config.CreatedAt = time.Now().UTC()
	configCopy := config
	configCopy.Keywords = append([]string(nil), config.Keywords...)
	r.configs[config.ID] = &configCopy
	return config.ID, nil
}

func (r *MemoryReportsRepository) GetReport(_ context.Context, reportID string) (domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[reportID]
	if !ok {
		return domain.Report{}, ErrNotFound
	}
	return *cloneReport(report), nil
}

func (r *MemoryReportsRepository) GetReportBySlug(_ context.Context, slug string) (domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reportID, ok := r.slugs[slug]
	if !ok {
		return domain.Report{}, ErrNotFound
	}
	report, ok := r.reports[reportID]
	if !ok || !report.IsPublic {
		return domain.Report{}, ErrNotFound
	}

	report.ViewCount++
	return *cloneReport(report), nil
}

func (r *MemoryReportsRepository) SetVisibility(
	_ context.Context,
	reportID string,
	isPublic bool,
) (domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[reportID]
	if !ok {
		return domain.Report{}, ErrNotFound
	}

	if isPublic && !report.IsPublic {
		report.IsPublic = true
		// Reports still generating get their slug at completion time.
		if report.PublicSlug == "" && report.Status == domain.ReportStatusCompleted {
			report.PublicSlug = r.uniqueSlugLocked()
			r.slugs[report.PublicSlug] = report.ID
		}
	}
	if !isPublic && report.IsPublic {
		report.IsPublic = false
		if report.PublicSlug != "" {
			delete(r.slugs, report.PublicSlug)
			report.PublicSlug = ""
		}
	}
	report.UpdatedAt = time.Now().UTC()
	return *cloneReport(report), nil
}

func (r *MemoryReportsRepository) uniqueSlugLocked() string {
	for {
		slug := NewPublicSlug()
		if _, taken := r.slugs[slug]; !taken {
			return slug
		}
	}
}

func failReportLocked(report *domain.Report, message string) {
	report.Status = domain.ReportStatusFailed
	report.Content = nil
	report.ErrorMessage = message
	report.UpdatedAt = time.Now().UTC()
}

func cloneReport(report *domain.Report) *domain.Report {
	if report == nil {
		return nil
	}
	clone := *report
	if report.Content != nil {
		content := *report.Content
		content.Articles = append([]domain.Article(nil), report.Content.Articles...)
		clone.Content = &content
	}
	return &clone
}
