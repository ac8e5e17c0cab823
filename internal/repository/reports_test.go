package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/mediapulse/mediapulse-back/internal/domain"
)

func createGenerating(t *testing.T, repo *MemoryReportsRepository, isPublic bool) string {
	t.Helper()

	reportID, err := repo.CreateGenerating(context.Background(), domain.Report{
		ReportConfigID: "config-1",
		UserID:         "owner-1",
		IsPublic:       isPublic,
	})
	if err != nil {
		t.Fatalf("create generating failed: %v", err)
	}
	return reportID
}

func sampleContent() domain.ReportContent {
	return domain.ReportContent{
		Summary: "Three notable stories this week.",
		Articles: []domain.Article{
			{Title: "Acme raises series B", URL: "https://news.test/acme", Source: "news", ShortSummary: "Funding round closed."},
		},
	}
}

func TestMemoryReportsCompleteAssignsSlugForPublicReports(t *testing.T) {
	repo := NewMemoryReportsRepository()

	reportID := createGenerating(t, repo, true)

	report, err := repo.CompleteWithContent(context.Background(), reportID, sampleContent(), 2500)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if report.Status != domain.ReportStatusCompleted {
		t.Fatalf("expected completed status, got %s", report.Status)
	}
	if report.PublicSlug == "" {
		t.Fatal("expected a public slug assigned at completion")
	}
	if len(report.PublicSlug) != 8 {
		t.Fatalf("expected 8 character slug, got %q", report.PublicSlug)
	}
	if report.GenerationDurationMs != 2500 {
		t.Fatalf("expected duration recorded, got %d", report.GenerationDurationMs)
	}
	if report.Content == nil || len(report.Content.Articles) != 1 {
		t.Fatalf("expected content stored, got %+v", report.Content)
	}
}

func TestMemoryReportsCompleteKeepsAssignedSlug(t *testing.T) {
	repo := NewMemoryReportsRepository()

	reportID := createGenerating(t, repo, true)

	first, err := repo.CompleteWithContent(context.Background(), reportID, sampleContent(), 2500)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// A regenerated report must stay reachable under its published slug.
	second, err := repo.CompleteWithContent(context.Background(), reportID, sampleContent(), 1800)
	if err != nil {
		t.Fatalf("second complete failed: %v", err)
	}
	if second.PublicSlug != first.PublicSlug {
		t.Fatalf("expected slug %q preserved, got %q", first.PublicSlug, second.PublicSlug)
	}
	if _, err := repo.GetReportBySlug(context.Background(), first.PublicSlug); err != nil {
		t.Fatalf("expected original slug still resolvable: %v", err)
	}
}

func TestMemoryReportsCompletePrivateReportHasNoSlug(t *testing.T) {
	repo := NewMemoryReportsRepository()

	reportID := createGenerating(t, repo, false)

	report, err := repo.CompleteWithContent(context.Background(), reportID, sampleContent(), 100)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if report.PublicSlug != "" {
		t.Fatalf("expected no slug on a private report, got %q", report.PublicSlug)
	}
}

func TestMemoryReportsSlugReadIncrementsViewCount(t *testing.T) {
	repo := NewMemoryReportsRepository()

	reportID := createGenerating(t, repo, true)
	report, err := repo.CompleteWithContent(context.Background(), reportID, sampleContent(), 100)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	for want := 1; want <= 3; want++ {
		viewed, err := repo.GetReportBySlug(context.Background(), report.PublicSlug)
		if err != nil {
			t.Fatalf("slug read failed: %v", err)
		}
		if viewed.ViewCount != want {
			t.Fatalf("expected view count %d, got %d", want, viewed.ViewCount)
		}
	}

	// Owner reads by id never touch the counter.
	byID, err := repo.GetReport(context.Background(), reportID)
	if err != nil {
		t.Fatalf("get by id failed: %v", err)
	}
	if byID.ViewCount != 3 {
		t.Fatalf("expected id read to leave view count at 3, got %d", byID.ViewCount)
	}
}

func TestMemoryReportsRevokeVisibilityClearsSlug(t *testing.T) {
	repo := NewMemoryReportsRepository()

	reportID := createGenerating(t, repo, true)
	completed, err := repo.CompleteWithContent(context.Background(), reportID, sampleContent(), 100)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	oldSlug := completed.PublicSlug

	private, err := repo.SetVisibility(context.Background(), reportID, false)
	if err != nil {
		t.Fatalf("set private failed: %v", err)
	}
	if private.IsPublic || private.PublicSlug != "" {
		t.Fatalf("expected private report without slug, got public=%v slug=%q", private.IsPublic, private.PublicSlug)
	}
	if _, err := repo.GetReportBySlug(context.Background(), oldSlug); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected revoked slug to stop resolving, got %v", err)
	}

	public, err := repo.SetVisibility(context.Background(), reportID, true)
	if err != nil {
		t.Fatalf("set public failed: %v", err)
	}
	if public.PublicSlug == "" {
		t.Fatal("expected a fresh slug when going public again")
	}
	if public.PublicSlug == oldSlug {
		t.Fatalf("expected a fresh slug, got the revoked one %q", oldSlug)
	}
}

func TestMemoryReportsVisibilityOnGeneratingDefersSlug(t *testing.T) {
	repo := NewMemoryReportsRepository()

	reportID := createGenerating(t, repo, false)

	report, err := repo.SetVisibility(context.Background(), reportID, true)
	if err != nil {
		t.Fatalf("set public failed: %v", err)
	}
	if !report.IsPublic {
		t.Fatal("expected report marked public")
	}
	if report.PublicSlug != "" {
		t.Fatalf("expected slug deferred until completion, got %q", report.PublicSlug)
	}

	completed, err := repo.CompleteWithContent(context.Background(), reportID, sampleContent(), 100)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.PublicSlug == "" {
		t.Fatal("expected slug assigned at completion")
	}
}

func TestMemoryReportsMarkFailedRecordsMessage(t *testing.T) {
	repo := NewMemoryReportsRepository()

	reportID := createGenerating(t, repo, false)

	if err := repo.MarkFailed(context.Background(), reportID, "no articles found"); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}
	report, err := repo.GetReport(context.Background(), reportID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if report.Status != domain.ReportStatusFailed {
		t.Fatalf("expected failed status, got %s", report.Status)
	}
	if report.ErrorMessage != "no articles found" {
		t.Fatalf("expected error message recorded, got %q", report.ErrorMessage)
	}

	if err := repo.MarkFailed(context.Background(), "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown report, got %v", err)
	}
}

func TestMemoryReportsRetrySucceedsAfterFailure(t *testing.T) {
	repo := NewMemoryReportsRepository()

	reportID := createGenerating(t, repo, false)
	if err := repo.MarkFailed(context.Background(), reportID, "transient search outage"); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	report, err := repo.CompleteWithContent(context.Background(), reportID, sampleContent(), 100)
	if err != nil {
		t.Fatalf("complete after failure failed: %v", err)
	}
	if report.Status != domain.ReportStatusCompleted {
		t.Fatalf("expected retry to overwrite failure, got %s", report.Status)
	}
	if report.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", report.ErrorMessage)
	}
}

func TestMemoryReportsMarkFailedByConfigSweepsGeneratingOnly(t *testing.T) {
	repo := NewMemoryReportsRepository()

	first := createGenerating(t, repo, false)
	second := createGenerating(t, repo, false)
	if _, err := repo.CompleteWithContent(context.Background(), second, sampleContent(), 100); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	swept, err := repo.MarkFailedByConfig(context.Background(), "config-1", "generation failed")
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected exactly the generating report swept, got %d", swept)
	}

	failed, err := repo.GetReport(context.Background(), first)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if failed.Status != domain.ReportStatusFailed {
		t.Fatalf("expected swept report failed, got %s", failed.Status)
	}
	completed, err := repo.GetReport(context.Background(), second)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if completed.Status != domain.ReportStatusCompleted {
		t.Fatalf("expected completed report untouched, got %s", completed.Status)
	}
}

func TestMemoryReportsBootstrapOwnerIsIdempotent(t *testing.T) {
	repo := NewMemoryReportsRepository()

	first, err := repo.BootstrapOwner(context.Background(), "acme.io")
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	second, err := repo.BootstrapOwner(context.Background(), " ACME.IO ")
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable owner id, got %s and %s", first, second)
	}

	other, err := repo.BootstrapOwner(context.Background(), "other.io")
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if other == first {
		t.Fatal("expected a distinct owner per company domain")
	}

	if _, err := repo.BootstrapOwner(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty company domain")
	}
}

func TestMemoryReportsEnsureConfigReusesMatch(t *testing.T) {
	repo := NewMemoryReportsRepository()

	base := domain.ReportConfig{
		UserID:        "owner-1",
		CompanyName:   "Acme Robotics",
		CompanyDomain: "acme.io",
		DateRangeDays: 7,
	}

	first, err := repo.EnsureConfig(context.Background(), base)
	if err != nil {
		t.Fatalf("ensure config failed: %v", err)
	}
	second, err := repo.EnsureConfig(context.Background(), base)
	if err != nil {
		t.Fatalf("ensure config failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected matching config reused, got %s and %s", first, second)
	}

	wider := base
	wider.DateRangeDays = 30
	third, err := repo.EnsureConfig(context.Background(), wider)
	if err != nil {
		t.Fatalf("ensure config failed: %v", err)
	}
	if third == first {
		t.Fatal("expected a new config for a different date range")
	}
}

func TestNewPublicSlugShapeAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		slug := NewPublicSlug()
		if len(slug) != 8 {
			t.Fatalf("expected 8 character slug, got %q", slug)
		}
		for _, r := range slug {
			valid := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
			if !valid {
				t.Fatalf("slug %q contains non url-safe character %q", slug, r)
			}
		}
		if _, dup := seen[slug]; dup {
			t.Fatalf("slug %q repeated within 256 draws", slug)
		}
		seen[slug] = struct{}{}
	}
}
