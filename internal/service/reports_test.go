package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mediapulse/mediapulse-back/internal/domain"
	"github.com/mediapulse/mediapulse-back/internal/quality"
	"github.com/mediapulse/mediapulse-back/internal/repository"
)

func generationContent() domain.ReportContent {
	return domain.ReportContent{
		Summary: "One quiet week for Acme Robotics.",
		Articles: []domain.Article{
			{
				Title:        "Acme ships new arm",
				URL:          "https://news.test/arm",
				Source:       "news",
				ShortSummary: "The new arm doubles payload capacity.",
				Body:         "Acme Robotics introduced a new robotic arm on Tuesday.",
			},
		},
	}
}

func TestCompleteGenerationWritesTargetReport(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	svc := NewReportsService(repo, nil)

	reportID, err := repo.CreateGenerating(context.Background(), domain.Report{UserID: "owner-1", IsPublic: true})
	if err != nil {
		t.Fatalf("create generating failed: %v", err)
	}

	payload := domain.ReportRequest{TargetReportID: reportID, CompanyDomain: "acme.io"}
	report, err := svc.CompleteGeneration(context.Background(), payload, generationContent(), 4200)
	if err != nil {
		t.Fatalf("complete generation failed: %v", err)
	}
	if report.ID != reportID {
		t.Fatalf("expected target report completed, got %s", report.ID)
	}
	if report.Status != domain.ReportStatusCompleted {
		t.Fatalf("expected completed status, got %s", report.Status)
	}
	if report.PublicSlug == "" {
		t.Fatal("expected slug on a public completed report")
	}
	if report.GenerationDurationMs != 4200 {
		t.Fatalf("expected duration recorded, got %d", report.GenerationDurationMs)
	}
}

func TestCompleteGenerationRejectsBrokenContent(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	svc := NewReportsService(repo, nil)

	reportID, err := repo.CreateGenerating(context.Background(), domain.Report{UserID: "owner-1"})
	if err != nil {
		t.Fatalf("create generating failed: %v", err)
	}

	payload := domain.ReportRequest{TargetReportID: reportID}
	content := generationContent()
	content.Summary = ""
	if _, err := svc.CompleteGeneration(context.Background(), payload, content, 100); !errors.Is(err, quality.ErrQualityRejected) {
		t.Fatalf("expected quality rejection, got %v", err)
	}

	report, err := repo.GetReport(context.Background(), reportID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if report.Status != domain.ReportStatusGenerating {
		t.Fatalf("expected rejected content to leave the report untouched, got %s", report.Status)
	}
}

func TestCompleteGenerationBootstrapsLegacyPayloads(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	svc := NewReportsService(repo, nil)

	payload := domain.ReportRequest{
		CompanyName:   "Acme Robotics",
		CompanyDomain: "acme.io",
		DateRangeDays: 7,
	}
	report, err := svc.CompleteGeneration(context.Background(), payload, generationContent(), 100)
	if err != nil {
		t.Fatalf("complete generation failed: %v", err)
	}
	if report.ID == "" || report.Status != domain.ReportStatusCompleted {
		t.Fatalf("expected a bootstrapped completed report, got %+v", report)
	}
	if report.UserID == "" || report.ReportConfigID == "" {
		t.Fatal("expected owner and config bootstrapped for legacy payload")
	}
}

func TestFailGenerationMarksTargetReport(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	svc := NewReportsService(repo, nil)

	reportID, err := repo.CreateGenerating(context.Background(), domain.Report{UserID: "owner-1"})
	if err != nil {
		t.Fatalf("create generating failed: %v", err)
	}

	payload := domain.ReportRequest{TargetReportID: reportID}
	if err := svc.FailGeneration(context.Background(), payload, "no articles found"); err != nil {
		t.Fatalf("fail generation failed: %v", err)
	}

	report, err := repo.GetReport(context.Background(), reportID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if report.Status != domain.ReportStatusFailed {
		t.Fatalf("expected failed report, got %s", report.Status)
	}
	if report.ErrorMessage != "no articles found" {
		t.Fatalf("expected error message recorded, got %q", report.ErrorMessage)
	}
}

func TestFailGenerationSweepsLegacyPayloads(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	svc := NewReportsService(repo, nil)

	payload := domain.ReportRequest{
		CompanyName:   "Acme Robotics",
		CompanyDomain: "acme.io",
		DateRangeDays: 7,
	}

	// Simulate the report a legacy submission would have left generating.
	ownerID, err := repo.BootstrapOwner(context.Background(), payload.CompanyDomain)
	if err != nil {
		t.Fatalf("bootstrap owner failed: %v", err)
	}
	configID, err := repo.EnsureConfig(context.Background(), domain.ReportConfig{
		UserID:        ownerID,
		CompanyName:   payload.CompanyName,
		CompanyDomain: payload.CompanyDomain,
		DateRangeDays: payload.DateRangeDays,
	})
	if err != nil {
		t.Fatalf("ensure config failed: %v", err)
	}
	reportID, err := repo.CreateGenerating(context.Background(), domain.Report{
		ReportConfigID: configID,
		UserID:         ownerID,
	})
	if err != nil {
		t.Fatalf("create generating failed: %v", err)
	}

	if err := svc.FailGeneration(context.Background(), payload, "pipeline failed"); err != nil {
		t.Fatalf("fail generation failed: %v", err)
	}

	report, err := repo.GetReport(context.Background(), reportID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if report.Status != domain.ReportStatusFailed {
		t.Fatalf("expected swept report failed, got %s", report.Status)
	}
}
