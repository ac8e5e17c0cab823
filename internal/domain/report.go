package domain

import "time"

type ReportStatus string

const (
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
)

// Article is one ranked, summarized source inside a completed report.
type Article struct {
	Title            string   `json:"title"`
	URL              string   `json:"url"`
	Source           string   `json:"source"`
	PublishedAt      string   `json:"published_at,omitempty"`
	ShortSummary     string   `json:"short_summary"`
	Body             string   `json:"body"`
	ImageURL         string   `json:"image_url,omitempty"`
	ImagePlaceholder bool     `json:"image_placeholder,omitempty"`
	Sources          []string `json:"sources,omitempty"`
}

// ReportContent is the structured payload of a completed report.
type ReportContent struct {
	Summary  string    `json:"summary"`
	Articles []Article `json:"articles"`
}

// Report is the persisted output entity; its lifecycle is independent from
// the job that produced it.
type Report struct {
	ID                   string
	ReportConfigID       string
	UserID               string
	Status               ReportStatus
	Content              *ReportContent
	IsPublic             bool
	PublicSlug           string
	ViewCount            int
	GenerationDurationMs int64
	ErrorMessage         string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ReportConfig holds the stored search parameters a pipeline run consumes.
type ReportConfig struct {
	ID            string
	UserID        string
	CompanyName   string
	CompanyDomain string
	Industry      string
	Keywords      []string
	DateRangeDays int
	CreatedAt     time.Time
}
