package domain

import (
	"errors"
	"time"
)

type JobStatus string

const (
	JobStatusWaiting   JobStatus = "waiting"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusDelayed   JobStatus = "delayed"
)

var ErrIllegalTransition = errors.New("illegal job status transition")

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition is the single authority on legal job status moves.
// failed -> delayed covers the retry re-queue path; the attempt bound is
// enforced by the queue, not here.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusWaiting:
		return to == JobStatusActive
	case JobStatusDelayed:
		return to == JobStatusWaiting
	case JobStatusActive:
		return to == JobStatusCompleted || to == JobStatusFailed
	case JobStatusFailed:
		return to == JobStatusDelayed
	default:
		return false
	}
}

// ReportRequest is the immutable payload snapshot carried by a job.
type ReportRequest struct {
	CompanyName    string   `json:"company_name"`
	CompanyDomain  string   `json:"company_domain"`
	Industry       string   `json:"industry,omitempty"`
	Competitors    []string `json:"competitors,omitempty"`
	ReportType     string   `json:"report_type"`
	DateRangeDays  int      `json:"date_range_days,omitempty"`
	TargetReportID string   `json:"target_report_id,omitempty"`
	IsPublic       bool     `json:"is_public,omitempty"`
}

// JobResult is recorded on the completed transition only.
type JobResult struct {
	ReportID   string `json:"report_id"`
	PublicSlug string `json:"public_slug,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Job is the unit of schedulable pipeline work.
type Job struct {
	ID            string
	DedupeKey     string
	Payload       ReportRequest
	Status        JobStatus
	Progress      int
	Attempts      int
	Result        *JobResult
	FailureReason string
	SubmittedAt   time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
}

// JobView is the read model returned to status pollers.
type JobView struct {
	ID            string        `json:"job_id"`
	Status        JobStatus     `json:"status"`
	Progress      int           `json:"progress"`
	Payload       ReportRequest `json:"payload"`
	Attempts      int           `json:"attempts"`
	Result        *JobResult    `json:"result,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	SubmittedAt   time.Time     `json:"submitted_at"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
}

// QueueStats aggregates job counts by state for dashboards.
type QueueStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Delayed   int `json:"delayed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}
