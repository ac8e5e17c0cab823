package queue

import (
	"context"
	"errors"
	"time"

	"github.com/mediapulse/mediapulse-back/internal/domain"
)

var ErrNotFound = errors.New("job not found")

// Policy governs retries and terminal-record retention. Terminal jobs are
// evicted by count or by age, whichever bound is hit first.
type Policy struct {
	MaxAttempts     int
	BackoffBase     time.Duration
	RetainCompleted int
	RetainFailed    int
	RetainAge       time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 2
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = 5 * time.Second
	}
	if p.RetainCompleted <= 0 {
		p.RetainCompleted = 100
	}
	if p.RetainFailed <= 0 {
		p.RetainFailed = 200
	}
	if p.RetainAge <= 0 {
		p.RetainAge = 24 * time.Hour
	}
	return p
}

// backoffFor returns the delay before the next attempt, doubling per attempt.
func (p Policy) backoffFor(attempts int) time.Duration {
	delay := p.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}

// Queue is the durable holding area for jobs and the single source of truth
// for job state. Claim must be exclusive: exactly one caller ever moves a
// given job from waiting to active.
type Queue interface {
	// Submit durably appends a job in waiting state and returns its id.
	Submit(ctx context.Context, payload domain.ReportRequest) (string, error)
	// Get returns the current read model for a job, or ErrNotFound.
	Get(ctx context.Context, jobID string) (domain.JobView, error)
	// Remove deletes a job iff it is still waiting or delayed. It returns
	// false for active and terminal jobs.
	Remove(ctx context.Context, jobID string) (bool, error)
	// Claim blocks until a waiting job can be handed to the caller. The
	// returned job is already active with a fresh attempt recorded.
	Claim(ctx context.Context) (*domain.Job, error)
	// UpdateProgress records a heartbeat for the current attempt. Values
	// lower than the recorded progress are ignored.
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	// Complete moves an active job to completed with its result.
	Complete(ctx context.Context, jobID string, result domain.JobResult) error
	// Fail records a failed attempt. While attempts remain the job is
	// delayed for backoff and re-queued; afterwards it settles in failed.
	Fail(ctx context.Context, jobID string, cause error) error
	Stats(ctx context.Context) (domain.QueueStats, error)
	Close() error
}

func dedupeKey(companyDomain string, at time.Time) string {
	return companyDomain + ":" + at.UTC().Format("20060102150405.000")
}

func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
