package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mediapulse/mediapulse-back/internal/domain"
)

// MemoryQueue is a fallback queue used when Redis is not configured. It keeps
// the same claim and retry semantics as the Redis backend but holds all job
// records in process memory.
type MemoryQueue struct {
	policy Policy
	logger *log.Logger

	mu             sync.Mutex
	jobs           map[string]*domain.Job
	waiting        []string
	completedOrder []string
	failedOrder    []string

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryQueue(policy Policy, logger *log.Logger) *MemoryQueue {
	return &MemoryQueue{
		policy:  policy.withDefaults(),
		logger:  logger,
		jobs:    make(map[string]*domain.Job),
		waiting: make([]string, 0),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (q *MemoryQueue) Submit(_ context.Context, payload domain.ReportRequest) (string, error) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:          uuid.NewString(),
		DedupeKey:   dedupeKey(payload.CompanyDomain, now),
		Payload:     payload,
		Status:      domain.JobStatusWaiting,
		SubmittedAt: now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.waiting = append(q.waiting, job.ID)
	q.mu.Unlock()

	q.signal()
	return job.ID, nil
}

func (q *MemoryQueue) Get(_ context.Context, jobID string) (domain.JobView, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return domain.JobView{}, ErrNotFound
	}
	return jobView(job), nil
}

func (q *MemoryQueue) Remove(_ context.Context, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return false, nil
	}
	if job.Status != domain.JobStatusWaiting && job.Status != domain.JobStatusDelayed {
		return false, nil
	}

	delete(q.jobs, jobID)
	for index, id := range q.waiting {
		if id == jobID {
			q.waiting = append(q.waiting[:index], q.waiting[index+1:]...)
			break
		}
	}
	return true, nil
}

func (q *MemoryQueue) Claim(ctx context.Context) (*domain.Job, error) {
	for {
		q.mu.Lock()
		if len(q.waiting) > 0 {
			jobID := q.waiting[0]
			q.waiting = q.waiting[1:]
			job, ok := q.jobs[jobID]
			if ok && domain.CanTransition(job.Status, domain.JobStatusActive) {
				job.Status = domain.JobStatusActive
				job.Attempts++
				job.Progress = 0
				job.StartedAt = time.Now().UTC()
				claimed := cloneJob(job)
				q.mu.Unlock()
				return claimed, nil
			}
			// Stale id (removed or already moved); keep draining.
			q.mu.Unlock()
			continue
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		}
	}
}

func (q *MemoryQueue) UpdateProgress(_ context.Context, jobID string, progress int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	progress = clampProgress(progress)
	if progress > job.Progress {
		job.Progress = progress
	}
	return nil
}

func (q *MemoryQueue) Complete(_ context.Context, jobID string, result domain.JobResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if !domain.CanTransition(job.Status, domain.JobStatusCompleted) {
		return domain.ErrIllegalTransition
	}

	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	resultCopy := result
	job.Result = &resultCopy
	job.FailureReason = ""
	job.FinishedAt = time.Now().UTC()

	q.completedOrder = append(q.completedOrder, jobID)
	q.pruneLocked(&q.completedOrder, q.policy.RetainCompleted)
	return nil
}

func (q *MemoryQueue) Fail(_ context.Context, jobID string, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if !domain.CanTransition(job.Status, domain.JobStatusFailed) {
		return domain.ErrIllegalTransition
	}

	job.Status = domain.JobStatusFailed
	job.Result = nil
	if cause != nil {
		job.FailureReason = cause.Error()
	}
	job.FinishedAt = time.Now().UTC()

	if job.Attempts < q.policy.MaxAttempts {
		job.Status = domain.JobStatusDelayed
		delay := q.policy.backoffFor(job.Attempts)
		go q.requeueAfter(jobID, delay)
		if q.logger != nil {
			q.logger.Printf(
				"job failed, retry scheduled job_id=%s attempt=%d delay=%s err=%v",
				jobID, job.Attempts, delay, cause,
			)
		}
		return nil
	}

	q.failedOrder = append(q.failedOrder, jobID)
	q.pruneLocked(&q.failedOrder, q.policy.RetainFailed)
	if q.logger != nil {
		q.logger.Printf("job settled failed job_id=%s attempts=%d err=%v", jobID, job.Attempts, cause)
	}
	return nil
}

func (q *MemoryQueue) Stats(_ context.Context) (domain.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := domain.QueueStats{}
	for _, job := range q.jobs {
		switch job.Status {
		case domain.JobStatusWaiting:
			stats.Waiting++
		case domain.JobStatusActive:
			stats.Active++
		case domain.JobStatusDelayed:
			stats.Delayed++
		case domain.JobStatusCompleted:
			stats.Completed++
		case domain.JobStatusFailed:
			stats.Failed++
		}
	}
	stats.Total = len(q.jobs)
	return stats, nil
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	return nil
}

// requeueAfter moves a delayed job back to waiting once its backoff elapses.
func (q *MemoryQueue) requeueAfter(jobID string, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-q.done:
		return
	case <-timer.C:
	}

	q.mu.Lock()
	job, ok := q.jobs[jobID]
	if !ok || !domain.CanTransition(job.Status, domain.JobStatusWaiting) {
		q.mu.Unlock()
		return
	}
	job.Status = domain.JobStatusWaiting
	job.Progress = 0
	job.FinishedAt = time.Time{}
	q.waiting = append(q.waiting, jobID)
	q.mu.Unlock()

	q.signal()
}

func (q *MemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pruneLocked evicts terminal jobs over the count bound, then any whose
// finish time aged past the retention window.
func (q *MemoryQueue) pruneLocked(order *[]string, retain int) {
	for len(*order) > retain {
		oldest := (*order)[0]
		*order = (*order)[1:]
		delete(q.jobs, oldest)
	}

	cutoff := time.Now().UTC().Add(-q.policy.RetainAge)
	for len(*order) > 0 {
		oldest, ok := q.jobs[(*order)[0]]
		if ok && oldest.FinishedAt.After(cutoff) {
			break
		}
		delete(q.jobs, (*order)[0])
		*order = (*order)[1:]
	}
}

func cloneJob(job *domain.Job) *domain.Job {
	if job == nil {
		return nil
	}
	clone := *job
	if job.Result != nil {
		result := *job.Result
		clone.Result = &result
	}
	clone.Payload.Competitors = append([]string(nil), job.Payload.Competitors...)
	return &clone
}

func jobView(job *domain.Job) domain.JobView {
	view := domain.JobView{
		ID:            job.ID,
		Status:        job.Status,
		Progress:      job.Progress,
		Payload:       job.Payload,
		Attempts:      job.Attempts,
		FailureReason: job.FailureReason,
		SubmittedAt:   job.SubmittedAt,
	}
	if job.Result != nil {
		result := *job.Result
		view.Result = &result
	}
	if !job.StartedAt.IsZero() {
		startedAt := job.StartedAt
		view.StartedAt = &startedAt
	}
	if !job.FinishedAt.IsZero() {
		finishedAt := job.FinishedAt
		view.FinishedAt = &finishedAt
	}
	return view
}
