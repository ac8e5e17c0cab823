package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mediapulse/mediapulse-back/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	Policy    Policy
}

// RedisQueue is the durable queue backend. Jobs live in one hash per id;
// waiting ids sit in a list, delayed ids in a zset scored by their ready
// time, terminal ids in zsets scored by finish time for retention trimming.
// Claims move an id between lists with BLMOVE, which is atomic on the
// server, so exactly one claimer ever receives a given waiting job.
type RedisQueue struct {
	client *redis.Client
	prefix string
	policy Policy
	logger *log.Logger

	done      chan struct{}
	promoters sync.WaitGroup
	closeOnce sync.Once
}

func NewRedisQueue(ctx context.Context, cfg RedisConfig, logger *log.Logger) (*RedisQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "reports"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	queue := &RedisQueue{
		client: client,
		prefix: cfg.KeyPrefix,
		policy: cfg.Policy.withDefaults(),
		logger: logger,
		done:   make(chan struct{}),
	}

	queue.promoters.Add(1)
	go queue.promoteDelayed()

	return queue, nil
}

func (q *RedisQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	q.promoters.Wait()
	return q.client.Close()
}

func (q *RedisQueue) jobKey(jobID string) string { return q.prefix + ":job:" + jobID }
func (q *RedisQueue) waitingKey() string         { return q.prefix + ":waiting" }
func (q *RedisQueue) activeKey() string          { return q.prefix + ":active" }
func (q *RedisQueue) delayedKey() string         { return q.prefix + ":delayed" }
func (q *RedisQueue) completedKey() string       { return q.prefix + ":completed" }
func (q *RedisQueue) failedKey() string          { return q.prefix + ":failed" }

func (q *RedisQueue) Submit(ctx context.Context, payload domain.ReportRequest) (string, error) {
	now := time.Now().UTC()
	jobID := uuid.NewString()

	encodedPayload, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID), map[string]any{
		"id":           jobID,
		"dedupe_key":   dedupeKey(payload.CompanyDomain, now),
		"payload":      string(encodedPayload),
		"status":       string(domain.JobStatusWaiting),
		"progress":     0,
		"attempts":     0,
		"submitted_at": now.Format(time.RFC3339Nano),
	})
	pipe.RPush(ctx, q.waitingKey(), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return jobID, nil
}

func (q *RedisQueue) Get(ctx context.Context, jobID string) (domain.JobView, error) {
	job, err := q.loadJob(ctx, jobID)
	if err != nil {
		return domain.JobView{}, err
	}
	return jobView(job), nil
}

func (q *RedisQueue) Remove(ctx context.Context, jobID string) (bool, error) {
	removed, err := q.client.LRem(ctx, q.waitingKey(), 1, jobID).Result()
	if err != nil {
		return false, fmt.Errorf("remove waiting job: %w", err)
	}
	if removed == 0 {
		removed, err = q.client.ZRem(ctx, q.delayedKey(), jobID).Result()
		if err != nil {
			return false, fmt.Errorf("remove delayed job: %w", err)
		}
	}
	if removed == 0 {
		return false, nil
	}
	if err := q.client.Del(ctx, q.jobKey(jobID)).Err(); err != nil {
		return true, fmt.Errorf("delete job record: %w", err)
	}
	return true, nil
}

func (q *RedisQueue) Claim(ctx context.Context) (*domain.Job, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		jobID, err := q.client.BLMove(ctx, q.waitingKey(), q.activeKey(), "LEFT", "RIGHT", 5*time.Second).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("claim job: %w", err)
		}

		now := time.Now().UTC()
		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, q.jobKey(jobID), claimedJobFields(now))
		attemptsCmd := pipe.HIncrBy(ctx, q.jobKey(jobID), "attempts", 1)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("mark job active: %w", err)
		}

		job, err := q.loadJob(ctx, jobID)
		if errors.Is(err, ErrNotFound) {
			// Record deleted between list move and hydration; drop the id.
			_ = q.client.LRem(ctx, q.activeKey(), 1, jobID).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		job.Attempts = int(attemptsCmd.Val())
		return job, nil
	}
}

func (q *RedisQueue) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	current, err := q.client.HGet(ctx, q.jobKey(jobID), "progress").Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("read job progress: %w", err)
	}

	progress = clampProgress(progress)
	if progress <= current {
		return nil
	}
	if err := q.client.HSet(ctx, q.jobKey(jobID), "progress", progress).Err(); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

func (q *RedisQueue) Complete(ctx context.Context, jobID string, result domain.JobResult) error {
	job, err := q.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(job.Status, domain.JobStatusCompleted) {
		return domain.ErrIllegalTransition
	}

	encodedResult, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}

	now := time.Now().UTC()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID), completedJobFields(string(encodedResult), now))
	pipe.LRem(ctx, q.activeKey(), 1, jobID)
	pipe.ZAdd(ctx, q.completedKey(), redis.Z{Score: float64(now.UnixMilli()), Member: jobID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}

	return q.trimTerminal(ctx, q.completedKey(), q.policy.RetainCompleted)
}

func (q *RedisQueue) Fail(ctx context.Context, jobID string, cause error) error {
	job, err := q.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(job.Status, domain.JobStatusFailed) {
		return domain.ErrIllegalTransition
	}

	failureReason := ""
	if cause != nil {
		failureReason = cause.Error()
	}
	now := time.Now().UTC()

	if job.Attempts < q.policy.MaxAttempts {
		delay := q.policy.backoffFor(job.Attempts)
		readyAt := now.Add(delay)

		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, q.jobKey(jobID), delayedJobFields(failureReason))
		pipe.LRem(ctx, q.activeKey(), 1, jobID)
		pipe.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(readyAt.UnixMilli()), Member: jobID})
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("schedule job retry: %w", err)
		}
		if q.logger != nil {
			q.logger.Printf(
				"job failed, retry scheduled job_id=%s attempt=%d delay=%s err=%v",
				jobID, job.Attempts, delay, cause,
			)
		}
		return nil
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID), settledJobFields(failureReason, now))
	pipe.LRem(ctx, q.activeKey(), 1, jobID)
	pipe.ZAdd(ctx, q.failedKey(), redis.Z{Score: float64(now.UnixMilli()), Member: jobID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if q.logger != nil {
		q.logger.Printf("job settled failed job_id=%s attempts=%d err=%v", jobID, job.Attempts, cause)
	}

	return q.trimTerminal(ctx, q.failedKey(), q.policy.RetainFailed)
}

func (q *RedisQueue) Stats(ctx context.Context) (domain.QueueStats, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, q.waitingKey())
	active := pipe.LLen(ctx, q.activeKey())
	delayed := pipe.ZCard(ctx, q.delayedKey())
	completed := pipe.ZCard(ctx, q.completedKey())
	failed := pipe.ZCard(ctx, q.failedKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.QueueStats{}, fmt.Errorf("collect queue stats: %w", err)
	}

	stats := domain.QueueStats{
		Waiting:   int(waiting.Val()),
		Active:    int(active.Val()),
		Delayed:   int(delayed.Val()),
		Completed: int(completed.Val()),
		Failed:    int(failed.Val()),
	}
	stats.Total = stats.Waiting + stats.Active + stats.Delayed + stats.Completed + stats.Failed
	return stats, nil
}

// promoteDelayed moves delayed jobs whose backoff elapsed back to waiting.
func (q *RedisQueue) promoteDelayed() {
	defer q.promoters.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		q.promoteDueJobs(ctx)
		cancel()
	}
}

func (q *RedisQueue) promoteDueJobs(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
	due, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		if q.logger != nil {
			q.logger.Printf("scan delayed jobs failed: %v", err)
		}
		return
	}

	for _, jobID := range due {
		removed, err := q.client.ZRem(ctx, q.delayedKey(), jobID).Result()
		if err != nil || removed == 0 {
			continue
		}
		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, q.jobKey(jobID), requeuedJobFields())
		pipe.RPush(ctx, q.waitingKey(), jobID)
		if _, err := pipe.Exec(ctx); err != nil && q.logger != nil {
			q.logger.Printf("requeue delayed job failed job_id=%s err=%v", jobID, err)
		}
	}
}

// trimTerminal evicts terminal jobs past the count bound or the age bound,
// whichever is hit first. Scores are finish times in unix milliseconds.
func (q *RedisQueue) trimTerminal(ctx context.Context, key string, retain int) error {
	cutoff := strconv.FormatInt(time.Now().UTC().Add(-q.policy.RetainAge).UnixMilli(), 10)
	aged, err := q.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: cutoff,
	}).Result()
	if err != nil {
		return fmt.Errorf("scan aged terminal jobs: %w", err)
	}
	for _, jobID := range aged {
		if removed, err := q.client.ZRem(ctx, key, jobID).Result(); err != nil || removed == 0 {
			continue
		}
		q.deleteJobRecord(ctx, jobID)
	}

	size, err := q.client.ZCard(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("count terminal jobs: %w", err)
	}
	excess := int(size) - retain
	if excess <= 0 {
		return nil
	}

	evicted, err := q.client.ZPopMin(ctx, key, int64(excess)).Result()
	if err != nil {
		return fmt.Errorf("evict terminal jobs: %w", err)
	}
	for _, member := range evicted {
		jobID, ok := member.Member.(string)
		if !ok {
			continue
		}
		q.deleteJobRecord(ctx, jobID)
	}
	return nil
}

func (q *RedisQueue) deleteJobRecord(ctx context.Context, jobID string) {
	if err := q.client.Del(ctx, q.jobKey(jobID)).Err(); err != nil && q.logger != nil {
		q.logger.Printf("delete evicted job record failed job_id=%s err=%v", jobID, err)
	}
}

// The field maps below are the only writers of job-hash state transitions.
// Completion clears failure_reason so a job that failed an earlier attempt
// never surfaces a stale reason next to its result; a delayed or requeued
// job keeps the reason of its last failed attempt until it completes, same
// as the memory backend.
func claimedJobFields(now time.Time) map[string]any {
	return map[string]any{
		"status":     string(domain.JobStatusActive),
		"progress":   0,
		"started_at": now.Format(time.RFC3339Nano),
	}
}

func completedJobFields(encodedResult string, now time.Time) map[string]any {
	return map[string]any{
		"status":         string(domain.JobStatusCompleted),
		"progress":       100,
		"result":         encodedResult,
		"failure_reason": "",
		"finished_at":    now.Format(time.RFC3339Nano),
	}
}

func delayedJobFields(failureReason string) map[string]any {
	return map[string]any{
		"status":         string(domain.JobStatusDelayed),
		"failure_reason": failureReason,
	}
}

func settledJobFields(failureReason string, now time.Time) map[string]any {
	return map[string]any{
		"status":         string(domain.JobStatusFailed),
		"failure_reason": failureReason,
		"finished_at":    now.Format(time.RFC3339Nano),
	}
}

func requeuedJobFields() map[string]any {
	return map[string]any{
		"status":   string(domain.JobStatusWaiting),
		"progress": 0,
	}
}

func (q *RedisQueue) loadJob(ctx context.Context, jobID string) (*domain.Job, error) {
	values, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return parseJobHash(values)
}

func parseJobHash(values map[string]string) (*domain.Job, error) {
	job := &domain.Job{
		ID:            values["id"],
		DedupeKey:     values["dedupe_key"],
		Status:        domain.JobStatus(values["status"]),
		FailureReason: values["failure_reason"],
	}

	if raw := values["payload"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Payload); err != nil {
			return nil, fmt.Errorf("decode job payload: %w", err)
		}
	}
	if raw := values["result"]; raw != "" {
		result := domain.JobResult{}
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
		job.Result = &result
	}
	if raw := values["progress"]; raw != "" {
		progress, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid job progress: %w", err)
		}
		job.Progress = progress
	}
	if raw := values["attempts"]; raw != "" {
		attempts, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid job attempts: %w", err)
		}
		job.Attempts = attempts
	}

	var err error
	if job.SubmittedAt, err = parseHashTime(values["submitted_at"]); err != nil {
		return nil, err
	}
	if job.StartedAt, err = parseHashTime(values["started_at"]); err != nil {
		return nil, err
	}
	if job.FinishedAt, err = parseHashTime(values["finished_at"]); err != nil {
		return nil, err
	}
	return job, nil
}

func parseHashTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid job timestamp: %w", err)
	}
	return parsed, nil
}
