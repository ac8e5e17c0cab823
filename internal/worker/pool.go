package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/mediapulse/mediapulse-back/internal/domain"
	"github.com/mediapulse/mediapulse-back/internal/pipeline"
	"github.com/mediapulse/mediapulse-back/internal/queue"
	"github.com/mediapulse/mediapulse-back/internal/ratelimit"
	"github.com/mediapulse/mediapulse-back/internal/service"
)

type PoolConfig struct {
	Concurrency int
	RateLimit   int
	RateWindow  time.Duration
}

// Pool runs a bounded set of workers that claim jobs, execute the pipeline
// and persist results. Job starts are additionally capped by a rolling
// window limiter, independent of the concurrency bound.
type Pool struct {
	queue    queue.Queue
	reports  *service.ReportsService
	pipeline *pipeline.Pipeline
	limiter  *ratelimit.WindowLimiter
	logger   *log.Logger

	concurrency int
	cancelClaim context.CancelFunc
	workers     sync.WaitGroup
}

func NewPool(
	jobQueue queue.Queue,
	reports *service.ReportsService,
	reportPipeline *pipeline.Pipeline,
	config PoolConfig,
	logger *log.Logger,
) *Pool {
	if config.Concurrency <= 0 {
		config.Concurrency = 2
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 10
	}
	if config.RateWindow <= 0 {
		config.RateWindow = time.Minute
	}

	return &Pool{
		queue:       jobQueue,
		reports:     reports,
		pipeline:    reportPipeline,
		limiter:     ratelimit.NewWindowLimiter(config.RateLimit, config.RateWindow),
		logger:      logger,
		concurrency: config.Concurrency,
	}
}

// Start launches the workers. Claims stop when Stop is called or ctx ends;
// attempts already in flight run to their natural end.
func (p *Pool) Start(ctx context.Context) {
	claimCtx, cancel := context.WithCancel(ctx)
	p.cancelClaim = cancel

	for index := 0; index < p.concurrency; index++ {
		p.workers.Add(1)
		go p.run(claimCtx, index)
	}
}

// Stop blocks until every in-flight attempt has finished or failed.
func (p *Pool) Stop() {
	if p.cancelClaim != nil {
		p.cancelClaim()
	}
	p.workers.Wait()
}

func (p *Pool) run(ctx context.Context, workerID int) {
	defer p.workers.Done()

	for {
		job, err := p.queue.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if p.logger != nil {
				p.logger.Printf("worker claim error worker=%d err=%v", workerID, err)
			}
			timer := time.NewTimer(2 * time.Second)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		// The attempt deliberately outlives claim cancellation so shutdown
		// drains in-flight work instead of aborting it.
		attemptCtx := context.WithoutCancel(ctx)

		// The start counts against the rolling window only once a job is in
		// hand. A slot taken before a blocking Claim goes stale while the
		// worker sits idle and would admit an uncounted start later.
		if err := p.limiter.Acquire(attemptCtx); err != nil {
			return
		}
		p.process(attemptCtx, job, workerID)
	}
}

func (p *Pool) process(ctx context.Context, job *domain.Job, workerID int) {
	startedAt := time.Now()
	if p.logger != nil {
		p.logger.Printf(
			"job claimed worker=%d job_id=%s company=%s attempt=%d",
			workerID, job.ID, job.Payload.CompanyDomain, job.Attempts,
		)
	}

	p.progress(ctx, job.ID, 10)
	p.progress(ctx, job.ID, 20)

	content, pipelineErr := p.pipeline.Run(ctx, job.Payload)
	if pipelineErr != nil {
		p.fail(ctx, job, pipelineErr)
		return
	}
	p.progress(ctx, job.ID, 90)

	durationMs := time.Since(startedAt).Milliseconds()
	report, err := p.reports.CompleteGeneration(ctx, job.Payload, content, durationMs)
	if err != nil {
		p.fail(ctx, job, err)
		return
	}
	p.progress(ctx, job.ID, 100)

	result := domain.JobResult{
		ReportID:   report.ID,
		PublicSlug: report.PublicSlug,
		DurationMs: durationMs,
	}
	if err := p.queue.Complete(ctx, job.ID, result); err != nil && p.logger != nil {
		p.logger.Printf("mark job completed failed job_id=%s err=%v", job.ID, err)
	}

	if p.logger != nil {
		p.logger.Printf(
			"job completed worker=%d job_id=%s report_id=%s duration_ms=%d",
			workerID, job.ID, report.ID, durationMs,
		)
	}
}

// fail records the attempt failure on the report and the job. The report
// write is best-effort: its error is logged and never replaces the original
// pipeline failure.
func (p *Pool) fail(ctx context.Context, job *domain.Job, cause error) {
	if err := p.reports.FailGeneration(ctx, job.Payload, cause.Error()); err != nil && p.logger != nil {
		p.logger.Printf("record report failure failed job_id=%s err=%v", job.ID, err)
	}
	if err := p.queue.Fail(ctx, job.ID, cause); err != nil && p.logger != nil {
		p.logger.Printf("mark job failed failed job_id=%s err=%v", job.ID, err)
	}
}

func (p *Pool) progress(ctx context.Context, jobID string, value int) {
	if err := p.queue.UpdateProgress(ctx, jobID, value); err != nil && p.logger != nil {
		p.logger.Printf("update progress failed job_id=%s progress=%d err=%v", jobID, value, err)
	}
}
