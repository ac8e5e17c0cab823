package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	httpserver "github.com/mediapulse/mediapulse-back/internal/http"
	"github.com/mediapulse/mediapulse-back/internal/http/handlers"
	"github.com/mediapulse/mediapulse-back/internal/orchestrator"
	"github.com/mediapulse/mediapulse-back/internal/pipeline"
	"github.com/mediapulse/mediapulse-back/internal/queue"
	"github.com/mediapulse/mediapulse-back/internal/repository"
	"github.com/mediapulse/mediapulse-back/internal/search"
	"github.com/mediapulse/mediapulse-back/internal/service"
	"github.com/mediapulse/mediapulse-back/internal/worker"
)

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

type benchmarkEnv struct {
	server *httptest.Server
	cancel func()
}

func main() {
	generationsTotal := flag.Int("generations-total", 200, "total generation enqueue requests")
	generationsConcurrency := flag.Int("generations-concurrency", 24, "concurrency for generation enqueue requests")
	statusTotal := flag.Int("status-total", 400, "total job status requests")
	statusConcurrency := flag.Int("status-concurrency", 32, "concurrency for job status requests")
	statsTotal := flag.Int("stats-total", 200, "total queue stats requests")
	statsConcurrency := flag.Int("stats-concurrency", 16, "concurrency for queue stats requests")
	publicTotal := flag.Int("public-total", 300, "total public report read requests")
	publicConcurrency := flag.Int("public-concurrency", 24, "concurrency for public report read requests")
	outputPath := flag.String("output", "", "optional path to persist benchmark results JSON")
	flag.Parse()

	env, err := startBenchmarkEnvironment()
	if err != nil {
		log.Fatalf("failed to start local benchmark environment: %v", err)
	}
	defer env.cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	var idCounter int64

	// Seed one completed public report so status and public-read scenarios
	// measure steady-state reads, not pipeline latency.
	seedJobID, seedSlug, err := seedCompletedReport(client, env.server.URL)
	if err != nil {
		log.Fatalf("failed to seed completed report: %v", err)
	}

	generationsScenario := runScenario("generations_enqueue", *generationsTotal, *generationsConcurrency, func(index int) error {
		requestID := atomic.AddInt64(&idCounter, 1)
		payload := map[string]any{
			"company_name":    fmt.Sprintf("Acme Robotics %d", index%32),
			"company_domain":  fmt.Sprintf("acme-%d.io", index%32),
			"report_type":     "media_monitoring",
			"date_range_days": 7,
		}
		headers := map[string]string{
			"Idempotency-Key": fmt.Sprintf("gen-%d-%d", requestID, time.Now().UnixNano()),
		}
		return postJSON(client, env.server.URL+"/v1/generations", payload, headers, http.StatusAccepted)
	})

	statusScenario := runScenario("job_status", *statusTotal, *statusConcurrency, func(index int) error {
		return getJSON(client, env.server.URL+"/v1/jobs/"+seedJobID, http.StatusOK)
	})

	statsScenario := runScenario("queue_stats", *statsTotal, *statsConcurrency, func(index int) error {
		return getJSON(client, env.server.URL+"/v1/queue/stats", http.StatusOK)
	})

	publicScenario := runScenario("public_report_read", *publicTotal, *publicConcurrency, func(index int) error {
		return getJSON(client, env.server.URL+"/p/"+seedSlug, http.StatusOK)
	})

	results := []scenarioResult{
		generationsScenario,
		statusScenario,
		statsScenario,
		publicScenario,
	}

	slo := map[string]bool{
		"submission_p95_le_500ms":  generationsScenario.P95MS <= 500,
		"job_status_p95_le_200ms":  statusScenario.P95MS <= 200,
		"public_read_p95_le_200ms": publicScenario.P95MS <= 200,
		"queue_stats_p95_le_200ms": statsScenario.P95MS <= 200,
		"submission_zero_errors":   generationsScenario.Errors == 0,
		"public_read_zero_errors":  publicScenario.Errors == 0,
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Results:        results,
		SLOEvaluation:  slo,
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal benchmark report: %v", err)
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			log.Fatalf("failed to write output file: %v", err)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

func startBenchmarkEnvironment() (*benchmarkEnv, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)

	newsServer := startNewsServer()
	searchClient := search.NewClient(search.ClientConfig{
		APIKey:  "benchmark-key",
		BaseURL: newsServer.URL,
	})

	reportPipeline := pipeline.New(pipeline.Dependencies{
		Planner:     pipeline.NewAIPlanner(nil, nil, logger),
		Searcher:    searchClient,
		Summarizer:  pipeline.NewAISummarizer(nil, nil, logger),
		Synthesizer: pipeline.NewAISynthesizer(nil, nil, logger),
		Images:      pipeline.NewAIIllustrator(nil, ""),
		Logger:      logger,
	}, pipeline.Config{ArticleCount: 3})

	repo := repository.NewMemoryReportsRepository()
	jobQueue := queue.NewMemoryQueue(queue.Policy{
		MaxAttempts:     2,
		RetainCompleted: 4096,
		RetainFailed:    4096,
	}, logger)
	reportsService := service.NewReportsService(repo, nil)
	jobsService := service.NewJobsService(jobQueue, repo)

	api := handlers.NewAPI(jobsService, reportsService)
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      "",
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	pool := worker.NewPool(jobQueue, reportsService, reportPipeline, worker.PoolConfig{
		Concurrency: 4,
		RateLimit:   100000,
		RateWindow:  time.Minute,
	}, logger)
	controller := orchestrator.NewController(jobQueue, pool, logger)
	controller.Start(ctx)

	server := httptest.NewServer(router)
	return &benchmarkEnv{
		server: server,
		cancel: func() {
			cancel()
			controller.Stop()
			server.Close()
			newsServer.Close()
		},
	}, nil
}

func startNewsServer() *httptest.Server {
	now := time.Now().UTC()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		articles := make([]map[string]any, 0, 5)
		for i := 0; i < 5; i++ {
			articles = append(articles, map[string]any{
				"title":       fmt.Sprintf("Industry update %d", i),
				"url":         fmt.Sprintf("https://outlet-%d.test/story-%d", i, i),
				"description": "A notable development in the industry this week.",
				"content":     "The company announced a significant product milestone on Monday.",
				"publishedAt": now.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
				"source":      map[string]any{"name": fmt.Sprintf("outlet-%d", i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"articles": articles})
	}))
}

func seedCompletedReport(client *http.Client, baseURL string) (jobID, slug string, err error) {
	payload := map[string]any{
		"company_name":    "Seed Company",
		"company_domain":  "seed.io",
		"report_type":     "media_monitoring",
		"date_range_days": 7,
		"is_public":       true,
	}
	encoded, _ := json.Marshal(payload)
	response, err := client.Post(baseURL+"/v1/generations", "application/json", bytes.NewReader(encoded))
	if err != nil {
		return "", "", err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusAccepted {
		return "", "", fmt.Errorf("seed submission returned %d", response.StatusCode)
	}
	var accepted struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(response.Body).Decode(&accepted); err != nil {
		return "", "", err
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		statusResponse, err := client.Get(baseURL + "/v1/jobs/" + accepted.JobID)
		if err != nil {
			return "", "", err
		}
		var view struct {
			Status string `json:"status"`
			Result *struct {
				PublicSlug string `json:"public_slug"`
			} `json:"result"`
		}
		decodeErr := json.NewDecoder(statusResponse.Body).Decode(&view)
		statusResponse.Body.Close()
		if decodeErr != nil {
			return "", "", decodeErr
		}
		switch view.Status {
		case "completed":
			if view.Result == nil || view.Result.PublicSlug == "" {
				return "", "", fmt.Errorf("completed seed job has no public slug")
			}
			return accepted.JobID, view.Result.PublicSlug, nil
		case "failed":
			return "", "", fmt.Errorf("seed job failed")
		}
		time.Sleep(20 * time.Millisecond)
	}
	return "", "", fmt.Errorf("timeout waiting for seed job")
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()
	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{
					durationMS: float64(time.Since(requestStart).Microseconds()) / 1000.0,
				}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
}

func postJSON(
	client *http.Client,
	url string,
	payload any,
	headers map[string]string,
	expectedStatus int,
) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func getJSON(client *http.Client, url string, expectedStatus int) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
