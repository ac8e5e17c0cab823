package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
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

type integrationRuntime struct {
	server *httptest.Server
	cancel context.CancelFunc
}

// startNewsServer fakes the upstream news API with a fixed result set so
// runs are deterministic and offline.
func startNewsServer(t *testing.T) *httptest.Server {
	t.Helper()

	now := time.Now().UTC()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/everything") {
			http.NotFound(w, r)
			return
		}
		articles := make([]map[string]any, 0, 5)
		for i := 0; i < 5; i++ {
			articles = append(articles, map[string]any{
				"title":       fmt.Sprintf("Acme Robotics update %d", i),
				"url":         fmt.Sprintf("https://outlet-%d.test/acme-%d", i, i),
				"description": "Acme Robotics shipped a new product line this week.",
				"content":     "Acme Robotics announced availability of its new line across Europe.",
				"publishedAt": now.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
				"source":      map[string]any{"name": fmt.Sprintf("outlet-%d", i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"articles": articles})
	}))
}

func startIntegrationRuntime(t *testing.T, workerEnabled bool) integrationRuntime {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)

	newsServer := startNewsServer(t)
	searchClient := search.NewClient(search.ClientConfig{
		APIKey:  "integration-test-key",
		BaseURL: newsServer.URL,
	})

	// Nil AI client exercises the deterministic offline fallbacks for
	// planning, summaries, synthesis and images.
	reportPipeline := pipeline.New(pipeline.Dependencies{
		Planner:     pipeline.NewAIPlanner(nil, nil, logger),
		Searcher:    searchClient,
		Summarizer:  pipeline.NewAISummarizer(nil, nil, logger),
		Synthesizer: pipeline.NewAISynthesizer(nil, nil, logger),
		Images:      pipeline.NewAIIllustrator(nil, ""),
		Logger:      logger,
	}, pipeline.Config{ArticleCount: 3})

	repo := repository.NewMemoryReportsRepository()
	jobQueue := queue.NewMemoryQueue(queue.Policy{MaxAttempts: 2, BackoffBase: 20 * time.Millisecond}, logger)
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

	var controller *orchestrator.Controller
	if workerEnabled {
		pool := worker.NewPool(jobQueue, reportsService, reportPipeline, worker.PoolConfig{Concurrency: 2}, logger)
		controller = orchestrator.NewController(jobQueue, pool, logger)
		controller.Start(ctx)
	}

	server := httptest.NewServer(router)
	return integrationRuntime{
		server: server,
		cancel: func() {
			cancel()
			if controller != nil {
				controller.Stop()
			} else {
				_ = jobQueue.Close()
			}
			server.Close()
			newsServer.Close()
		},
	}
}

func doJSON(
	t *testing.T,
	client *http.Client,
	method, url string,
	payload any,
	headers map[string]string,
) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}
	request, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		t.Fatalf("execute request: %v", err)
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(response.Body)
	if len(raw) == 0 {
		return response.StatusCode, map[string]any{}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode response body (%d): %s", response.StatusCode, string(raw))
	}
	return response.StatusCode, decoded
}

func waitForJobCompleted(
	t *testing.T,
	client *http.Client,
	baseURL, jobID string,
	timeout time.Duration,
) map[string]any {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, body := doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/v1/jobs/%s", baseURL, jobID), nil, nil)
		if status == http.StatusOK {
			jobStatus, _ := body["status"].(string)
			if jobStatus == "completed" {
				return body
			}
			if jobStatus == "failed" {
				t.Fatalf("job %s failed: %+v", jobID, body)
			}
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("timeout waiting for job %s to complete", jobID)
	return nil
}

func generationPayload() map[string]any {
	return map[string]any{
		"company_name":    "Acme Robotics",
		"company_domain":  "acme.io",
		"industry":        "industrial automation",
		"competitors":     []string{"Initech", "Globex"},
		"report_type":     "media_monitoring",
		"date_range_days": 7,
		"is_public":       true,
	}
}

func TestGenerationFlowEndToEnd(t *testing.T) {
	runtime := startIntegrationRuntime(t, true)
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	status, body := doJSON(
		t, client, http.MethodPost,
		baseURL+"/v1/generations",
		generationPayload(),
		map[string]string{"Idempotency-Key": "gen-e2e-0001"},
	)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202 from generations, got %d body=%+v", status, body)
	}
	jobID, _ := body["job_id"].(string)
	if strings.TrimSpace(jobID) == "" {
		t.Fatalf("expected job id, got %+v", body)
	}
	if statusURL, _ := body["status_url"].(string); statusURL != "/v1/jobs/"+jobID {
		t.Fatalf("expected status url for job, got %+v", body["status_url"])
	}

	// Replaying the same key and payload must return the same job.
	replayStatus, replayBody := doJSON(
		t, client, http.MethodPost,
		baseURL+"/v1/generations",
		generationPayload(),
		map[string]string{"Idempotency-Key": "gen-e2e-0001"},
	)
	if replayStatus != http.StatusAccepted {
		t.Fatalf("expected 202 on idempotent replay, got %d body=%+v", replayStatus, replayBody)
	}
	if replayID, _ := replayBody["job_id"].(string); replayID != jobID {
		t.Fatalf("expected replay to return job %s, got %s", jobID, replayID)
	}

	// Same key with a different payload is a conflict.
	conflictPayload := generationPayload()
	conflictPayload["company_domain"] = "other.io"
	conflictStatus, _ := doJSON(
		t, client, http.MethodPost,
		baseURL+"/v1/generations",
		conflictPayload,
		map[string]string{"Idempotency-Key": "gen-e2e-0001"},
	)
	if conflictStatus != http.StatusConflict {
		t.Fatalf("expected 409 on idempotency conflict, got %d", conflictStatus)
	}

	job := waitForJobCompleted(t, client, baseURL, jobID, 10*time.Second)
	if progress, _ := job["progress"].(float64); progress != 100 {
		t.Fatalf("expected progress 100, got %v", job["progress"])
	}
	result, ok := job["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected job result, got %+v", job)
	}
	reportID, _ := result["report_id"].(string)
	slug, _ := result["public_slug"].(string)
	if reportID == "" || slug == "" {
		t.Fatalf("expected report id and public slug in result, got %+v", result)
	}

	reportStatus, reportBody := doJSON(t, client, http.MethodGet, baseURL+"/v1/reports/"+reportID, nil, nil)
	if reportStatus != http.StatusOK {
		t.Fatalf("expected 200 from report read, got %d body=%+v", reportStatus, reportBody)
	}
	if state, _ := reportBody["status"].(string); state != "completed" {
		t.Fatalf("expected completed report, got %+v", reportBody["status"])
	}
	content, ok := reportBody["content"].(map[string]any)
	if !ok {
		t.Fatalf("expected report content, got %+v", reportBody)
	}
	articles, ok := content["articles"].([]any)
	if !ok || len(articles) != 3 {
		t.Fatalf("expected 3 articles in report content, got %+v", content["articles"])
	}
	if summary, _ := content["summary"].(string); strings.TrimSpace(summary) == "" {
		t.Fatalf("expected non-empty overall summary, got %+v", content["summary"])
	}

	// Public reads by slug count views; owner reads by id never do.
	for want := 1; want <= 2; want++ {
		publicStatus, publicBody := doJSON(t, client, http.MethodGet, baseURL+"/p/"+slug, nil, nil)
		if publicStatus != http.StatusOK {
			t.Fatalf("expected 200 from public read, got %d body=%+v", publicStatus, publicBody)
		}
		if views, _ := publicBody["view_count"].(float64); int(views) != want {
			t.Fatalf("expected view count %d, got %v", want, publicBody["view_count"])
		}
	}
	_, reportBody = doJSON(t, client, http.MethodGet, baseURL+"/v1/reports/"+reportID, nil, nil)
	if views, _ := reportBody["view_count"].(float64); int(views) != 2 {
		t.Fatalf("expected owner read to leave view count at 2, got %v", reportBody["view_count"])
	}

	// Revoking visibility kills the public link.
	revokeStatus, revokeBody := doJSON(
		t, client, http.MethodPut,
		baseURL+"/v1/reports/"+reportID+"/visibility",
		map[string]any{"is_public": false},
		nil,
	)
	if revokeStatus != http.StatusOK {
		t.Fatalf("expected 200 from visibility update, got %d body=%+v", revokeStatus, revokeBody)
	}
	if _, hasSlug := revokeBody["public_slug"]; hasSlug {
		t.Fatalf("expected slug cleared after revoke, got %+v", revokeBody["public_slug"])
	}
	goneStatus, _ := doJSON(t, client, http.MethodGet, baseURL+"/p/"+slug, nil, nil)
	if goneStatus != http.StatusNotFound {
		t.Fatalf("expected 404 after revoke, got %d", goneStatus)
	}
}

func TestSubmissionValidationAndCancellation(t *testing.T) {
	runtime := startIntegrationRuntime(t, false)
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	invalid := generationPayload()
	invalid["report_type"] = "press_review"
	status, body := doJSON(t, client, http.MethodPost, baseURL+"/v1/generations", invalid, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown report type, got %d body=%+v", status, body)
	}
	errorEnvelope, ok := body["error"].(map[string]any)
	if !ok || fmt.Sprintf("%v", errorEnvelope["code"]) != "invalid_request" {
		t.Fatalf("expected invalid_request error envelope, got %+v", body)
	}

	// With the worker disabled the job stays waiting and can be canceled.
	status, body = doJSON(t, client, http.MethodPost, baseURL+"/v1/generations", generationPayload(), nil)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%+v", status, body)
	}
	jobID, _ := body["job_id"].(string)

	statsStatus, statsBody := doJSON(t, client, http.MethodGet, baseURL+"/v1/queue/stats", nil, nil)
	if statsStatus != http.StatusOK {
		t.Fatalf("expected 200 from queue stats, got %d", statsStatus)
	}
	if waiting, _ := statsBody["waiting"].(float64); int(waiting) != 1 {
		t.Fatalf("expected 1 waiting job, got %+v", statsBody)
	}

	cancelStatus, cancelBody := doJSON(t, client, http.MethodDelete, baseURL+"/v1/jobs/"+jobID, nil, nil)
	if cancelStatus != http.StatusOK {
		t.Fatalf("expected 200 from cancel, got %d body=%+v", cancelStatus, cancelBody)
	}
	if canceled, _ := cancelBody["canceled"].(bool); !canceled {
		t.Fatalf("expected waiting job canceled, got %+v", cancelBody)
	}

	missingStatus, _ := doJSON(t, client, http.MethodGet, baseURL+"/v1/jobs/"+jobID, nil, nil)
	if missingStatus != http.StatusNotFound {
		t.Fatalf("expected 404 for canceled job, got %d", missingStatus)
	}
}
