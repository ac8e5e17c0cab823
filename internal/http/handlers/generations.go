package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mediapulse/mediapulse-back/internal/domain"
	"github.com/mediapulse/mediapulse-back/internal/service"
)

// Generations accepts report generation requests. Submission is asynchronous:
// the response carries the job id to poll.
func (api *API) Generations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request generationRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	// Time-based dedupe keys cannot catch concurrent duplicates, so true
	// idempotency is opt-in through this header.
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(request)
	if idempotencyKey != "" {
		if entry, exists := api.idempotency.Get(idempotencyKey); exists {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "Idempotency-Key already used with different payload")
				return
			}
			writeAccepted(w, entry.JobID, entry.CreatedAt)
			return
		}
	}

	jobID, err := api.jobsService.Submit(r.Context(), domain.ReportRequest{
		CompanyName:    request.CompanyName,
		CompanyDomain:  request.CompanyDomain,
		Industry:       request.Industry,
		Competitors:    request.Competitors,
		ReportType:     request.ReportType,
		DateRangeDays:  request.DateRangeDays,
		TargetReportID: request.TargetReportID,
		IsPublic:       request.IsPublic,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, "queue_unavailable", "failed to submit generation job")
		return
	}

	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, jobID)
	}
	writeAccepted(w, jobID, time.Now().UTC())
}

func writeAccepted(w http.ResponseWriter, jobID string, acceptedAt time.Time) {
	w.Header().Set("Retry-After", "2")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      jobID,
		"status":      domain.JobStatusWaiting,
		"status_url":  "/v1/jobs/" + jobID,
		"accepted_at": acceptedAt.Format(time.RFC3339Nano),
	})
}
