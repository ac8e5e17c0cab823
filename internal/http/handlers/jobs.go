package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mediapulse/mediapulse-back/internal/queue"
)

// Jobs serves status polling and pre-start cancellation for a single job.
func (api *API) Jobs(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/v1/jobs/"))
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		api.jobStatus(w, r, jobID)
	case http.MethodDelete:
		api.cancelJob(w, r, jobID)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (api *API) jobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	view, err := api.jobsService.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (api *API) cancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	removed, err := api.jobsService.Cancel(r.Context(), jobID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to cancel job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":   jobID,
		"canceled": removed,
	})
}

// QueueStats exposes aggregate job counts for operational dashboards.
func (api *API) QueueStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	stats, err := api.jobsService.Stats(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load queue stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
