package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mediapulse/mediapulse-back/internal/domain"
	"github.com/mediapulse/mediapulse-back/internal/repository"
)

// Reports serves owner-facing reads and visibility toggles:
// GET /v1/reports/{id} and PUT /v1/reports/{id}/visibility.
func (api *API) Reports(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/reports/")
	reportID, action, _ := strings.Cut(rest, "/")
	reportID = strings.TrimSpace(reportID)
	if reportID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "report id is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		api.reportByID(w, r, reportID)
	case action == "visibility" && r.Method == http.MethodPut:
		api.setVisibility(w, r, reportID)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// PublicReports serves unauthenticated reads by slug and counts each view.
func (api *API) PublicReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	slug := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/p/"))
	if slug == "" || strings.Contains(slug, "/") {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "slug is required")
		return
	}

	report, err := api.reportsService.GetReportBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "report not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, reportResponse(report))
}

func (api *API) reportByID(w http.ResponseWriter, r *http.Request, reportID string) {
	report, err := api.reportsService.GetReport(r.Context(), reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "report not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, reportResponse(report))
}

func (api *API) setVisibility(w http.ResponseWriter, r *http.Request, reportID string) {
	var request visibilityRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	report, err := api.reportsService.SetVisibility(r.Context(), reportID, request.IsPublic)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "report not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to update visibility")
		return
	}
	writeJSON(w, http.StatusOK, reportResponse(report))
}

func reportResponse(report domain.Report) map[string]any {
	response := map[string]any{
		"report_id":  report.ID,
		"status":     report.Status,
		"is_public":  report.IsPublic,
		"view_count": report.ViewCount,
		"created_at": report.CreatedAt,
		"updated_at": report.UpdatedAt,
	}
	if report.PublicSlug != "" {
		response["public_slug"] = report.PublicSlug
	}
	if report.Content != nil {
		response["content"] = report.Content
	}
	if report.GenerationDurationMs > 0 {
		response["generation_duration_ms"] = report.GenerationDurationMs
	}
	if report.ErrorMessage != "" {
		response["error_message"] = report.ErrorMessage
	}
	return response
}
