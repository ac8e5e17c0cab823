package handlers

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/mediapulse/mediapulse-back/internal/http/middleware"
	"github.com/mediapulse/mediapulse-back/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

type API struct {
	jobsService    *service.JobsService
	reportsService *service.ReportsService
	idempotency    *idempotencyStore
}

func NewAPI(jobsService *service.JobsService, reportsService *service.ReportsService) *API {
	return &API{
		jobsService:    jobsService,
		reportsService: reportsService,
		idempotency:    newIdempotencyStore(),
	}
}

type generationRequest struct {
	CompanyName    string   `json:"company_name"`
	CompanyDomain  string   `json:"company_domain"`
	Industry       string   `json:"industry,omitempty"`
	Competitors    []string `json:"competitors,omitempty"`
	ReportType     string   `json:"report_type"`
	DateRangeDays  int      `json:"date_range_days,omitempty"`
	TargetReportID string   `json:"target_report_id,omitempty"`
	IsPublic       bool     `json:"is_public,omitempty"`
}

type visibilityRequest struct {
	IsPublic bool `json:"is_public"`
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

const (
	idempotencyTTL        = 24 * time.Hour
	idempotencyMaxEntries = 10000
)

type idempotencyEntry struct {
	PayloadHash uint64
	JobID       string
	CreatedAt   time.Time
}

// idempotencyStore keeps replay keys in process memory, bounded by a TTL and
// a max entry count so keyed submissions never grow it without limit.
type idempotencyStore struct {
	mu         sync.Mutex
	entries    map[string]idempotencyEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func newIdempotencyStore() *idempotencyStore {
	return &idempotencyStore{
		entries:    make(map[string]idempotencyEntry),
		ttl:        idempotencyTTL,
		maxEntries: idempotencyMaxEntries,
		now:        time.Now,
	}
}

func (s *idempotencyStore) Get(key string) (idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return idempotencyEntry{}, false
	}
	if s.now().UTC().Sub(entry.CreatedAt) > s.ttl {
		delete(s.entries, key)
		return idempotencyEntry{}, false
	}
	return entry, true
}

func (s *idempotencyStore) Put(key string, payloadHash uint64, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}
	s.entries[key] = idempotencyEntry{
		PayloadHash: payloadHash,
		JobID:       jobID,
		CreatedAt:   s.now().UTC(),
	}
}

func (s *idempotencyStore) evictOldestLocked() {
	oldestKey := ""
	oldestAt := time.Time{}
	for key, entry := range s.entries {
		if oldestKey == "" || entry.CreatedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.CreatedAt
		}
	}
	delete(s.entries, oldestKey)
}

func hashPayload(value any) uint64 {
	payload, _ := json.Marshal(value)
	hasher := fnv.New64a()
	_, _ = hasher.Write(payload)
	return hasher.Sum64()
}
