package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// AuthConfig guards the API surface under ProtectedPrefix with a static
// bearer token. An empty token disables the check, which keeps local
// development and the memory-backed test runtime friction free.
type AuthConfig struct {
	Token           string
	ProtectedPrefix string
}

func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	prefix := cfg.ProtectedPrefix
	if prefix == "" {
		prefix = "/v1/"
	}
	token := strings.TrimSpace(cfg.Token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
			if bearerToken(r.Header.Get("Authorization")) != token {
				writeErrorEnvelope(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(authorization string) string {
	const scheme = "Bearer "
	if !strings.HasPrefix(authorization, scheme) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authorization, scheme))
}

// writeErrorEnvelope mirrors the handlers' error body shape so middleware
// rejections look the same to clients as handler rejections.
func writeErrorEnvelope(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	body := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		RequestID string `json:"request_id"`
	}{RequestID: GetRequestID(r.Context())}
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
