package httpserver

import (
	"log"
	"net/http"

	"github.com/mediapulse/mediapulse-back/internal/http/handlers"
	"github.com/mediapulse/mediapulse-back/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/generations", deps.API.Generations)
	mux.HandleFunc("/v1/jobs/", deps.API.Jobs)
	mux.HandleFunc("/v1/queue/stats", deps.API.QueueStats)
	mux.HandleFunc("/v1/reports/", deps.API.Reports)
	mux.HandleFunc("/p/", deps.API.PublicReports)

	handler := http.Handler(mux)
	handler = middleware.Auth(middleware.AuthConfig{
		Token:           deps.AuthToken,
		ProtectedPrefix: "/v1/",
	})(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
