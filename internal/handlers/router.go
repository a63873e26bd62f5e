package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/tropicaldog17/mangaguard/internal/models"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// RouterConfig wires the handlers into the HTTP surface.
type RouterConfig struct {
	Posts      *PostHandler
	Moderation *ModerationHandler
	Reporting  *ReportingHandler
	// Checks are run by /health; a failing check turns the response into 503.
	Checks map[string]HealthCheck
	Logger *zap.Logger
}

// NewRouter builds the API router with request id, access log and CORS middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(RequestID, AccessLog(logger))

	router.HandleFunc("/health", healthHandler(cfg.Checks)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/posts", cfg.Posts.HandlePosts).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/posts/{id:[0-9]+}", cfg.Posts.HandlePost).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id:[0-9]+}/history", cfg.Posts.HandleHistory).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id:[0-9]+}/reanalyze", cfg.Posts.HandleReanalyze).Methods(http.MethodPost)

	mod := api.PathPrefix("/moderation").Subrouter()
	mod.HandleFunc("/pending", cfg.Moderation.HandlePending).Methods(http.MethodGet)
	mod.HandleFunc("/editorial-feedback", cfg.Moderation.HandleEditorial).Methods(http.MethodGet)
	mod.HandleFunc("/quick-analysis", cfg.Moderation.HandleQuickAnalysis).Methods(http.MethodPost)
	mod.HandleFunc("/{id:[0-9]+}/approve", cfg.Moderation.HandleAction(models.ActionApprove)).Methods(http.MethodPost)
	mod.HandleFunc("/{id:[0-9]+}/reject", cfg.Moderation.HandleAction(models.ActionReject)).Methods(http.MethodPost)
	mod.HandleFunc("/{id:[0-9]+}/approve-editorial", cfg.Moderation.HandleAction(models.ActionApproveEditorial)).Methods(http.MethodPost)
	mod.HandleFunc("/{id:[0-9]+}/reject-editorial", cfg.Moderation.HandleAction(models.ActionRejectEditorial)).Methods(http.MethodPost)

	mod.HandleFunc("/stats", cfg.Reporting.HandleStats).Methods(http.MethodGet)
	mod.HandleFunc("/similar-posts/{id:[0-9]+}", cfg.Reporting.HandleSimilarPosts).Methods(http.MethodGet)
	mod.HandleFunc("/user-activity", cfg.Reporting.HandleUserActivity).Methods(http.MethodGet)
	mod.HandleFunc("/user-activity/{userId}", cfg.Reporting.HandleUserDetail).Methods(http.MethodGet)

	return CORS(router)
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "unhealthy"
		}
		writeJSON(w, status, map[string]interface{}{
			"status":  state,
			"service": "mangaguard",
			"checks":  results,
		})
	}
}
