package route

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"meterease/internal/config"
	"meterease/internal/handler"
	"meterease/internal/logger"
	"meterease/internal/metrics"
	"meterease/internal/middleware"
	"meterease/internal/service"
	"meterease/internal/service/auth"
	"meterease/internal/service/billing"
	"meterease/internal/service/storage"
	"meterease/internal/service/websocket"
	"meterease/internal/view"
)

// MeterDeps are the collaborators of the meter service routes.
type MeterDeps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Meter    *service.MeterService
	Store    *storage.ImageStore
	Renderer *view.Renderer
	Tariff   *billing.Tariff
	Hub      *websocket.HubService
	Metrics  *metrics.Metrics
	// Verifier guards the API routes when set.
	Verifier middleware.TokenVerifier
}

// SetupMeterRoutes registers the meter service API, pages, artifacts and
// log endpoints, then wraps the router with CORS and access logging.
func SetupMeterRoutes(d MeterDeps) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", handler.HealthHandler()).Methods(http.MethodGet)

	// API endpoints
	protect := func(h http.Handler) http.Handler { return h }
	if d.Verifier != nil {
		protect = middleware.AuthMiddleware(d.Verifier)
	}
	r.Handle("/predict", protect(handler.PredictHandler(d.Config, d.Logger, d.Meter))).Methods(http.MethodPost)
	r.Handle("/api/history", protect(handler.HistoryAPIHandler(d.Logger, d.Meter))).Methods(http.MethodGet)
	r.Handle("/api/live", protect(handler.LiveHandler(d.Hub, d.Logger))).Methods(http.MethodGet)

	// Artifacts
	r.HandleFunc("/image/{id}/{kind}", handler.ImageHandler(d.Store)).Methods(http.MethodGet)
	r.Handle("/images/{file}", handler.ArtifactFileHandler(d.Store)).Methods(http.MethodGet)

	// Pages
	r.HandleFunc("/view/{id}", handler.ViewPageHandler(d.Logger, d.Renderer, d.Meter, d.Store)).Methods(http.MethodGet)
	r.HandleFunc("/generate-bill", handler.BillPageHandler(d.Logger, d.Renderer, d.Meter, d.Tariff)).Methods(http.MethodGet)
	r.HandleFunc("/upload", handler.UploadPageHandler(d.Logger, d.Renderer)).Methods(http.MethodGet)
	r.HandleFunc("/history-page", handler.HistoryPageHandler(d.Logger, d.Renderer, d.Meter)).Methods(http.MethodGet)

	registerOps(r, d.Logger, d.Metrics, protect)

	return wrap(r, d.Config, d.Logger)
}

// SetupAuthRoutes registers the auth service endpoints.
func SetupAuthRoutes(cfg *config.Config, logger *logger.Logger, authService *auth.Service, m *metrics.Metrics) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/signup", handler.SignupHandler(logger, authService)).Methods(http.MethodPost)
	r.HandleFunc("/token", handler.TokenHandler(logger, authService)).Methods(http.MethodPost)
	r.HandleFunc("/users/me", handler.MeHandler(logger, authService)).Methods(http.MethodGet)

	registerOps(r, logger, m, middleware.AuthMiddleware(authService))

	return wrap(r, cfg, logger)
}

// registerOps adds metrics and the log endpoints. Log endpoints go through
// protect.
func registerOps(r *mux.Router, logger *logger.Logger, m *metrics.Metrics, protect func(http.Handler) http.Handler) {
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}
	r.Handle("/logs/{level}", protect(handler.ShowLogsHandler(logger))).Methods(http.MethodGet)
	r.Handle("/logs/{level}/clear", protect(handler.ClearLogsHandler(logger))).Methods(http.MethodPost)
}

func wrap(r *mux.Router, cfg *config.Config, logger *logger.Logger) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	return handlers.LoggingHandler(logger.AccessWriter(), cors(r))
}
