package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"live-quiz-service/internal/app"
)

// RouterConfig holds the router dependencies.
type RouterConfig struct {
	Service *app.SessionService
	Tokens  TokenValidator
	Logger  *slog.Logger
	// ResultsDir, when set, is served under /results/ for CSV downloads.
	ResultsDir string
}

// NewRouter creates the API router with all endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	admin := &adminHandler{service: cfg.Service}
	player := &playerHandler{service: cfg.Service}
	ws := NewWSHandler(cfg.Service, logger)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)
	if cfg.ResultsDir != "" {
		r.PathPrefix("/results/").Handler(http.StripPrefix("/results/", http.FileServer(http.Dir(cfg.ResultsDir))))
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(requestLogger(logger))

	// Owner routes
	adminRoutes := v1.PathPrefix("/admin/quiz/{quizId}").Subrouter()
	adminRoutes.Use(requireOwner(cfg.Tokens))
	adminRoutes.HandleFunc("/sessions", admin.listSessions).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/session/start", admin.startSession).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/session/{sessionId:[0-9]+}", admin.updateState).Methods(http.MethodPut)
	adminRoutes.HandleFunc("/session/{sessionId:[0-9]+}", admin.status).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/session/{sessionId:[0-9]+}/results", admin.results).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/session/{sessionId:[0-9]+}/results/csv", admin.resultsCSV).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/session/{sessionId:[0-9]+}/archive", admin.archivedResults).Methods(http.MethodGet)

	// Player routes are unauthenticated; the player id is the capability.
	v1.HandleFunc("/player/join", player.join).Methods(http.MethodPost)
	v1.HandleFunc("/player/{playerId:[0-9]+}", player.status).Methods(http.MethodGet)
	v1.HandleFunc("/player/{playerId:[0-9]+}/question/{position:[0-9]+}", player.question).Methods(http.MethodGet)
	v1.HandleFunc("/player/{playerId:[0-9]+}/question/{position:[0-9]+}/answer", player.submit).Methods(http.MethodPut)
	v1.HandleFunc("/player/{playerId:[0-9]+}/question/{position:[0-9]+}/results", player.questionResults).Methods(http.MethodGet)
	v1.HandleFunc("/player/{playerId:[0-9]+}/results", player.results).Methods(http.MethodGet)
	v1.HandleFunc("/player/{playerId:[0-9]+}/chat", player.viewChat).Methods(http.MethodGet)
	v1.HandleFunc("/player/{playerId:[0-9]+}/chat", player.sendChat).Methods(http.MethodPost)

	return r
}
