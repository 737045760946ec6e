package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"kalafw/internal/config"
	coreerrors "kalafw/internal/core/errors"
	"kalafw/internal/logging"
	"kalafw/internal/metrics"
)

// AllowList is the read side of the firewall monitor.
type AllowList interface {
	AllowedIPs() []string
}

// HistoryView is the read side of the session history.
type HistoryView interface {
	Entries() []string
}

// StatusAPI serves a read-only view of the session: allow-list, history and
// Prometheus metrics. It never changes firewall state.
type StatusAPI struct {
	allowList AllowList
	history   HistoryView
	metrics   *metrics.Collector
	logger    *logging.Logger
	limiter   *rate.Limiter
	startTime time.Time
	version   string
}

// APIResponse is the envelope of every JSON reply
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Health is returned by /health
type Health struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	AllowedIPs int    `json:"allowed_ips"`
}

// NewStatusAPI creates a status API instance
func NewStatusAPI(cfg config.StatusConfig, allowList AllowList, history HistoryView, collector *metrics.Collector, logger *logging.Logger, version string) *StatusAPI {
	if logger == nil {
		logger = logging.NewNop()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &StatusAPI{
		allowList: allowList,
		history:   history,
		metrics:   collector,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		startTime: time.Now(),
		version:   version,
	}
}

// Router builds the HTTP routes
func (api *StatusAPI) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(api.rateLimit)

	router.HandleFunc("/health", api.getHealth).Methods("GET")
	if api.metrics != nil {
		router.Handle("/metrics", api.metrics).Methods("GET")
	}

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/allowed", api.listAllowed).Methods("GET")
	v1.HandleFunc("/allowed/{ip}", api.getAllowed).Methods("GET")
	v1.HandleFunc("/history", api.listHistory).Methods("GET")

	return router
}

func (api *StatusAPI) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !api.limiter.Allow() {
			coreerrors.ErrRateLimitExceeded.WriteHTTP(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (api *StatusAPI) getHealth(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: Health{
			Status:     "ok",
			Version:    api.version,
			Uptime:     time.Since(api.startTime).Round(time.Second).String(),
			AllowedIPs: len(api.allowList.AllowedIPs()),
		},
	})
}

func (api *StatusAPI) listAllowed(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: api.allowList.AllowedIPs()})
}

func (api *StatusAPI) getAllowed(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]
	for _, allowed := range api.allowList.AllowedIPs() {
		if allowed == ip {
			api.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: ip})
			return
		}
	}
	coreerrors.ErrNotFound.WithDetails(map[string]interface{}{"ip": ip}).WriteHTTP(w)
}

func (api *StatusAPI) listHistory(w http.ResponseWriter, r *http.Request) {
	entries := api.history.Entries()
	if entries == nil {
		entries = []string{}
	}
	api.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: entries})
}

func (api *StatusAPI) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		api.logger.Error("Failed to encode response", err)
	}
}

// Server runs the status API in the background.
type Server struct {
	srv    *http.Server
	logger *logging.Logger
}

// Start listens on addr in a new goroutine.
func Start(addr string, api *StatusAPI, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
	go func() {
		logger.Info("Status API listening", logging.String("addr", addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status API server error", err)
		}
	}()
	return s
}

// Shutdown stops the server, waiting at most five seconds.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
