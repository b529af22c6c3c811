package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/realjkeee/zenbot/internal/api/handlers"
	"github.com/realjkeee/zenbot/pkg/logger"
)

const serviceName = "zenbot-darwin"

// Routes bundles what the status router serves; nil members are not mounted
type Routes struct {
	Status  *handlers.StatusHandler
	Hub     *Hub
	Metrics http.Handler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("http")

	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler(routes.Status)).Methods(http.MethodGet)

	if routes.Status != nil {
		api := r.PathPrefix("/api").Subrouter()
		api.HandleFunc("/populations", routes.Status.GetPopulations).Methods(http.MethodGet)
		api.HandleFunc("/populations/{strategy}", routes.Status.GetPopulation).Methods(http.MethodGet)
		api.HandleFunc("/generations/latest", routes.Status.GetLatestGeneration).Methods(http.MethodGet)
	}
	if routes.Hub != nil {
		r.HandleFunc("/ws", routes.Hub.ServeWS).Methods(http.MethodGet)
	}
	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics).Methods(http.MethodGet)
	}

	r.Use(recoveryMiddleware(log), loggingMiddleware(log))
	return r
}

// healthHandler reports liveness plus the loop position when a status source is mounted
func healthHandler(status *handlers.StatusHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": serviceName,
		}
		if status != nil {
			for k, v := range status.Health() {
				body[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}

// statusRecorder captures the response code; Hijack passes through for /ws
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// loggingMiddleware logs HTTP requests; 5xx at warn, the rest at debug
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			entry := log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Warn("HTTP request failed")
				return
			}
			entry.Debug("HTTP request")
		})
	}
}

// recoveryMiddleware turns a handler panic into a 500 instead of killing the search
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{"error": "Internal server error"})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
