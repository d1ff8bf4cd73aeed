package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bookmyfaculty/internal/config"
	"bookmyfaculty/internal/export"
	"bookmyfaculty/internal/metrics"
	"bookmyfaculty/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the scheduling service as a JSON API.
type HTTPServer struct {
	cfg        config.APIConfig
	scheduling *service.SchedulingService
	exporter   *export.XLSXExporter
	server     *http.Server
	auth       *HTTPAuth
	logger     zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, scheduling *service.SchedulingService, exporter *export.XLSXExporter, auth *HTTPAuth, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:        cfg,
		scheduling: scheduling,
		exporter:   exporter,
		auth:       auth,
	}
	if logger != nil {
		srv.logger = logger.With().Str("component", "http_api").Logger()
	}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/v1/slots", srv.handleSlots)
	apiMux.HandleFunc("/api/v1/slots/", srv.handleSlotByID)
	apiMux.HandleFunc("/api/v1/reservations", srv.handleReservations)
	apiMux.HandleFunc("/api/v1/reservations/", srv.handleReservationByID)
	apiMux.HandleFunc("/api/v1/notifications", srv.handleNotifications)
	apiMux.HandleFunc("/api/v1/notifications/", srv.handleNotificationByID)
	apiMux.HandleFunc("/api/v1/export/reservations", srv.handleExport)

	// Health stays outside auth so probes need no credentials.
	mux := http.NewServeMux()
	mux.Handle("/api/v1/", auth.Wrap(apiMux))
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.requestIDMiddleware(srv.loggingMiddleware(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

const requestIDHeader = "X-Request-Id"

// requestIDMiddleware attaches a request id for log correlation, reusing
// the client's id when present.
func (s *HTTPServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r.Header.Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(endpointLabel(r.URL.Path))

		s.logger.Info().
			Str("request_id", r.Header.Get(requestIDHeader)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// endpointLabel collapses id-bearing paths so the metric cardinality
// stays bounded.
func endpointLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/slots"):
		return "slots"
	case strings.HasPrefix(path, "/api/v1/reservations"):
		return "reservations"
	case strings.HasPrefix(path, "/api/v1/notifications"):
		return "notifications"
	case strings.HasPrefix(path, "/api/v1/export"):
		return "export"
	case path == "/healthz":
		return "health"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
