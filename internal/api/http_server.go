package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/export"
	"salonbook/internal/metrics"
	"salonbook/internal/service"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Services bundles the booking operations exposed over HTTP and gRPC.
type Services struct {
	Availability *service.AvailabilityService
	Booking      *service.BookingService
	Salons       *service.SalonService
	Exporter     *export.Exporter
}

// HTTPServer exposes the booking API as JSON over HTTP.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	actors *ActorResolver
	server *http.Server
	auth   *HTTPAuth
	log    zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:    cfg,
		svc:    svc,
		actors: NewActorResolver(cfg.Auth),
		auth:   NewHTTPAuth(cfg),
		log:    zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	srv.route(mux, "GET /healthz", srv.handleHealth)
	srv.route(mux, "GET /api/v1/salons", srv.handleListSalons)
	srv.route(mux, "GET /api/v1/salons/{salonID}", srv.handleGetSalon)
	srv.route(mux, "GET /api/v1/salons/{salonID}/slots", srv.handleListSlots)
	srv.route(mux, "PUT /api/v1/salons/{salonID}/schedule", srv.handleUpdateSchedule)
	srv.route(mux, "GET /api/v1/salons/{salonID}/closures", srv.handleListClosures)
	srv.route(mux, "PUT /api/v1/salons/{salonID}/closures", srv.handleReplaceClosures)
	srv.route(mux, "GET /api/v1/salons/{salonID}/appointments", srv.handleListAppointments)
	srv.route(mux, "GET /api/v1/salons/{salonID}/appointments/export", srv.handleExport)
	srv.route(mux, "POST /api/v1/salons/{salonID}/bookings", srv.handleSubmit)
	srv.route(mux, "GET /api/v1/appointments/{id}", srv.handleGetAppointment)
	srv.route(mux, "POST /api/v1/appointments/{id}/{action}", srv.handleTransition)
	srv.route(mux, "GET /api/v1/me/appointments", srv.handleMyAppointments)
	srv.route(mux, "GET /api/v1/notifications", srv.handleNotifications)

	handler := otelhttp.NewHandler(srv.loggingMiddleware(srv.auth.Wrap(mux)), "salonbook.http")

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		h(w, r)
	})
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{cfg: cfg, keys: newKeyring(cfg.Auth), limiter: newRateLimiter(cfg.RateLimit)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || !a.cfg.HTTP.Enabled || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			err := a.keys.check(
				strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)),
				strings.TrimSpace(r.Header.Get(a.keys.extraHeader)),
				requiredPermissionHTTP(r),
			)
			if err != nil {
				statusCode := http.StatusUnauthorized
				code := "unauthenticated"
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
					code = "forbidden"
				}
				writeError(w, statusCode, code, err.Error())
				return
			}
		}

		if key := a.clientKey(r); !a.limiter.allow(key) {
			w.Header().Set("Retry-After", strconv.Itoa(a.limiter.retryAfter(key)))
			writeError(w, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost:
		return permWriteBookings
	case r.Method == http.MethodPut:
		return permManageSalons
	case strings.HasPrefix(path, "/api/v1/appointments"),
		strings.HasPrefix(path, "/api/v1/me/"),
		strings.HasPrefix(path, "/api/v1/notifications"),
		strings.Contains(path, "/appointments"):
		return permReadAppointments
	case strings.HasPrefix(path, "/api/v1/salons"):
		return permReadAvailability
	}
	return ""
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		event := s.log.Info()
		if recorder.status >= http.StatusInternalServerError {
			event = s.log.Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message, "code": code})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
