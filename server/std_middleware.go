package server

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/jrsteele09/portal-session-server/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

func (s *Server) APIMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chainedMiddleWare := []func(http.HandlerFunc) http.HandlerFunc{
		s.RequestIDMiddleware,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.CorsMiddleware,
		s.SecurityHeadersMiddleware,
	}
	return append(chainedMiddleWare, mw...)
}

// RequestIDMiddleware tags the request with an id, reusing the caller's
// X-Request-ID when present, and attaches a logger carrying it to the context.
func (s *Server) RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		logger := log.With().Str("request_id", requestID).Logger()
		next(w, r.WithContext(logger.WithContext(r.Context())))
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

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		event := zerolog.Ctx(r.Context()).Debug()
		if rec.status >= http.StatusInternalServerError {
			event = zerolog.Ctx(r.Context()).Warn()
		}
		event.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("Request served")
	}
}

func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				zerolog.Ctx(r.Context()).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("Recovered from panic")
				writeJSONError(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// SecurityHeadersMiddleware marks API responses as uncacheable and not sniffable.
func (s *Server) SecurityHeadersMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next(w, r)
	}
}

func (s *Server) CorsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// No Origin header = same-origin request, no CORS headers needed
		if origin == "" {
			next(w, r)
			return
		}

		allowedOrigins := s.config.GetAllowedOrigins()
		isAllowed := allowedOrigins.IsAllowedOrigin(origin)
		isWildcard := allowedOrigins.IsAllowedOrigin("*")

		if isAllowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		} else if isWildcard {
			// Credentials are never allowed with a wildcard origin
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == http.MethodOptions && (isAllowed || isWildcard) {
			w.Header().Set("Access-Control-Allow-Methods", s.config.GetAllowedMethods())
			w.Header().Set("Access-Control-Allow-Headers", s.config.GetAllowedHeaders())
			w.Header().Set("Access-Control-Max-Age", "86400")
		}
		next(w, r)
	}
}

// RateLimit limits requests per client IP per minute. requestsPerMinute <= 0
// disables limiting.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			zerolog.Ctx(r.Context()).Warn().
				Str("ip", r.RemoteAddr).
				Str("path", r.URL.Path).
				Msg("Rate limit exceeded")
			writeJSONError(w, "RATE_LIMITED", "rate limit exceeded, please try again later", http.StatusTooManyRequests)
		}),
	)
}

// OTCRateLimitMiddleware applies the shared OTC limiter, so start and verify
// draw from the same budget.
func (s *Server) OTCRateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return s.otcLimiter(next).ServeHTTP
}
