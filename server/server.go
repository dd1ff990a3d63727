// Package server exposes the session orchestrator over HTTP.
package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/portal-session-server/auth"
	"github.com/jrsteele09/portal-session-server/internal/config"
	"github.com/jrsteele09/portal-session-server/otc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env      string // run mode, "DEV" enables route listing
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	sessions *auth.SessionService
	otc      *otc.Service // nil disables the OTC routes
	cookies  auth.CookiePolicy

	otcLimiter func(http.Handler) http.Handler
}

// New builds the HTTP server. otcService may be nil.
func New(cfg config.Config, sessionService *auth.SessionService, otcService *otc.Service) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if sessionService == nil {
		return nil, errors.New("[Server New] session service is required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		sessions: sessionService,
		otc:      otcService,
		cookies:  auth.NewCookiePolicy(cfg.IsProduction()),
	}
	s.cookies.SessionMaxAge = sessionService.SessionTTL()
	s.cookies.TokenMaxAge = sessionService.TokenTTL()
	s.otcLimiter = RateLimit(cfg.GetOTCRateLimit())

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered route patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, ok := strings.Cut(route, " ")
		if !ok {
			method, path = "", route
		}
		log.Info().Msgf("[%s] %s", colourMethod(method), path)
	}
}
