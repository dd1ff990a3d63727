package server

import "github.com/jrsteele09/portal-session-server/internal/metrics"

func (s *Server) initRoutes() {
	// Session API
	s.RegisterRouteHandler("POST "+RouteCreateSession, ChainMiddleware(s.CreateSessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSessionJWT, ChainMiddleware(s.SessionJWTHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefreshSession, ChainMiddleware(s.RefreshSessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteActivateSession, ChainMiddleware(s.ActivateSessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// One-time codes
	if s.otc != nil {
		s.RegisterRouteHandler("POST "+RouteOTCStart, ChainMiddleware(s.OTCStartHandler(), s.APIMiddleware(s.OTCRateLimitMiddleware)...))
		s.RegisterRouteHandler("POST "+RouteOTCVerify, ChainMiddleware(s.OTCVerifyHandler(), s.APIMiddleware(s.OTCRateLimitMiddleware)...))
	}

	s.RegisterRouteHandler("OPTIONS "+RouteAPIPreflight, ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))

	// System
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
}
