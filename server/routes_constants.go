package server

// Route path constants
const (
	RouteCreateSession   = "/api/session"
	RouteSessionJWT      = "/api/session/{sessionId}/jwt"
	RouteRefreshSession  = "/api/session/refresh"
	RouteActivateSession = "/api/session/{sessionId}/activate"
	RouteLogout          = "/api/session/logout"

	RouteOTCStart  = "/api/session/otc/start"
	RouteOTCVerify = "/api/session/otc/verify"

	RouteAPIPreflight = "/api/"
	RouteHealth       = "/health"
	RouteMetrics      = "/metrics"
)

const (
	sessionIDPathValue     = "sessionId"
	activationSecretHeader = "X-Activation-Secret"
)
