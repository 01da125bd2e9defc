package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	// MCP
	s.RegisterRouteHandler("POST "+RouteMCP, ChainMiddleware(s.MCPPostHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteMCP, ChainMiddleware(s.MCPStreamHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteMCP, ChainMiddleware(s.MCPDeleteHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteMCP, ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {}, s.APIMiddleware()...))

	// Slack OAuth
	s.RegisterRouteHandler("GET "+RouteSlackInstall, ChainMiddleware(s.SlackInstallHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteOAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteOAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteSlackOAuthRedirect, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteOAuthRedirect, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))

	// Slack platform
	s.RegisterRouteHandler("POST "+RouteSlackEvents, ChainMiddleware(s.SlackEventsHandler(), s.SlackMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSlackCommands, ChainMiddleware(s.SlackCommandsHandler(), s.SlackMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteEvents, ChainMiddleware(s.SlackEventsHandler(), s.SlackMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCommands, ChainMiddleware(s.SlackCommandsHandler(), s.SlackMiddleware()...))

	// Operational
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	if s.metrics != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
	}
}
