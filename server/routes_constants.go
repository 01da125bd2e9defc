package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// MCP endpoint (POST requests, GET notification stream, DELETE session)
	RouteMCP = "/mcp"

	// Slack OAuth install flow
	RouteSlackInstall       = "/slack/install"
	RouteOAuthCallback      = "/oauth/callback"
	RouteSlackOAuthRedirect = "/slack/oauth_redirect"

	// Slack platform callbacks
	RouteSlackEvents   = "/slack/events"
	RouteSlackCommands = "/slack/commands"

	// Unprefixed paths for Slack apps configured against the root router
	RouteOAuthRedirect = "/oauth_redirect"
	RouteEvents        = "/events"
	RouteCommands      = "/commands"

	// Operational
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

// HeaderSessionID carries the MCP session id in both directions.
const HeaderSessionID = "Mcp-Session-Id"
