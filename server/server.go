package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/slack-mcp-gateway/install"
	"github.com/jrsteele09/slack-mcp-gateway/installations"
	"github.com/jrsteele09/slack-mcp-gateway/internal/config"
	"github.com/jrsteele09/slack-mcp-gateway/internal/metrics"
	"github.com/jrsteele09/slack-mcp-gateway/sessions"
	"github.com/jrsteele09/slack-mcp-gateway/slackoauth"
	"github.com/jrsteele09/slack-mcp-gateway/tenants"
)

// TenantResolver maps a team id to its request scoped credentials.
type TenantResolver interface {
	Resolve(ctx context.Context, teamID string) (*tenants.Context, error)
}

// Installer completes an OAuth installation from a callback code.
type Installer interface {
	Install(ctx context.Context, code string) (*installations.Installation, error)
}

// AuthorizeURLBuilder builds the Slack authorize URL for a state value.
type AuthorizeURLBuilder interface {
	AuthCodeURL(state string) string
}

// Services are the collaborators the HTTP layer composes. Registry, Resolver
// and Installer are required.
type Services struct {
	Registry  *sessions.Registry
	Resolver  TenantResolver
	Installer Installer
	Authorize AuthorizeURLBuilder
	State     *slackoauth.StateSigner
	Store     installations.Pinger
	Metrics   *metrics.Metrics
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	registry *sessions.Registry
	resolver TenantResolver
	install  Installer
	auth     AuthorizeURLBuilder
	state    *slackoauth.StateSigner
	store    installations.Pinger
	metrics  *metrics.Metrics
	limiter  *teamLimiter
}

var _ Installer = (*install.Service)(nil)
var _ TenantResolver = (*tenants.Resolver)(nil)

func New(config config.Config, services Services) (*Server, error) {
	if services.Registry == nil || services.Resolver == nil || services.Installer == nil {
		return nil, fmt.Errorf("[Server New] registry, resolver and installer are required")
	}
	if config.GetRequireOAuthState() && services.State == nil {
		return nil, fmt.Errorf("[Server New] oauth state is required but no state signer is configured")
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		registry: services.Registry,
		resolver: services.Resolver,
		install:  services.Installer,
		auth:     services.Authorize,
		state:    services.State,
		store:    services.Store,
		metrics:  services.Metrics,
		limiter:  newTeamLimiter(config.GetRateLimitRPS(), config.GetRateLimitBurst()),
	}

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

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

// ANSI colours for the DEV route listing.
const (
	colorGray  = "\033[90m"
	colorReset = "\033[0m"
)

var methodColors = map[string]string{
	http.MethodGet:     "\033[32m",
	http.MethodPost:    "\033[34m",
	http.MethodDelete:  "\033[31m",
	http.MethodOptions: "\033[35m",
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = colorGray
	}
	log.Info().Msgf("[%s] %s", color+paddedMethod+colorReset, path)
}
