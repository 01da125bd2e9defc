package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/slack-mcp-gateway/install"
	installationrepofakes "github.com/jrsteele09/slack-mcp-gateway/installations/repofakes"
	"github.com/jrsteele09/slack-mcp-gateway/installations/repotest"
	"github.com/jrsteele09/slack-mcp-gateway/internal/config"
	"github.com/jrsteele09/slack-mcp-gateway/internal/metrics"
	"github.com/jrsteele09/slack-mcp-gateway/sessions"
	"github.com/jrsteele09/slack-mcp-gateway/slackoauth"
	"github.com/jrsteele09/slack-mcp-gateway/slackoauth/exchangefakes"
	"github.com/jrsteele09/slack-mcp-gateway/tenants"
	"github.com/jrsteele09/slack-mcp-gateway/tools"
)

const (
	testTeam          = "T1"
	testSigningSecret = "signing-secret"
	initializeBody    = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`
	initializedBody   = `{"jsonrpc":"2.0","method":"notifications/initialized"}`
	currentUserCall   = `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"slack_get_current_user","arguments":{}}}`
	listToolsBody     = `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`
	badSessionBody    = `{"jsonrpc":"2.0","error":{"code":-32000,"message":"Bad Request: No valid session ID provided"},"id":null}`
)

// testConfig overrides the env-backed configuration with fixed values.
type testConfig struct {
	config.Config
	requireState bool
	rps          float64
	burst        int
	origins      config.AllowedOrigins
}

func (testConfig) GetEnv() string { return "TEST" }
func (testConfig) GetAppName() string { return "Slack MCP Gateway" }
func (testConfig) GetTenantHeader() string { return "X-Team-Id" }
func (testConfig) GetSlackSigningSecret() string { return testSigningSecret }
func (c testConfig) GetRequireOAuthState() bool { return c.requireState }
func (c testConfig) GetRateLimitRPS() float64 { return c.rps }
func (c testConfig) GetRateLimitBurst() int { return c.burst }
func (c testConfig) GetAllowedOrigins() config.AllowedOrigins {
	if c.origins == nil {
		return config.AllowedOrigins{}
	}
	return c.origins
}

// slackAPI answers auth.test and records the token of every call.
type slackAPI struct {
	lock   sync.Mutex
	tokens []string
}

func (a *slackAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.Form.Get("token")
	}
	a.lock.Lock()
	a.tokens = append(a.tokens, token)
	a.lock.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"url":"https://t1.slack.com/","team":"Team T1","user":"alice","team_id":"T1","user_id":"U123"}`))
}

func (a *slackAPI) lastToken() string {
	a.lock.Lock()
	defer a.lock.Unlock()
	if len(a.tokens) == 0 {
		return ""
	}
	return a.tokens[len(a.tokens)-1]
}

type harness struct {
	t         *testing.T
	server    *Server
	repo      *installationrepofakes.FakeInstallationRepo
	exchanger *exchangefakes.FakeExchanger
	registry  *sessions.Registry
	mcp       *mcpsrv.MCPServer
	slack     *slackAPI
	metrics   *metrics.Metrics
	state     *slackoauth.StateSigner
}

func newHarness(t *testing.T, configure ...func(*testConfig, *Services)) *harness {
	t.Helper()

	api := &slackAPI{}
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	repo := installationrepofakes.NewFakeInstallationRepo()
	require.NoError(t, repo.Save(context.Background(), repotest.NewInstallation(testTeam, 0)))

	m := metrics.New()
	mcpServer := tools.NewServer()
	registry := sessions.NewRegistry(mcpServer, sessions.WithMetrics(m))
	exchanger := exchangefakes.NewFakeExchanger(time.Now)
	state, err := slackoauth.NewStateSigner("state-secret", time.Minute, time.Now)
	require.NoError(t, err)

	cfg := testConfig{Config: config.New()}
	services := Services{
		Registry:  registry,
		Resolver:  tenants.NewResolver(repo, tenants.WithClientFactory(tenants.NewClientFactory(apiSrv.URL))),
		Installer: install.NewService(exchanger, repo, install.WithMetrics(m)),
		Authorize: slackoauth.NewSlackExchanger(slackoauth.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURI:  "https://gateway.example/oauth/callback",
			BotScopes:    []string{"chat:write", "users:read"},
		}),
		State:   state,
		Store:   repo,
		Metrics: m,
	}
	for _, fn := range configure {
		fn(&cfg, &services)
	}

	s, err := New(cfg, services)
	require.NoError(t, err)
	t.Cleanup(func() { registry.CloseAll(context.Background()) })

	return &harness{
		t:         t,
		server:    s,
		repo:      repo,
		exchanger: exchanger,
		registry:  registry,
		mcp:       mcpServer,
		slack:     api,
		metrics:   m,
		state:     state,
	}
}

// do sends a request to /mcp as team with an optional session id.
func (h *harness) do(method, team, sessionID, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, RouteMCP, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if team != "" {
		req.Header.Set("X-Team-Id", team)
	}
	if sessionID != "" {
		req.Header.Set(HeaderSessionID, sessionID)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

// connect runs the initialize handshake and returns the session id.
func (h *harness) connect() string {
	h.t.Helper()
	rec := h.do(http.MethodPost, testTeam, "", initializeBody)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	id := rec.Header().Get(HeaderSessionID)
	require.NotEmpty(h.t, id)
	return id
}

func decode(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) float64 {
	t.Helper()
	body := decode(t, rec.Body)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected a JSON-RPC error body")
	return errObj["code"].(float64)
}

func TestNewRequiresServices(t *testing.T) {
	_, err := New(testConfig{Config: config.New()}, Services{})
	require.Error(t, err)
}

func TestNewRequiresStateSignerWhenStateIsEnforced(t *testing.T) {
	h := newHarness(t)
	_, err := New(testConfig{Config: config.New(), requireState: true}, Services{
		Registry:  h.registry,
		Resolver:  h.server.resolver,
		Installer: h.server.install,
	})
	require.Error(t, err)
}
