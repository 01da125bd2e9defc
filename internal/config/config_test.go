package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := New()
	require.Equal(t, ":3000", cfg.GetPort())
	require.Equal(t, "X-Team-Id", cfg.GetTenantHeader())
	require.Equal(t, StoreBackendSQLite, cfg.GetStoreBackend())
	require.Equal(t, 30*time.Minute, cfg.GetSessionIdleTTL())
	require.False(t, cfg.GetRequireOAuthState())
	require.Contains(t, cfg.GetSlackScopes(), "chat:write")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", ":8081")
	t.Setenv("BASE_URL", "https://mcp.example.com/")
	t.Setenv("SLACK_SCOPES", "chat:write, ,users:read")
	t.Setenv("SLACK_OAUTH_REQUIRE_STATE", "true")
	t.Setenv("MCP_SESSION_IDLE_TTL", "5m")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")

	cfg := New()
	require.Equal(t, ":8081", cfg.GetPort())
	require.Equal(t, "https://mcp.example.com/oauth/callback", cfg.GetSlackRedirectURI())
	require.Equal(t, []string{"chat:write", "users:read"}, cfg.GetSlackScopes())
	require.True(t, cfg.GetRequireOAuthState())
	require.Equal(t, 5*time.Minute, cfg.GetSessionIdleTTL())
	require.Equal(t, 40, cfg.GetRateLimitBurst())
}

func TestStateSecretFallsBackToClientSecret(t *testing.T) {
	t.Setenv("SLACK_CLIENT_SECRET", "client-secret")
	require.Equal(t, "client-secret", New().GetStateSecret())

	t.Setenv("SLACK_STATE_SECRET", "state-secret")
	require.Equal(t, "state-secret", New().GetStateSecret())
}

func TestAllowedOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://b.example.com,https://a.example.com")
	origins := New().GetAllowedOrigins()
	require.True(t, origins.IsAllowedOrigin("https://a.example.com"))
	require.False(t, origins.IsAllowedOrigin("https://evil.example.com"))
	require.Equal(t, "https://a.example.com, https://b.example.com", origins.String())

	t.Setenv("CORS_ALLOWED_ORIGINS", "*")
	require.True(t, New().GetAllowedOrigins().IsAllowedOrigin("https://anything.example.com"))
}
