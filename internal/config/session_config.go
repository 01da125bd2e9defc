package config

import "time"

const (
	sessionIdleTTLVar       = "MCP_SESSION_IDLE_TTL"
	sessionSweepIntervalVar = "MCP_SESSION_SWEEP_INTERVAL"
	tenantHeaderVar         = "MCP_TENANT_HEADER"
)

type SessionConfig interface {
	GetSessionIdleTTL() time.Duration
	GetSessionSweepInterval() time.Duration
	GetTenantHeader() string
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionIdleTTL is how long a session may go unused before eviction.
// Zero disables eviction.
func (Session) GetSessionIdleTTL() time.Duration {
	return GetEnvDuration(sessionIdleTTLVar, 30*time.Minute)
}

func (Session) GetSessionSweepInterval() time.Duration {
	return GetEnvDuration(sessionSweepIntervalVar, time.Minute)
}

func (Session) GetTenantHeader() string {
	return GetEnv(tenantHeaderVar, "X-Team-Id")
}
