package config

import "time"

const (
	slackClientIDVar      = "SLACK_CLIENT_ID"
	slackClientSecretVar  = "SLACK_CLIENT_SECRET"
	slackSigningSecretVar = "SLACK_SIGNING_SECRET"
	slackRedirectURIVar   = "SLACK_REDIRECT_URI"
	slackScopesVar        = "SLACK_SCOPES"
	slackUserScopesVar    = "SLACK_USER_SCOPES"
	slackAPIURLVar        = "SLACK_API_URL"
	slackRequireStateVar  = "SLACK_OAUTH_REQUIRE_STATE"
	slackStateSecretVar   = "SLACK_STATE_SECRET"
	slackStateTTLVar      = "SLACK_STATE_TTL"
)

var defaultBotScopes = []string{
	"channels:history", "channels:read", "chat:write", "files:read",
	"groups:history", "groups:read", "reactions:write", "users:read",
}

var defaultUserScopes = []string{
	"channels:history", "channels:read", "files:read", "groups:history",
	"groups:read", "im:history", "mpim:history", "search:read", "users:read",
}

type SlackConfig interface {
	GetSlackClientID() string
	GetSlackClientSecret() string
	GetSlackSigningSecret() string
	GetSlackRedirectURI() string
	GetSlackScopes() []string
	GetSlackUserScopes() []string
	GetSlackAPIURL() string
	GetRequireOAuthState() bool
	GetStateSecret() string
	GetStateTTL() time.Duration
}

type Slack struct{}

var _ SlackConfig = Slack{}

func (Slack) GetSlackClientID() string {
	return GetEnv(slackClientIDVar, "")
}

func (Slack) GetSlackClientSecret() string {
	return GetEnv(slackClientSecretVar, "")
}

func (Slack) GetSlackSigningSecret() string {
	return GetEnv(slackSigningSecretVar, "")
}

// GetSlackRedirectURI defaults to the callback route under BASE_URL.
func (Slack) GetSlackRedirectURI() string {
	return GetEnv(slackRedirectURIVar, EnvVars{}.GetBaseURL()+"/oauth/callback")
}

func (Slack) GetSlackScopes() []string {
	return GetEnvList(slackScopesVar, defaultBotScopes)
}

func (Slack) GetSlackUserScopes() []string {
	return GetEnvList(slackUserScopesVar, defaultUserScopes)
}

// GetSlackAPIURL is empty for the public Slack API.
func (Slack) GetSlackAPIURL() string {
	return GetEnv(slackAPIURLVar, "")
}

func (Slack) GetRequireOAuthState() bool {
	return GetEnvBool(slackRequireStateVar, false)
}

// GetStateSecret falls back to the client secret so state signing works
// without extra setup.
func (s Slack) GetStateSecret() string {
	return GetEnv(slackStateSecretVar, s.GetSlackClientSecret())
}

func (Slack) GetStateTTL() time.Duration {
	return GetEnvDuration(slackStateTTLVar, 10*time.Minute)
}
