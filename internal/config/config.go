package config

type Config interface {
	EnvConfig
	CorsConfig
	SlackConfig
	StoreConfig
	SessionConfig
	RateLimitConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
	GetExposedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Slack
	Store
	Session
	RateLimit
}

func New() Config {
	return mainConfig{}
}
