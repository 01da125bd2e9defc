package config

const (
	rateLimitRPSVar   = "RATE_LIMIT_RPS"
	rateLimitBurstVar = "RATE_LIMIT_BURST"
)

type RateLimitConfig interface {
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

type RateLimit struct{}

var _ RateLimitConfig = RateLimit{}

// GetRateLimitRPS is the sustained per-team request rate on /mcp. Zero
// disables limiting.
func (RateLimit) GetRateLimitRPS() float64 {
	return GetEnvFloat(rateLimitRPSVar, 20)
}

func (RateLimit) GetRateLimitBurst() int {
	return GetEnvInt(rateLimitBurstVar, 40)
}
