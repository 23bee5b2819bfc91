package config

import (
	"time"
)

// RateLimitConfig tunes the Redis token bucket applied to the
// authentication route group. This is an HTTP-level shield against
// credential stuffing; the per-device reading interval limit is a
// separate, store-backed mechanism.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

// LoadRateLimitConfig reads limiter settings from the environment and
// clamps them to sane minimums.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("AUTH_RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("AUTH_RATE_LIMIT_CAPACITY", 30),
		RefillTokens:   envInt("AUTH_RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("AUTH_RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("AUTH_RATE_LIMIT_TTL", 10*time.Minute),
		Prefix:         envStr("AUTH_RATE_LIMIT_PREFIX", "rl"),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if min := 5 * cfg.RefillInterval; cfg.TTL < min {
		cfg.TTL = min
	}
	return cfg
}
