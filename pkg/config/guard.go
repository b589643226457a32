package config

import (
	"time"
)

// JWTConfig holds session token verification configuration
type JWTConfig struct {
	Secret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}

// NewJWTConfigFromEnv creates a JWTConfig from environment variables
func NewJWTConfigFromEnv() JWTConfig {
	return JWTConfig{
		Secret: GetEnvOrDefault("JWT_SECRET", "very-secure-jwt-secret"),
	}
}

// GuardConfig holds device check tuning for the authorization engine
type GuardConfig struct {
	CallTimeout   time.Duration `env:"GUARD_CALL_TIMEOUT" env-default:"10s"`
	RetryAttempts uint64        `env:"GUARD_RETRY_ATTEMPTS" env-default:"3"`
	RetryDelay    time.Duration `env:"GUARD_RETRY_DELAY" env-default:"500ms"`
}

// NewGuardConfigFromEnv creates a GuardConfig from environment variables
func NewGuardConfigFromEnv() GuardConfig {
	return GuardConfig{
		CallTimeout:   GetEnvDuration("GUARD_CALL_TIMEOUT", 10*time.Second),
		RetryAttempts: uint64(GetEnvInt("GUARD_RETRY_ATTEMPTS", 3)),
		RetryDelay:    GetEnvDuration("GUARD_RETRY_DELAY", 500*time.Millisecond),
	}
}

// RateLimitConfig holds login attempt throttling configuration
type RateLimitConfig struct {
	Enabled   bool          `env:"LOGIN_RATE_LIMIT_ENABLED" env-default:"true"`
	Burst     int           `env:"LOGIN_RATE_LIMIT_BURST" env-default:"10"`
	PerSecond float64       `env:"LOGIN_RATE_LIMIT_PER_SECOND" env-default:"0.2"`
	BucketTTL time.Duration `env:"LOGIN_RATE_LIMIT_TTL" env-default:"1h"`
}
