// Package server provides configuration helpers that define runtime defaults,
// validation, and relay policy parameters for the roomrelay service.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
// Burst is the bucket capacity; RefillRate is how many tokens are restored per second.
type RateLimitConfig struct {
	Burst      int
	RefillRate float64
}

// Config holds the relay configuration settings, including security controls
// and the resource-reclamation policy applied by the background timers.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int
	MaxNameLength   int
	HistoryLimit    int
	MaxPendingBytes int64
	RateLimit       RateLimitConfig

	DissolveCooldown  time.Duration
	RoomTTL           time.Duration
	HeartbeatInterval time.Duration
	ReapInterval      time.Duration
}

func defaultConfig() Config {
	return Config{
		Port:            ":8080",
		AllowedOrigins:  nil,
		MaxMessageSize:  16 * 1024,
		MaxNameLength:   32,
		HistoryLimit:    100,
		MaxPendingBytes: 1024 * 1024,
		RateLimit: RateLimitConfig{
			Burst:      10,
			RefillRate: 5,
		},
		DissolveCooldown:  12 * time.Hour,
		RoomTTL:           24 * time.Hour,
		HeartbeatInterval: 30 * time.Second,
		ReapInterval:      time.Hour,
	}
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.MaxNameLength <= 0 {
		cfg.MaxNameLength = def.MaxNameLength
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.MaxPendingBytes <= 0 {
		cfg.MaxPendingBytes = def.MaxPendingBytes
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillRate <= 0 {
		cfg.RateLimit.RefillRate = def.RateLimit.RefillRate
	}
	if cfg.DissolveCooldown <= 0 {
		cfg.DissolveCooldown = def.DissolveCooldown
	}
	if cfg.RoomTTL <= 0 {
		cfg.RoomTTL = def.RoomTTL
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = def.ReapInterval
	}

	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseIntValue(maxSize, cfg.MaxMessageSize)
	}

	if maxName := os.Getenv("MAX_NAME_LENGTH"); maxName != "" {
		cfg.MaxNameLength = parseIntValue(maxName, cfg.MaxNameLength)
	}

	if limit := os.Getenv("HISTORY_LIMIT"); limit != "" {
		cfg.HistoryLimit = parseIntValue(limit, cfg.HistoryLimit)
	}

	if pending := os.Getenv("MAX_PENDING_BYTES"); pending != "" {
		cfg.MaxPendingBytes = parseInt64Value(pending, cfg.MaxPendingBytes)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if rate := os.Getenv("RATE_LIMIT_REFILL_RATE"); rate != "" {
		cfg.RateLimit.RefillRate = parseFloatValue(rate, cfg.RateLimit.RefillRate)
	}

	if cooldown := os.Getenv("DISSOLVE_COOLDOWN"); cooldown != "" {
		cfg.DissolveCooldown = parseDurationValue(cooldown, cfg.DissolveCooldown)
	}

	if ttl := os.Getenv("ROOM_TTL"); ttl != "" {
		cfg.RoomTTL = parseDurationValue(ttl, cfg.RoomTTL)
	}

	if interval := os.Getenv("HEARTBEAT_INTERVAL"); interval != "" {
		cfg.HeartbeatInterval = parseDurationValue(interval, cfg.HeartbeatInterval)
	}

	if interval := os.Getenv("REAP_INTERVAL"); interval != "" {
		cfg.ReapInterval = parseDurationValue(interval, cfg.ReapInterval)
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseFloatValue(value string, defaultValue float64) float64 {
	if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseDurationValue(value string, defaultValue time.Duration) time.Duration {
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
