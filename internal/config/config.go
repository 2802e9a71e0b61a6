package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Tick modes
const (
	TickModeServer = "server"
	TickModeClient = "client"
)

// Store backends
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendCassandra = "cassandra"
)

// Config holds all configuration for the application
type Config struct {
	Host               string
	Port               string
	TickMode           string
	TickInterval       time.Duration
	SessionStore       string
	CompletionStore    string
	SessionTTL         time.Duration
	PresetsFile        string
	PointsPerStep      int
	LogLevel           string
	RateLimitPerMinute int
	Redis              RedisConfig
	Cassandra          CassandraConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CassandraConfig holds Cassandra-specific configuration
type CassandraConfig struct {
	Hosts       []string
	Keyspace    string
	Username    string
	Password    string
	Consistency string
	Timeout     time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	tickMode := getEnv("TICK_MODE", TickModeServer)
	if tickMode != TickModeServer && tickMode != TickModeClient {
		return nil, fmt.Errorf("invalid TICK_MODE value %q: want %s or %s", tickMode, TickModeServer, TickModeClient)
	}

	tickMs, err := getInt("TICK_INTERVAL_MS", 1000)
	if err != nil {
		return nil, err
	}
	if tickMs <= 0 {
		return nil, fmt.Errorf("invalid TICK_INTERVAL_MS value: must be greater than 0")
	}

	sessionStore := getEnv("SESSION_STORE", BackendMemory)
	if sessionStore != BackendMemory && sessionStore != BackendRedis {
		return nil, fmt.Errorf("invalid SESSION_STORE value %q", sessionStore)
	}
	completionStore := getEnv("COMPLETION_STORE", BackendMemory)
	if completionStore != BackendMemory && completionStore != BackendCassandra {
		return nil, fmt.Errorf("invalid COMPLETION_STORE value %q", completionStore)
	}

	// Session TTL (0 = no expiration)
	sessionTTL, err := getInt("SESSION_TTL_SECONDS", 86400)
	if err != nil {
		return nil, err
	}

	pointsPerStep, err := getInt("POINTS_PER_STEP", 10)
	if err != nil {
		return nil, err
	}
	if pointsPerStep < 0 {
		return nil, fmt.Errorf("invalid POINTS_PER_STEP value: must not be negative")
	}

	rateLimit, err := getInt("RATE_LIMIT_PER_MINUTE", 600)
	if err != nil {
		return nil, err
	}

	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	cassandraTimeout, err := getInt("CASSANDRA_TIMEOUT_SECONDS", 5)
	if err != nil {
		return nil, err
	}

	return &Config{
		Host:               getEnv("HOST", "0.0.0.0"),
		Port:               getEnv("PORT", "8080"),
		TickMode:           tickMode,
		TickInterval:       time.Duration(tickMs) * time.Millisecond,
		SessionStore:       sessionStore,
		CompletionStore:    completionStore,
		SessionTTL:         time.Duration(sessionTTL) * time.Second,
		PresetsFile:        getEnv("PRESETS_FILE", ""),
		PointsPerStep:      pointsPerStep,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RateLimitPerMinute: rateLimit,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Cassandra: CassandraConfig{
			Hosts:       parseHosts(getEnv("CASSANDRA_HOSTS", "localhost:9042")),
			Keyspace:    getEnv("CASSANDRA_KEYSPACE", "fitfly"),
			Username:    getEnv("CASSANDRA_USERNAME", ""),
			Password:    getEnv("CASSANDRA_PASSWORD", ""),
			Consistency: getEnv("CASSANDRA_CONSISTENCY", "QUORUM"),
			Timeout:     time.Duration(cassandraTimeout) * time.Second,
		},
	}, nil
}

// Address returns the full address (host:port)
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// ServerTicks reports whether the service drives session clocks itself.
func (c *Config) ServerTicks() bool {
	return c.TickMode == TickModeServer
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, strconv.Itoa(defaultValue))
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return value, nil
}

// parseHosts parses a comma-separated list of hosts
func parseHosts(hostsStr string) []string {
	parts := strings.Split(hostsStr, ",")
	hosts := make([]string, 0, len(parts))
	for _, part := range parts {
		host := strings.TrimSpace(part)
		if host != "" {
			hosts = append(hosts, host)
		}
	}
	if len(hosts) == 0 {
		return []string{"localhost:9042"}
	}
	return hosts
}
