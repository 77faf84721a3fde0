package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"coino/database"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Round configuration
	RoundDuration      time.Duration // How long a public round accepts bets
	ExpiryBuffer       time.Duration // Grace added to the expiry timer before settling
	ResultDisplayDelay time.Duration // Pause between settlement and the next round
	ReconcileInterval  time.Duration

	// Betting configuration
	MinBet              int64
	MaxBet              int64
	StartingBalance     int64
	MinRoomParticipants int

	// Settlement configuration
	SettlementBatchSize int
	MaxRetries          int
	HouseUserID         string

	// Accounts whose stake is never debited
	PrivilegedUserIDs []string

	// NATS configuration
	NATSEnabled bool
	NATSServers string // NATS server addresses (comma-separated)

	// Redis configuration (optional scope lock)
	RedisAddr     string
	RedisPassword string
	ScopeLockTTL  time.Duration

	// HTTP configuration
	HTTPAddr string

	// Discord configuration (optional result announcer)
	DiscordToken     string
	DiscordChannelID string

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int

	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsPrivileged reports whether the user's account is granted the privileged flag
func (c *Config) IsPrivileged(userID string) bool {
	for _, id := range c.PrivilegedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env is normal outside of local development
	_ = godotenv.Load()

	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// Rounds
		RoundDuration:      getDurationWithDefault("ROUND_DURATION", 60*time.Second),
		ExpiryBuffer:       getDurationWithDefault("EXPIRY_BUFFER", 500*time.Millisecond),
		ResultDisplayDelay: getDurationWithDefault("RESULT_DISPLAY_DELAY", 5*time.Second),
		ReconcileInterval:  getDurationWithDefault("RECONCILE_INTERVAL", 10*time.Second),

		// Betting
		MinBet:              getInt64WithDefault("MIN_BET", 1),
		MaxBet:              getInt64WithDefault("MAX_BET", 1000000),
		StartingBalance:     getInt64WithDefault("STARTING_BALANCE", 1000),
		MinRoomParticipants: int(getInt64WithDefault("MIN_ROOM_PARTICIPANTS", 2)),

		// Settlement
		SettlementBatchSize: int(getInt64WithDefault("SETTLEMENT_BATCH_SIZE", 400)),
		MaxRetries:          int(getInt64WithDefault("MAX_RETRIES", 5)),
		HouseUserID:         getEnvWithDefault("HOUSE_USER_ID", "house"),

		// NATS
		NATSEnabled: os.Getenv("NATS_ENABLED") == "true",
		NATSServers: getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),

		// Redis
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		ScopeLockTTL:  getDurationWithDefault("SCOPE_LOCK_TTL", 5*time.Second),

		// HTTP
		HTTPAddr: getEnvWithDefault("HTTP_ADDR", ":8080"),

		// Discord
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),

		// OpenTelemetry
		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "coino"),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317"),
		OTelExportIntervalMillis: int(getInt64WithDefault("OTEL_EXPORT_INTERVAL_MILLIS", 30000)),

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	if privileged := os.Getenv("PRIVILEGED_USER_IDS"); privileged != "" {
		for _, id := range strings.Split(privileged, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				config.PrivilegedUserIDs = append(config.PrivilegedUserIDs, id)
			}
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// Validate checks that required settings are present and consistent
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}
	if c.MinBet <= 0 {
		return fmt.Errorf("MIN_BET must be positive, got %d", c.MinBet)
	}
	if c.MaxBet < c.MinBet {
		return fmt.Errorf("MAX_BET (%d) must not be below MIN_BET (%d)", c.MaxBet, c.MinBet)
	}
	if c.RoundDuration <= 0 {
		return fmt.Errorf("ROUND_DURATION must be positive")
	}
	if c.SettlementBatchSize <= 0 {
		return fmt.Errorf("SETTLEMENT_BATCH_SIZE must be positive")
	}
	if c.MinRoomParticipants < 2 {
		return fmt.Errorf("MIN_ROOM_PARTICIPANTS must be at least 2")
	}
	if c.HouseUserID == "" {
		return fmt.Errorf("HOUSE_USER_ID is required")
	}
	return nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationWithDefault accepts Go duration strings ("30s") or plain milliseconds
func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if millis, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(millis) * time.Millisecond
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:         "test",
		RoundDuration:       60 * time.Second,
		ExpiryBuffer:        500 * time.Millisecond,
		ResultDisplayDelay:  5 * time.Second,
		ReconcileInterval:   10 * time.Second,
		MinBet:              1,
		MaxBet:              1000000,
		StartingBalance:     1000,
		MinRoomParticipants: 2,
		SettlementBatchSize: 400,
		MaxRetries:          3,
		HouseUserID:         "house",
		ScopeLockTTL:        5 * time.Second,
		HTTPAddr:            ":0",
		OTelExporterType:    "none",
		LogLevel:            "debug",
	}
}
