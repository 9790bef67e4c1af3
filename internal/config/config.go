package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Workflow     WorkflowConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	ConnectRetries int
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	TokenTTLMinutes int
}

// NotificationConfig selects where notification requests are handed off.
type NotificationConfig struct {
	// Sink is "log" or "redis".
	Sink    string
	Channel string

	// QueueSize bounds requests waiting for delivery. A full queue rejects.
	QueueSize       int
	MaxRetries      int
	RetryBaseMillis int
}

// WorkflowConfig tunes the workflow engine.
type WorkflowConfig struct {
	LockTTLMillis             int
	LockWaitMillis            int
	RetryMax                  int
	RetryBaseMillis           int
	CanceledCountsTowardTotal bool
	StatsCacheTTLSeconds      int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-workflow"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
			ConnectRetries: getEnvAsInt("POSTGRES_CONNECT_RETRIES", 5),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:          getEnv("AUTH_ISSUER", "helpdesk-workflow"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			Sink:            getEnv("NOTIFY_SINK", "log"),
			Channel:         getEnv("NOTIFY_CHANNEL", "helpdesk:notifications"),
			QueueSize:       getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			MaxRetries:      getEnvAsInt("NOTIFY_MAX_RETRIES", 3),
			RetryBaseMillis: getEnvAsInt("NOTIFY_RETRY_BASE_MS", 100),
		},
		Workflow: WorkflowConfig{
			LockTTLMillis:             getEnvAsInt("WORKFLOW_LOCK_TTL_MS", 10000),
			LockWaitMillis:            getEnvAsInt("WORKFLOW_LOCK_WAIT_MS", 2000),
			RetryMax:                  getEnvAsInt("WORKFLOW_RETRY_MAX", 2),
			RetryBaseMillis:           getEnvAsInt("WORKFLOW_RETRY_BASE_MS", 50),
			CanceledCountsTowardTotal: getEnvAsBool("WORKFLOW_CANCELED_COUNTS_TOWARD_TOTAL", false),
			StatsCacheTTLSeconds:      getEnvAsInt("WORKFLOW_STATS_CACHE_TTL_SECONDS", 300),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LockTTL is how long a per-ticket lock survives a crashed holder.
func (w WorkflowConfig) LockTTL() time.Duration {
	return millis(w.LockTTLMillis, 10*time.Second)
}

// LockWait bounds how long a caller waits for a busy ticket.
func (w WorkflowConfig) LockWait() time.Duration {
	return millis(w.LockWaitMillis, 2*time.Second)
}

// RetryBase is the first backoff step for stale version retries.
func (w WorkflowConfig) RetryBase() time.Duration {
	return millis(w.RetryBaseMillis, 50*time.Millisecond)
}

// RetryBase is the first backoff step between delivery attempts.
func (n NotificationConfig) RetryBase() time.Duration {
	return millis(n.RetryBaseMillis, 100*time.Millisecond)
}

// StatsCacheTTL returns how long projected stats rows are cached.
func (w WorkflowConfig) StatsCacheTTL() time.Duration {
	if w.StatsCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(w.StatsCacheTTLSeconds) * time.Second
}

func millis(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
