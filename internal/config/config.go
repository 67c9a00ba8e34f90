package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for both the dashboard and the gateway.
type Config struct {
	App       AppConfig
	Dashboard DashboardConfig
	Helpdesk  HelpdeskConfig
	AI        AIConfig
	Slack     SlackConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Polling   PollingConfig
}

// AppConfig controls gateway server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// DashboardConfig controls the dashboard server.
type DashboardConfig struct {
	Host                string
	Port                string
	APIBaseURL          string
	SessionTTLMinutes   int
	PerPage             int
	GroupsFile          string
	SecureCookies       bool
	ReapIntervalSeconds int
}

// HelpdeskConfig holds upstream Freshservice credentials.
type HelpdeskConfig struct {
	APIKey         string
	Domain         string
	BaseURL        string
	TimeoutSeconds int
}

// AIConfig configures the analysis model endpoint.
type AIConfig struct {
	APIURL    string
	APIKey    string
	Model     string
	MaxTokens int
}

// SlackConfig holds the incoming webhook used for analysis notifications.
type SlackConfig struct {
	WebhookURL string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig controls the gateway ticket cache.
type CacheConfig struct {
	TTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token and webhook parameters.
type AuthConfig struct {
	JWTSecret             string
	Required              bool
	AccessTokenTTLMinutes int
	WebhookSecretHash     string
}

// PollingConfig drives automatic analysis of new tickets.
type PollingConfig struct {
	Enabled         bool
	GroupIDs        []int64
	IntervalSeconds int
	Workers         int
}

// Load reads configuration from environment variables, applying defaults where possible.
// Any files given are loaded as dotenv files first; with none, ".env" is tried.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	groupIDs, err := getEnvAsInt64List("AUTO_ANALYZE_GROUP_IDS")
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_ANALYZE_GROUP_IDS: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	appPort := getEnv("APP_PORT", "8000")
	domain := getEnv("FRESHSERVICE_DOMAIN", "alliance")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-gateway"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  appPort,
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Dashboard: DashboardConfig{
			Host:                getEnv("DASHBOARD_HOST", "0.0.0.0"),
			Port:                getEnv("DASHBOARD_PORT", "8080"),
			APIBaseURL:          getEnv("API_BASE_URL", "http://localhost:"+appPort+"/api"),
			SessionTTLMinutes:   getEnvAsInt("DASHBOARD_SESSION_TTL_MINUTES", 60),
			PerPage:             getEnvAsInt("DASHBOARD_PER_PAGE", 30),
			GroupsFile:          os.Getenv("GROUPS_FILE"),
			SecureCookies:       getEnvAsBool("DASHBOARD_SECURE_COOKIES", false),
			ReapIntervalSeconds: getEnvAsInt("DASHBOARD_REAP_INTERVAL_SECONDS", 60),
		},
		Helpdesk: HelpdeskConfig{
			APIKey:         os.Getenv("FRESHSERVICE_API_KEY"),
			Domain:         domain,
			BaseURL:        getEnv("FRESHSERVICE_BASE_URL", fmt.Sprintf("https://%s.freshservice.com/api/v2", domain)),
			TimeoutSeconds: getEnvAsInt("FRESHSERVICE_TIMEOUT_SECONDS", 10),
		},
		AI: AIConfig{
			APIURL:    getEnv("AI_API_URL", "https://api.anthropic.com"),
			APIKey:    os.Getenv("AI_API_KEY"),
			Model:     getEnv("AI_MODEL", "claude-3-7-sonnet-20250219"),
			MaxTokens: getEnvAsInt("AI_MAX_TOKENS", 1000),
		},
		Slack: SlackConfig{
			WebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			TTLSeconds: getEnvAsInt("TICKET_CACHE_TTL_SECONDS", 60),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             os.Getenv("AUTH_JWT_SECRET"),
			Required:              getEnvAsBool("AUTH_REQUIRED", false),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			WebhookSecretHash:     os.Getenv("WEBHOOK_SECRET_HASH"),
		},
		Polling: PollingConfig{
			Enabled:         getEnvAsBool("AUTO_ANALYZE_ENABLED", false),
			GroupIDs:        groupIDs,
			IntervalSeconds: getEnvAsInt("POLLING_INTERVAL_SECONDS", 300),
			Workers:         getEnvAsInt("ANALYSIS_WORKERS", 2),
		},
	}

	if cfg.Auth.Required && cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_REQUIRED is set but AUTH_JWT_SECRET is empty")
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

// Addr returns the dashboard bind address.
func (d DashboardConfig) Addr() string {
	return fmt.Sprintf("%s:%s", d.Host, d.Port)
}

// SessionTTL returns how long an idle dashboard session survives.
func (d DashboardConfig) SessionTTL() time.Duration {
	if d.SessionTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(d.SessionTTLMinutes) * time.Minute
}

// ReapInterval returns how often expired sessions are collected.
func (d DashboardConfig) ReapInterval() time.Duration {
	if d.ReapIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(d.ReapIntervalSeconds) * time.Second
}

// Timeout returns the upstream request timeout.
func (h HelpdeskConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// Configured reports whether upstream credentials are present.
func (h HelpdeskConfig) Configured() bool {
	return h.APIKey != "" && h.BaseURL != ""
}

// TTL returns the ticket cache lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Interval returns the polling period.
func (p PollingConfig) Interval() time.Duration {
	if p.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.IntervalSeconds) * time.Second
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

func getEnvAsInt64List(key string) ([]int64, error) {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
