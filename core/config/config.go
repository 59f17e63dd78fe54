package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"rootsignal.dev/scout/core/db"
)

// Config holds all application configuration for the scout process.
type Config struct {
	// Env is the environment name (development, staging, production)
	Env string

	// Port is the HTTP status/metrics surface port (cmd/scout's /healthz)
	Port string

	// DB holds event-store Postgres configuration (scout_runs/scout_run_events)
	DB db.Config

	ArangoDB        ArangoDBConfig
	Redis           RedisConfig
	ExtractionLLM   LLMConfig
	VerificationLLM LLMConfig
	Embedder        EmbedderConfig
	Budget          BudgetConfig
	Scope           ScopeConfig
	OTel            OTelConfig
}

// ArangoDBConfig configures the labeled-property-graph driver backing
// SignalStore/SignalReader.
type ArangoDBConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

func (c ArangoDBConfig) Enabled() bool {
	return c.URL != ""
}

// RedisConfig configures the scout-lock / supervisor-lock advisory locks.
type RedisConfig struct {
	URL string
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// LLMConfig configures one of the two LLM roles the pipeline uses:
// extraction (signal parsing) and verification (tension-response linking).
// Separate configs let operators point extraction at a cheaper/faster model
// than verification.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// EmbedderConfig configures the embedding provider used for dedup and
// similarity-edge cosine comparisons.
type EmbedderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Dims    int
}

func (c EmbedderConfig) Enabled() bool {
	return c.APIKey != ""
}

// BudgetConfig bounds per-run LLM/search spend. DailyBudgetCents == 0 means
// unlimited.
type BudgetConfig struct {
	DailyBudgetCents int64
}

// ScopeConfig is the region every scout run targets.
type ScopeConfig struct {
	Name      string
	CenterLat float64
	CenterLng float64
	RadiusKm  float64
}

// OTelConfig configures the OTLP trace/log exporters set up in common/otel.
type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Load loads configuration from environment variables.
// It provides sensible defaults for development.
func Load() Config {
	// Load .env file (ignore error if not found) — dev convenience only,
	// production deployments set real env vars.
	_ = godotenv.Load()

	return Config{
		Env:  getEnv("SCOUT_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		DB: db.Config{
			DSN:      buildDSN(),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		ArangoDB: ArangoDBConfig{
			URL:      getEnv("ARANGO_URL", ""),
			Username: getEnv("ARANGO_USERNAME", "root"),
			Password: getEnv("ARANGO_PASSWORD", ""),
			Database: getEnv("ARANGO_DATABASE", "scoutgraph"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		ExtractionLLM: LLMConfig{
			APIKey:  getEnv("EXTRACTION_LLM_API_KEY", ""),
			BaseURL: getEnv("EXTRACTION_LLM_BASE_URL", ""),
			Model:   getEnv("EXTRACTION_LLM_MODEL", "gpt-4o-mini"),
		},
		VerificationLLM: LLMConfig{
			APIKey:  getEnv("VERIFICATION_LLM_API_KEY", ""),
			BaseURL: getEnv("VERIFICATION_LLM_BASE_URL", ""),
			Model:   getEnv("VERIFICATION_LLM_MODEL", "gpt-4o-mini"),
		},
		Embedder: EmbedderConfig{
			APIKey:  getEnv("EMBEDDER_API_KEY", ""),
			BaseURL: getEnv("EMBEDDER_BASE_URL", ""),
			Model:   getEnv("EMBEDDER_MODEL", "text-embedding-3-small"),
			Dims:    getEnvInt("EMBEDDER_DIMS", 1536),
		},
		Budget: BudgetConfig{
			DailyBudgetCents: int64(getEnvInt("DAILY_BUDGET_CENTS", 0)),
		},
		Scope: ScopeConfig{
			Name:      getEnv("SCOPE_NAME", "Minneapolis"),
			CenterLat: getEnvFloat("SCOPE_CENTER_LAT", 44.9778),
			CenterLng: getEnvFloat("SCOPE_CENTER_LNG", -93.2650),
			RadiusKm:  getEnvFloat("SCOPE_RADIUS_KM", 15),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "scout"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
	}
}

// buildDSN constructs the event-store database connection string from
// individual env vars.
func buildDSN() string {
	host := getEnv("DATABASE_HOST", "localhost")
	port := getEnv("DATABASE_PORT", "5432")
	user := getEnv("DATABASE_USER", "postgres")
	password := getEnv("DATABASE_PASSWORD", "postgres")
	name := getEnv("DATABASE_NAME", "scout")
	sslMode := getEnv("DATABASE_SSLMODE", "disable")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, name, sslMode,
	)
}

// IsProduction returns true if running in production environment.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment returns true if running in development environment.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
