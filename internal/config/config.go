// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Outreach  OutreachConfig
	Provider  ProviderConfig
	Store     StoreConfig
	Keys      KeyConfig
	Telemetry TelemetryConfig
	AWSRegion string
}

// OutreachConfig holds the quota and pricing constants shared by every invocation.
type OutreachConfig struct {
	DailyLimit          int
	CostPer1KTokens     float64
	TargetCostPerLead   float64
	AvgTokensPerMessage int
	MaxOutputTokens     int
	Temperature         float32
	CacheTTL            time.Duration
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type StoreConfig struct {
	Backend          string // dynamodb, postgres, sqlite, memory
	IcebreakerTable  string
	RateLimitTable   string
	IdempotencyTable string
	DatabaseURL      string
	SQLitePath       string
}

type KeyConfig struct {
	Provider string // file or kms
	File     string
	KMSKeyID string
}

type TelemetryConfig struct {
	Sink      string // cloudwatch, log, none
	Namespace string
}

func defaults() Config {
	return Config{
		Outreach: OutreachConfig{
			DailyLimit:          50,
			CostPer1KTokens:     0.005,
			TargetCostPerLead:   0.05,
			AvgTokensPerMessage: 75,
			MaxOutputTokens:     100,
			Temperature:         0.7,
			CacheTTL:            24 * time.Hour,
		},
		Provider: ProviderConfig{
			Model: "gpt-4o",
		},
		Store: StoreConfig{
			Backend:          "dynamodb",
			IcebreakerTable:  "linkedin_icebreakers",
			RateLimitTable:   "linkedin_rate_limits",
			IdempotencyTable: "linkedin_idempotency",
			SQLitePath:       "outreach.db",
		},
		Keys: KeyConfig{
			Provider: "file",
			File:     "encryption_key.key",
		},
		Telemetry: TelemetryConfig{
			Sink:      "cloudwatch",
			Namespace: "GTMotion/LinkedInAutomation",
		},
	}
}

// Load applies environment overrides to the defaults and validates the result.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := defaults()
	e := env{get: getenv}

	cfg.Outreach.DailyLimit = e.integer("OUTREACH_DAILY_LIMIT", cfg.Outreach.DailyLimit)
	cfg.Outreach.CostPer1KTokens = e.number("OUTREACH_COST_PER_1K_TOKENS", cfg.Outreach.CostPer1KTokens)
	cfg.Outreach.TargetCostPerLead = e.number("OUTREACH_TARGET_COST_PER_LEAD", cfg.Outreach.TargetCostPerLead)
	cfg.Outreach.AvgTokensPerMessage = e.integer("OUTREACH_AVG_TOKENS_PER_MESSAGE", cfg.Outreach.AvgTokensPerMessage)
	cfg.Outreach.MaxOutputTokens = e.integer("OUTREACH_MAX_OUTPUT_TOKENS", cfg.Outreach.MaxOutputTokens)
	cfg.Outreach.Temperature = float32(e.number("OUTREACH_TEMPERATURE", float64(cfg.Outreach.Temperature)))
	cfg.Outreach.CacheTTL = e.duration("OUTREACH_CACHE_TTL", cfg.Outreach.CacheTTL)

	cfg.Provider.APIKey = e.str("OPENAI_API_KEY", cfg.Provider.APIKey)
	cfg.Provider.BaseURL = e.str("OPENAI_BASE_URL", cfg.Provider.BaseURL)
	cfg.Provider.Model = e.str("OPENAI_MODEL", cfg.Provider.Model)

	cfg.Store.Backend = strings.ToLower(e.str("STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.IcebreakerTable = e.str("ICEBREAKER_TABLE_NAME", cfg.Store.IcebreakerTable)
	cfg.Store.RateLimitTable = e.str("RATE_LIMIT_TABLE_NAME", cfg.Store.RateLimitTable)
	cfg.Store.IdempotencyTable = e.str("IDEMPOTENCY_TABLE_NAME", cfg.Store.IdempotencyTable)
	cfg.Store.DatabaseURL = e.str("DATABASE_URL", cfg.Store.DatabaseURL)
	cfg.Store.SQLitePath = e.str("SQLITE_PATH", cfg.Store.SQLitePath)

	cfg.Keys.Provider = strings.ToLower(e.str("KEY_PROVIDER", cfg.Keys.Provider))
	cfg.Keys.File = e.str("ENCRYPTION_KEY_FILE", cfg.Keys.File)
	cfg.Keys.KMSKeyID = e.str("KMS_KEY_ID", cfg.Keys.KMSKeyID)

	cfg.Telemetry.Sink = strings.ToLower(e.str("TELEMETRY_SINK", cfg.Telemetry.Sink))
	cfg.Telemetry.Namespace = e.str("CLOUDWATCH_NAMESPACE", cfg.Telemetry.Namespace)

	cfg.AWSRegion = e.str("AWS_REGION", cfg.AWSRegion)

	if len(e.errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(e.errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and backend-specific requirements.
func (c Config) Validate() error {
	switch {
	case c.Outreach.DailyLimit < 0:
		return fmt.Errorf("OUTREACH_DAILY_LIMIT must not be negative")
	case c.Outreach.CostPer1KTokens < 0:
		return fmt.Errorf("OUTREACH_COST_PER_1K_TOKENS must not be negative")
	case c.Outreach.CacheTTL <= 0:
		return fmt.Errorf("OUTREACH_CACHE_TTL must be positive")
	case c.Outreach.MaxOutputTokens <= 0:
		return fmt.Errorf("OUTREACH_MAX_OUTPUT_TOKENS must be positive")
	}

	switch c.Store.Backend {
	case "dynamodb", "memory", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Keys.Provider {
	case "file":
	case "kms":
		if c.Keys.KMSKeyID == "" {
			return fmt.Errorf("KMS_KEY_ID environment variable is required")
		}
	default:
		return fmt.Errorf("unknown KEY_PROVIDER %q", c.Keys.Provider)
	}

	switch c.Telemetry.Sink {
	case "cloudwatch", "log", "none":
	default:
		return fmt.Errorf("unknown TELEMETRY_SINK %q", c.Telemetry.Sink)
	}

	return nil
}

// RequireProvider reports a missing provider credential.
func (c Config) RequireProvider() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("missing required config: set OPENAI_API_KEY")
	}
	return nil
}

type env struct {
	get  func(string) string
	errs []string
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (e *env) number(key string, def float64) float64 {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return f
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}
