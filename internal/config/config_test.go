package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Outreach.DailyLimit)
	assert.Equal(t, 0.005, cfg.Outreach.CostPer1KTokens)
	assert.Equal(t, 0.05, cfg.Outreach.TargetCostPerLead)
	assert.Equal(t, 75, cfg.Outreach.AvgTokensPerMessage)
	assert.Equal(t, 100, cfg.Outreach.MaxOutputTokens)
	assert.Equal(t, float32(0.7), cfg.Outreach.Temperature)
	assert.Equal(t, 24*time.Hour, cfg.Outreach.CacheTTL)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, "dynamodb", cfg.Store.Backend)
	assert.Equal(t, "linkedin_icebreakers", cfg.Store.IcebreakerTable)
	assert.Equal(t, "linkedin_rate_limits", cfg.Store.RateLimitTable)
	assert.Equal(t, "file", cfg.Keys.Provider)
	assert.Equal(t, "cloudwatch", cfg.Telemetry.Sink)

	assert.Error(t, cfg.RequireProvider())
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"OUTREACH_DAILY_LIMIT":        "10",
		"OUTREACH_COST_PER_1K_TOKENS": "0.01",
		"OUTREACH_CACHE_TTL":          "2h",
		"OPENAI_API_KEY":              "sk-test",
		"STORE_BACKEND":               "SQLite",
		"SQLITE_PATH":                 "/tmp/o.db",
		"TELEMETRY_SINK":              "log",
	}))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Outreach.DailyLimit)
	assert.Equal(t, 0.01, cfg.Outreach.CostPer1KTokens)
	assert.Equal(t, 2*time.Hour, cfg.Outreach.CacheTTL)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/o.db", cfg.Store.SQLitePath)
	assert.Equal(t, "log", cfg.Telemetry.Sink)
	assert.NoError(t, cfg.RequireProvider())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"non-numeric limit", map[string]string{"OUTREACH_DAILY_LIMIT": "fifty"}, "OUTREACH_DAILY_LIMIT"},
		{"bad ttl", map[string]string{"OUTREACH_CACHE_TTL": "a day"}, "OUTREACH_CACHE_TTL"},
		{"negative limit", map[string]string{"OUTREACH_DAILY_LIMIT": "-1"}, "must not be negative"},
		{"postgres without dsn", map[string]string{"STORE_BACKEND": "postgres"}, "DATABASE_URL"},
		{"unknown backend", map[string]string{"STORE_BACKEND": "redis"}, "STORE_BACKEND"},
		{"kms without key", map[string]string{"KEY_PROVIDER": "kms"}, "KMS_KEY_ID"},
		{"unknown sink", map[string]string{"TELEMETRY_SINK": "statsd"}, "TELEMETRY_SINK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(envMap(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
