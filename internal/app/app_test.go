package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreachbackend/internal/cache"
	"github.com/outreachbackend/internal/config"
	"github.com/outreachbackend/internal/llm"
	"github.com/outreachbackend/internal/models"
	"github.com/outreachbackend/internal/telemetry"
)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Outreach: config.OutreachConfig{
			DailyLimit:          2,
			CostPer1KTokens:     0.005,
			TargetCostPerLead:   0.05,
			AvgTokensPerMessage: 75,
			MaxOutputTokens:     100,
			Temperature:         0.7,
			CacheTTL:            cache.DefaultTTL,
		},
		Store: config.StoreConfig{
			Backend:          backend,
			IcebreakerTable:  "linkedin_icebreakers",
			RateLimitTable:   "linkedin_rate_limits",
			IdempotencyTable: "linkedin_idempotency",
			SQLitePath:       filepath.Join(dir, "outreach.db"),
		},
		Keys:      config.KeyConfig{Provider: "file", File: filepath.Join(dir, "encryption_key.key")},
		Telemetry: config.TelemetryConfig{Sink: "none"},
	}
}

var stubProvider = llm.ProviderFunc(func(context.Context, string, int, float32) (llm.Completion, error) {
	return llm.Completion{Text: "Hi Jane, congrats on the launch!", TotalTokens: 40}, nil
})

var jane = models.Profile{Name: "Jane Doe", Title: "AI Engineer", Company: "Tech Corp"}

func TestBuild_RequiresProviderKey(t *testing.T) {
	_, err := Build(context.Background(), testConfig(t, "memory"), zerolog.Nop())
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestBuild_Backends(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			a, err := Build(ctx, testConfig(t, backend), zerolog.Nop(), WithProvider(stubProvider), WithSink(telemetry.Nop{}))
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, a.Close()) })

			out := a.Outreach.ProcessOutreach(ctx, jane)
			require.True(t, out.Success, out.Error)
			assert.Equal(t, 1, out.MessageCount)
			assert.Equal(t, 1, out.RemainingMessages)

			again, err := a.Outreach.GenerateIcebreaker(ctx, jane)
			require.NoError(t, err)
			assert.True(t, again.Cached)

			stats, err := a.Outreach.GetDailyStats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, stats.MessagesSent)
		})
	}
}

func TestBuild_SQLiteSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "sqlite")

	a, err := Build(ctx, cfg, zerolog.Nop(), WithProvider(stubProvider))
	require.NoError(t, err)
	first, err := a.Outreach.GenerateIcebreaker(ctx, jane)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// same key file and database: the cached text decrypts after restart
	b, err := Build(ctx, cfg, zerolog.Nop(), WithProvider(llm.ProviderFunc(func(context.Context, string, int, float32) (llm.Completion, error) {
		t.Fatal("provider must not be called on a cache hit")
		return llm.Completion{}, nil
	})))
	require.NoError(t, err)
	defer b.Close()

	second, err := b.Outreach.GenerateIcebreaker(ctx, jane)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Icebreaker, second.Icebreaker)
}

func TestBuild_UnknownBackend(t *testing.T) {
	cfg := testConfig(t, "cassandra")
	_, err := Build(context.Background(), cfg, zerolog.Nop(), WithProvider(stubProvider))
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestProvision_SQLite(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	require.NoError(t, Provision(context.Background(), cfg, zerolog.Nop()))
	require.NoError(t, Provision(context.Background(), cfg, zerolog.Nop()))
}

func TestTelemetrySink(t *testing.T) {
	fakeAWS := func() (aws.Config, error) { return aws.Config{Region: "us-east-1"}, nil }
	cw := config.TelemetryConfig{Sink: "cloudwatch", Namespace: "GTMotion/LinkedInAutomation"}

	sink, err := telemetrySink(cw, zerolog.Nop().Level(zerolog.InfoLevel), fakeAWS)
	require.NoError(t, err)
	assert.IsType(t, &telemetry.CloudWatch{}, sink)

	sink, err = telemetrySink(cw, zerolog.Nop().Level(zerolog.DebugLevel), fakeAWS)
	require.NoError(t, err)
	require.IsType(t, telemetry.Multi{}, sink)
	multi := sink.(telemetry.Multi)
	require.Len(t, multi, 2)
	assert.IsType(t, &telemetry.CloudWatch{}, multi[0])
	assert.IsType(t, telemetry.LogSink{}, multi[1])

	sink, err = telemetrySink(config.TelemetryConfig{Sink: "log"}, zerolog.Nop(), fakeAWS)
	require.NoError(t, err)
	assert.IsType(t, telemetry.LogSink{}, sink)

	_, err = telemetrySink(config.TelemetryConfig{Sink: "statsd"}, zerolog.Nop(), fakeAWS)
	assert.ErrorContains(t, err, "unknown telemetry sink")
}
