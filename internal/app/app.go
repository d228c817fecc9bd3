// Package app wires configuration into a ready outreach service. Both the
// Lambda entry point and the CLI build through here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/rs/zerolog"

	"github.com/outreachbackend/internal/cache"
	"github.com/outreachbackend/internal/config"
	"github.com/outreachbackend/internal/delivery"
	"github.com/outreachbackend/internal/encryption"
	"github.com/outreachbackend/internal/idempotency"
	"github.com/outreachbackend/internal/llm"
	"github.com/outreachbackend/internal/logging"
	"github.com/outreachbackend/internal/outreach"
	"github.com/outreachbackend/internal/ratelimit"
	"github.com/outreachbackend/internal/store"
	"github.com/outreachbackend/internal/telemetry"
)

// DynamoDB hash keys per table.
const (
	icebreakerHashKey  = "profile_id"
	rateLimitHashKey   = "date"
	idempotencyHashKey = "key"
)

type App struct {
	Config      config.Config
	Outreach    *outreach.Service
	Idempotency *idempotency.Service

	closers []func() error
}

// Close releases database handles.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

type options struct {
	provider llm.Provider
	sender   delivery.Sender
	sink     telemetry.Sink
}

type Option func(*options)

// WithProvider replaces the OpenAI provider.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithSender replaces the mock Unipile sender.
func WithSender(s delivery.Sender) Option {
	return func(o *options) { o.sender = s }
}

// WithSink replaces the configured telemetry sink.
func WithSink(s telemetry.Sink) Option {
	return func(o *options) { o.sink = s }
}

// stores groups the three keyspaces of the service.
type stores struct {
	icebreakers store.Store
	rateLimits  store.Store
	idempotency store.Store
}

// Build composes the service. The encryption key is loaded here, once.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.provider == nil {
		if err := cfg.RequireProvider(); err != nil {
			return nil, err
		}
		o.provider = llm.NewOpenAI(cfg.Provider.APIKey, cfg.Provider.BaseURL, cfg.Provider.Model)
	}
	if o.sender == nil {
		o.sender = delivery.NewUnipile(logging.Named(log, "delivery"))
	}

	a := &App{Config: cfg}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := loadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return aws.Config{}, err
		}
		awsCfg = &c
		return c, nil
	}

	st, err := a.openStores(ctx, cfg.Store, loadAWS)
	if err != nil {
		a.Close()
		return nil, err
	}

	keys, err := keyProvider(cfg.Keys, loadAWS)
	if err != nil {
		a.Close()
		return nil, err
	}
	cipher, err := encryption.Load(ctx, keys)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load encryption key: %w", err)
	}

	if o.sink == nil {
		o.sink, err = telemetrySink(cfg.Telemetry, log, loadAWS)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	icebreakers := cache.New(st.icebreakers, cipher, cfg.Outreach.CacheTTL, logging.Named(log, "cache"))
	limiter := ratelimit.New(st.rateLimits, cfg.Outreach.DailyLimit, logging.Named(log, "ratelimit"))

	a.Outreach = outreach.New(icebreakers, limiter, o.provider, o.sender, o.sink, outreach.Settings{
		Pricing:             llm.Pricing{CostPer1KTokens: cfg.Outreach.CostPer1KTokens},
		AvgTokensPerMessage: cfg.Outreach.AvgTokensPerMessage,
		TargetCostPerLead:   cfg.Outreach.TargetCostPerLead,
		MaxOutputTokens:     cfg.Outreach.MaxOutputTokens,
		Temperature:         cfg.Outreach.Temperature,
	}, logging.Named(log, "outreach"))
	a.Idempotency = idempotency.New(st.idempotency, logging.Named(log, "idempotency"))

	log.Info().
		Str("store", cfg.Store.Backend).
		Str("keys", cfg.Keys.Provider).
		Str("telemetry", cfg.Telemetry.Sink).
		Int("daily_limit", cfg.Outreach.DailyLimit).
		Msg("outreach service ready")

	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg config.StoreConfig, loadAWS func() (aws.Config, error)) (stores, error) {
	switch cfg.Backend {
	case "memory":
		return stores{store.NewMemory(), store.NewMemory(), store.NewMemory()}, nil

	case "dynamodb":
		awsCfg, err := loadAWS()
		if err != nil {
			return stores{}, err
		}
		client := dynamodb.NewFromConfig(awsCfg)
		return stores{
			icebreakers: store.NewDynamo(client, cfg.IcebreakerTable, icebreakerHashKey),
			rateLimits:  store.NewDynamo(client, cfg.RateLimitTable, rateLimitHashKey),
			idempotency: store.NewDynamo(client, cfg.IdempotencyTable, idempotencyHashKey),
		}, nil

	case "postgres", "sqlite":
		dialect, dsn := store.Postgres, cfg.DatabaseURL
		if cfg.Backend == "sqlite" {
			dialect, dsn = store.SQLite, cfg.SQLitePath
		}
		db, err := store.OpenDB(dialect, dsn)
		if err != nil {
			return stores{}, err
		}
		a.closers = append(a.closers, db.Close)
		return sqlStores(ctx, db, dialect, cfg)
	}
	return stores{}, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// sqlStores creates the three tables if needed. Init is idempotent.
func sqlStores(ctx context.Context, db *sql.DB, dialect store.Dialect, cfg config.StoreConfig) (stores, error) {
	var out [3]*store.SQL
	for i, table := range []string{cfg.IcebreakerTable, cfg.RateLimitTable, cfg.IdempotencyTable} {
		s, err := store.NewSQL(db, dialect, table)
		if err != nil {
			return stores{}, err
		}
		if err := s.Init(ctx); err != nil {
			return stores{}, err
		}
		out[i] = s
	}
	return stores{icebreakers: out[0], rateLimits: out[1], idempotency: out[2]}, nil
}

func keyProvider(cfg config.KeyConfig, loadAWS func() (aws.Config, error)) (encryption.KeyProvider, error) {
	switch cfg.Provider {
	case "file":
		return encryption.FileKeyProvider{Path: cfg.File}, nil
	case "kms":
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return encryption.NewKMSKeyProvider(kms.NewFromConfig(awsCfg), cfg.KMSKeyID, cfg.File)
	}
	return nil, fmt.Errorf("unknown key provider %q", cfg.Provider)
}

func telemetrySink(cfg config.TelemetryConfig, log zerolog.Logger, loadAWS func() (aws.Config, error)) (telemetry.Sink, error) {
	switch cfg.Sink {
	case "none":
		return telemetry.Nop{}, nil
	case "log":
		return telemetry.LogSink{Log: logging.Named(log, "telemetry")}, nil
	case "cloudwatch":
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		cw := telemetry.NewCloudWatch(cloudwatch.NewFromConfig(awsCfg), cfg.Namespace, logging.Named(log, "telemetry"))
		// at debug level every metric is echoed to the log as well
		if log.GetLevel() <= zerolog.DebugLevel {
			return telemetry.Multi{cw, telemetry.LogSink{Log: logging.Named(log, "telemetry")}}, nil
		}
		return cw, nil
	}
	return nil, fmt.Errorf("unknown telemetry sink %q", cfg.Sink)
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}
