package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/rs/zerolog"

	"github.com/outreachbackend/internal/config"
	"github.com/outreachbackend/internal/encryption"
	"github.com/outreachbackend/internal/store"
)

// Provision creates the backing tables for the configured store and, with
// KMS keys, checks that the master key is usable. It is safe to re-run.
func Provision(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	switch cfg.Store.Backend {
	case "dynamodb":
		awsCfg, err := loadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return err
		}
		err = store.ProvisionDynamo(ctx, dynamodb.NewFromConfig(awsCfg), log,
			store.TableSpec{Name: cfg.Store.IcebreakerTable, HashKey: icebreakerHashKey},
			store.TableSpec{Name: cfg.Store.RateLimitTable, HashKey: rateLimitHashKey},
			store.TableSpec{Name: cfg.Store.IdempotencyTable, HashKey: idempotencyHashKey},
		)
		if err != nil {
			return err
		}

	case "postgres", "sqlite":
		a := &App{}
		defer a.Close()
		if _, err := a.openStores(ctx, cfg.Store, nil); err != nil {
			return err
		}
		log.Info().Str("backend", cfg.Store.Backend).Msg("tables ready")

	case "memory":
		log.Info().Msg("memory store needs no provisioning")
	}

	if cfg.Keys.Provider == "kms" {
		awsCfg, err := loadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return err
		}
		p, err := encryption.NewKMSKeyProvider(kms.NewFromConfig(awsCfg), cfg.Keys.KMSKeyID, cfg.Keys.File)
		if err != nil {
			return err
		}
		if err := p.ValidateKey(ctx); err != nil {
			return fmt.Errorf("KMS key validation failed: %w", err)
		}
		log.Info().Str("key_id", cfg.Keys.KMSKeyID).Msg("KMS key validated")
	}

	return nil
}
