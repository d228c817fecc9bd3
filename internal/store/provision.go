package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// TableSpec names a DynamoDB table and its string hash key.
type TableSpec struct {
	Name    string
	HashKey string
}

type provisionAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// tableWaiter blocks until a freshly created table is active.
type tableWaiter func(ctx context.Context, tableName string) error

// ProvisionDynamo creates any missing tables (on-demand billing) and enables
// TTL eviction on TTLField. Safe to run repeatedly; meant for deployment time,
// not for every cold start.
func ProvisionDynamo(ctx context.Context, client *dynamodb.Client, log zerolog.Logger, tables ...TableSpec) error {
	waiter := dynamodb.NewTableExistsWaiter(client)
	wait := func(ctx context.Context, name string) error {
		return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, 2*time.Minute)
	}
	return provision(ctx, client, wait, log, tables...)
}

func provision(ctx context.Context, client provisionAPI, wait tableWaiter, log zerolog.Logger, tables ...TableSpec) error {
	for _, t := range tables {
		_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.Name)})
		if err == nil {
			log.Debug().Str("table", t.Name).Msg("table already exists")
			continue
		}

		var notFound *types.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to describe table %s: %w", t.Name, err)
		}

		_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName: aws.String(t.Name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(t.HashKey), KeyType: types.KeyTypeHash},
			},
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(t.HashKey), AttributeType: types.ScalarAttributeTypeS},
			},
			BillingMode: types.BillingModePayPerRequest,
		})
		if err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.Name, err)
		}

		if err := wait(ctx, t.Name); err != nil {
			return fmt.Errorf("waiting for table %s: %w", t.Name, err)
		}

		_, err = client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
			TableName: aws.String(t.Name),
			TimeToLiveSpecification: &types.TimeToLiveSpecification{
				AttributeName: aws.String(TTLField),
				Enabled:       aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to enable ttl on %s: %w", t.Name, err)
		}

		log.Info().Str("table", t.Name).Msg("created DynamoDB table")
	}

	return nil
}
