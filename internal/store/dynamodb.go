package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamoAPI is the subset of the DynamoDB client the store needs.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Dynamo stores records as items of a table with a single string hash key.
type Dynamo struct {
	client    dynamoAPI
	tableName string
	hashKey   string
}

func NewDynamo(client dynamoAPI, tableName, hashKey string) *Dynamo {
	return &Dynamo{
		client:    client,
		tableName: tableName,
		hashKey:   hashKey,
	}
}

// Get uses strongly consistent reads; the table is the source of truth for the
// daily counter.
func (d *Dynamo) Get(ctx context.Context, key string) (Record, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			d.hashKey: &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	}

	result, err := d.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get item from %s: %w", d.tableName, err)
	}

	if result.Item == nil {
		return nil, ErrNotFound
	}

	rec := make(Record, len(result.Item))
	for name, av := range result.Item {
		if name == d.hashKey {
			continue
		}
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			rec[name] = v.Value
		case *types.AttributeValueMemberN:
			rec[name] = v.Value
		default:
			return nil, fmt.Errorf("unsupported attribute type %T for %s in %s", av, name, d.tableName)
		}
	}

	return rec, nil
}

func (d *Dynamo) Put(ctx context.Context, key string, rec Record) error {
	item := make(map[string]types.AttributeValue, len(rec)+1)
	for name, value := range rec {
		if name == TTLField {
			item[name] = &types.AttributeValueMemberN{Value: value}
			continue
		}
		item[name] = &types.AttributeValueMemberS{Value: value}
	}
	item[d.hashKey] = &types.AttributeValueMemberS{Value: key}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}

	if _, err := d.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to put item into %s: %w", d.tableName, err)
	}

	return nil
}
