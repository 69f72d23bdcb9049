package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type dynamoCartItem struct {
	UserID    string `dynamodbav:"user_id"`
	Data      []byte `dynamodbav:"data"`
	Version   int64  `dynamodbav:"version"`
	UpdatedAt string `dynamodbav:"updated_at,omitempty"`
}

// DynamoStore keeps one item per user: user_id (S, partition key), data (B)
// and a version counter (N) bumped on every write.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: key},
	}
}

func (s *DynamoStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := s.get(ctx, key)
	return data, err
}

func (s *DynamoStore) get(ctx context.Context, key string) ([]byte, int64, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      sdkaws.String(s.table),
		Key:            s.key(key),
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("dynamodb get %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, 0, ErrNotFound
	}

	var item dynamoCartItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, 0, fmt.Errorf("dynamodb decode %s: %w", key, err)
	}
	return item.Data, item.Version, nil
}

func (s *DynamoStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        sdkaws.String(s.table),
		Key:              s.key(key),
		UpdateExpression: sdkaws.String("SET #d = :d, updated_at = :t ADD version :one"),
		ExpressionAttributeNames: map[string]string{
			"#d": "data",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d":   &types.AttributeValueMemberB{Value: value},
			":t":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb set %s: %w", key, err)
	}
	return nil
}

// Update is a compare-and-swap on the version attribute, retried when a
// concurrent writer wins the condition.
func (s *DynamoStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	for attempt := 0; attempt < MaxUpdateRetries; attempt++ {
		current, version, err := s.get(ctx, key)
		found := true
		if errors.Is(err, ErrNotFound) {
			found = false
		} else if err != nil {
			return err
		}

		next, err := fn(current, found)
		if err != nil {
			return err
		}

		item, err := attributevalue.MarshalMap(dynamoCartItem{
			UserID:    key,
			Data:      next,
			Version:   version + 1,
			UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("dynamodb encode %s: %w", key, err)
		}

		input := &dynamodb.PutItemInput{
			TableName: sdkaws.String(s.table),
			Item:      item,
		}
		if found {
			input.ConditionExpression = sdkaws.String("version = :v")
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
			}
		} else {
			input.ConditionExpression = sdkaws.String("attribute_not_exists(user_id)")
		}

		_, err = s.client.PutItem(ctx, input)
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("dynamodb update %s: %w", key, err)
		}
		return nil
	}
	return ErrConflict
}

func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: sdkaws.String(s.table),
	})
	return err
}

func (s *DynamoStore) Close() error { return nil }
