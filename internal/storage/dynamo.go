package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/event"
)

// DynamoCityIndex is the global secondary index (city_key, date) used for city listings
const DynamoCityIndex = "city_key-date-index"

// dynamoAPI is the subset of the DynamoDB client used by DynamoStore
type dynamoAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore keeps one item per event in a DynamoDB table keyed by id
type DynamoStore struct {
	client dynamoAPI
	table  string
}

// OpenDynamo creates a store using the default AWS credential chain.
// cfg.Endpoint points the client at DynamoDB Local when set.
func OpenDynamo(ctx context.Context, cfg config.StorageConfig) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &DynamoStore{client: client, table: cfg.Table}, nil
}

// Upsert updates each item in place; first_seen is only written when absent
func (s *DynamoStore) Upsert(ctx context.Context, events []*event.Event) (UpsertResult, error) {
	var result UpsertResult
	for _, e := range events {
		item, err := attributevalue.MarshalMap(toRecord(e))
		if err != nil {
			return result, fmt.Errorf("encoding event %s: %w", e.ID, err)
		}

		names := map[string]string{}
		values := map[string]types.AttributeValue{}
		var sets []string

		keys := make([]string, 0, len(item))
		for k := range item {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for i, k := range keys {
			if k == "id" {
				continue
			}
			name, value := fmt.Sprintf("#a%d", i), fmt.Sprintf(":v%d", i)
			names[name] = k
			values[value] = item[k]
			if k == "first_seen" {
				sets = append(sets, fmt.Sprintf("%s = if_not_exists(%s, %s)", name, name, value))
			} else {
				sets = append(sets, fmt.Sprintf("%s = %s", name, value))
			}
		}

		out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(s.table),
			Key:                       map[string]types.AttributeValue{"id": item["id"]},
			UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ReturnValues:              types.ReturnValueUpdatedOld,
		})
		if err != nil {
			return result, fmt.Errorf("upserting %s: %w", e.ID, err)
		}
		if len(out.Attributes) == 0 {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

// Get returns one event by id
func (s *DynamoStore) Get(ctx context.Context, id string) (*event.Event, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
	})
	if err != nil {
		return nil, fmt.Errorf("getting event %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var r record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("decoding event %s: %w", id, err)
	}
	return r.toEvent()
}

// Find queries the city index when a city is given and scans otherwise.
// Remaining filters, ordering and paging are applied in memory.
func (s *DynamoStore) Find(ctx context.Context, q Query) ([]*event.Event, int, error) {
	var items []map[string]types.AttributeValue

	if q.City != "" {
		input := &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			IndexName:              aws.String(DynamoCityIndex),
			KeyConditionExpression: aws.String("city_key = :city"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":city": &types.AttributeValueMemberS{Value: strings.ToLower(q.City)},
			},
		}
		for {
			out, err := s.client.Query(ctx, input)
			if err != nil {
				return nil, 0, fmt.Errorf("querying events: %w", err)
			}
			items = append(items, out.Items...)
			if len(out.LastEvaluatedKey) == 0 {
				break
			}
			input.ExclusiveStartKey = out.LastEvaluatedKey
		}
	} else {
		input := &dynamodb.ScanInput{TableName: aws.String(s.table)}
		for {
			out, err := s.client.Scan(ctx, input)
			if err != nil {
				return nil, 0, fmt.Errorf("scanning events: %w", err)
			}
			items = append(items, out.Items...)
			if len(out.LastEvaluatedKey) == 0 {
				break
			}
			input.ExclusiveStartKey = out.LastEvaluatedKey
		}
	}

	var records []record
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, 0, fmt.Errorf("decoding events: %w", err)
	}
	events := make([]*event.Event, 0, len(records))
	for _, r := range records {
		e, err := r.toEvent()
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}

	page, total := q.apply(events)
	return page, total, nil
}

// Close is a no-op; the SDK client holds no connections that need closing
func (s *DynamoStore) Close(context.Context) error {
	return nil
}
