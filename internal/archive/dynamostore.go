package archive

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"qa-chatbot/internal/domain"
)

// Single-table layout: every archive lives under one partition so a reverse
// Query yields most-recent-first ids directly.
const pkArchive = "ARCHIVE"

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore keeps archive records in a DynamoDB table, one item per record:
// PK "ARCHIVE", SK the archive id, a turns count for cheap listing, and the
// serialized payload document.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
}

// NewDynamoStore creates a DynamoStore backed by the given table.
func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("archive: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("archive: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName}, nil
}

// Save puts the record unconditionally; an id collision overwrites the prior
// item, matching the file store's rename semantics.
func (s *DynamoStore) Save(ctx context.Context, rec domain.ArchiveRecord) error {
	if rec.ID == "" {
		return errors.New("archive: record id must not be empty")
	}
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":      &types.AttributeValueMemberS{Value: pkArchive},
			"SK":      &types.AttributeValueMemberS{Value: rec.ID},
			"turns":   &types.AttributeValueMemberN{Value: strconv.Itoa(len(rec.Turns))},
			"payload": &types.AttributeValueMemberS{Value: string(payload)},
		},
	})
	if err != nil {
		return fmt.Errorf("archive: put record %q: %w", rec.ID, err)
	}
	return nil
}

// List queries the archive partition newest-first, truncated to limit.
func (s *DynamoStore) List(ctx context.Context, limit int) ([]domain.ArchiveSummary, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pkArchive},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := s.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("archive: list query: %w", err)
	}

	summaries := make([]domain.ArchiveSummary, 0, len(out.Items))
	for _, item := range out.Items {
		id, err := strAttr(item, "SK")
		if err != nil {
			return nil, fmt.Errorf("archive: list: %v: %w", err, ErrCorrupted)
		}
		turns, err := intAttr(item, "turns")
		if err != nil {
			return nil, fmt.Errorf("archive: list record %q: %v: %w", id, err, ErrCorrupted)
		}
		summaries = append(summaries, domain.ArchiveSummary{ID: id, TurnCount: turns})
	}
	return summaries, nil
}

// Load fetches and decodes the record stored under id.
func (s *DynamoStore) Load(ctx context.Context, id string) (domain.ArchiveRecord, error) {
	if strings.TrimSpace(id) == "" {
		return domain.ArchiveRecord{}, fmt.Errorf("archive: empty id: %w", ErrNotFound)
	}

	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkArchive},
			"SK": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ArchiveRecord{}, fmt.Errorf("archive: get record %q: %w", id, err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ArchiveRecord{}, fmt.Errorf("archive: record %q: %w", id, ErrNotFound)
	}

	payload, err := strAttr(out.Item, "payload")
	if err != nil {
		return domain.ArchiveRecord{}, fmt.Errorf("archive: record %q: %v: %w", id, err, ErrCorrupted)
	}
	return decodeRecord(id, []byte(payload))
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
