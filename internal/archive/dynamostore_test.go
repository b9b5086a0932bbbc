package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"qa-chatbot/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	queryOut     *dynamodb.QueryOutput
	queryErr     error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	lastQueryIn  *dynamodb.QueryInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	return f.queryOut, f.queryErr
}

func mustDynamoStore(t *testing.T, db *fakeDynamo) *DynamoStore {
	t.Helper()
	s, err := NewDynamoStore(db, "test-table")
	require.NoError(t, err)
	return s
}

func archiveItem(id, payload string, turns string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: pkArchive},
		"SK":      &types.AttributeValueMemberS{Value: id},
		"turns":   &types.AttributeValueMemberN{Value: turns},
		"payload": &types.AttributeValueMemberS{Value: payload},
	}
}

func TestNewDynamoStore_Validation(t *testing.T) {
	_, err := NewDynamoStore(nil, "t")
	require.Error(t, err)

	_, err = NewDynamoStore(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestDynamoStore_SaveItemShape(t *testing.T) {
	db := &fakeDynamo{}
	s := mustDynamoStore(t, db)

	rec := domain.ArchiveRecord{ID: "20260823_101500", Turns: sampleTurns()}
	require.NoError(t, s.Save(context.Background(), rec))

	require.NotNil(t, db.lastPutInput)
	require.Equal(t, "test-table", *db.lastPutInput.TableName)
	item := db.lastPutInput.Item
	require.Equal(t, pkArchive, item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, rec.ID, item["SK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "2", item["turns"].(*types.AttributeValueMemberN).Value)
	require.Contains(t, item["payload"].(*types.AttributeValueMemberS).Value, `"messages"`)
	// collisions overwrite, so the put must be unconditional
	require.Nil(t, db.lastPutInput.ConditionExpression)
}

func TestDynamoStore_SaveEmptyRecordPayloadDecodes(t *testing.T) {
	db := &fakeDynamo{}
	s := mustDynamoStore(t, db)

	require.NoError(t, s.Save(context.Background(), domain.ArchiveRecord{ID: "20260823_101500"}))

	payload := db.lastPutInput.Item["payload"].(*types.AttributeValueMemberS).Value
	rec, err := decodeRecord("20260823_101500", []byte(payload))
	require.NoError(t, err, "the store must accept its own empty-record payload")
	require.Empty(t, rec.Turns)
	require.Equal(t, "0", db.lastPutInput.Item["turns"].(*types.AttributeValueMemberN).Value)
}

func TestDynamoStore_SaveEmptyID(t *testing.T) {
	s := mustDynamoStore(t, &fakeDynamo{})
	err := s.Save(context.Background(), domain.ArchiveRecord{Turns: sampleTurns()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "id")
}

func TestDynamoStore_SavePutError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("throttled")}
	s := mustDynamoStore(t, db)
	err := s.Save(context.Background(), domain.ArchiveRecord{ID: "20260823_101500"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "throttled")
}

func TestDynamoStore_ListNewestFirst(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		archiveItem("20260823_101502", `{"messages":[]}`, "4"),
		archiveItem("20260823_101501", `{"messages":[]}`, "2"),
	}}}
	s := mustDynamoStore(t, db)

	summaries, err := s.List(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, []domain.ArchiveSummary{
		{ID: "20260823_101502", TurnCount: 4},
		{ID: "20260823_101501", TurnCount: 2},
	}, summaries)

	require.NotNil(t, db.lastQueryIn)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.Equal(t, int32(5), *db.lastQueryIn.Limit)
}

func TestDynamoStore_ListEmpty(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	s := mustDynamoStore(t, db)

	summaries, err := s.List(context.Background(), 5)
	require.NoError(t, err)
	require.Empty(t, summaries)
}

func TestDynamoStore_ListMalformedTurns(t *testing.T) {
	item := archiveItem("20260823_101500", `{"messages":[]}`, "0")
	item["turns"] = &types.AttributeValueMemberS{Value: "bad"}
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}}
	s := mustDynamoStore(t, db)

	_, err := s.List(context.Background(), 5)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestDynamoStore_LoadHappyPath(t *testing.T) {
	payload := `{"timestamp":"20260823_101500","messages":[{"role":"user","content":"Hi"},{"role":"assistant","content":"Hello"}]}`
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: archiveItem("20260823_101500", payload, "2")}}
	s := mustDynamoStore(t, db)

	rec, err := s.Load(context.Background(), "20260823_101500")
	require.NoError(t, err)
	require.Equal(t, "20260823_101500", rec.ID)
	require.Equal(t, sampleTurns(), rec.Turns)
	require.NotNil(t, db.lastGetInput)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestDynamoStore_LoadNotFound(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	s := mustDynamoStore(t, db)

	_, err := s.Load(context.Background(), "nonexistent")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoStore_LoadCorruptPayload(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{name: "malformed json", payload: `{"messages": [`},
		{name: "missing messages", payload: `{"timestamp":"20260823_101500"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: archiveItem("20260823_101500", tc.payload, "0")}}
			s := mustDynamoStore(t, db)

			_, err := s.Load(context.Background(), "20260823_101500")
			require.ErrorIs(t, err, ErrCorrupted)
		})
	}
}

func TestDynamoStore_LoadMissingPayloadAttr(t *testing.T) {
	item := archiveItem("20260823_101500", "", "0")
	delete(item, "payload")
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: item}}
	s := mustDynamoStore(t, db)

	_, err := s.Load(context.Background(), "20260823_101500")
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestDynamoStore_LoadGetError(t *testing.T) {
	db := &fakeDynamo{getErr: errors.New("boom")}
	s := mustDynamoStore(t, db)

	_, err := s.Load(context.Background(), "20260823_101500")
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}
