package appointments

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	patientIDIndex  = "patientId-index"
	patientUIDIndex = "patientUid-index"
)

type dynamoAPI interface {
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoGlobalStore persists global appointment documents to DynamoDB. The
// table is keyed by appointment id with secondary indexes on the two owner
// keys.
type DynamoGlobalStore struct {
	client dynamoAPI
	table  string
}

// NewDynamoGlobalStore builds a store backed by the provided DynamoDB client.
func NewDynamoGlobalStore(client dynamoAPI, table string) *DynamoGlobalStore {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if table == "" {
		panic("appointments: table name cannot be empty")
	}
	return &DynamoGlobalStore{client: client, table: table}
}

// QueryByPatientID returns global documents owned via the patientId key.
func (s *DynamoGlobalStore) QueryByPatientID(ctx context.Context, patientID string) ([]Document, error) {
	return s.queryIndex(ctx, patientIDIndex, "patientId", patientID)
}

// QueryByPatientUID returns global documents owned via the patientUid key.
func (s *DynamoGlobalStore) QueryByPatientUID(ctx context.Context, patientUID string) ([]Document, error) {
	return s.queryIndex(ctx, patientUIDIndex, "patientUid", patientUID)
}

func (s *DynamoGlobalStore) queryIndex(ctx context.Context, index, key, value string) ([]Document, error) {
	if value == "" {
		return nil, nil
	}

	var docs []Document
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			IndexName:              aws.String(index),
			KeyConditionExpression: aws.String("#k = :v"),
			ExpressionAttributeNames: map[string]string{
				"#k": key,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberS{Value: value},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("appointments: query %s: %w", index, err)
		}

		for _, item := range out.Items {
			fields := map[string]any{}
			if err := attributevalue.UnmarshalMap(item, &fields); err != nil {
				return nil, fmt.Errorf("appointments: decode global doc: %w", err)
			}
			id, _ := fields["id"].(string)
			if id == "" {
				continue
			}
			delete(fields, "id")
			docs = append(docs, Document{ID: id, Fields: fields})
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return docs, nil
}

// Put writes a new global document under the given id.
func (s *DynamoGlobalStore) Put(ctx context.Context, docID string, fields map[string]any) error {
	item, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return fmt.Errorf("appointments: marshal global doc: %w", err)
	}
	item["id"] = &types.AttributeValueMemberS{Value: docID}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("appointments: put global doc: %w", err)
	}
	return nil
}

// Update applies a field patch to an existing global document.
func (s *DynamoGlobalStore) Update(ctx context.Context, docID string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}

	// Deterministic expression order keeps requests reproducible in tests.
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make(map[string]string, len(keys))
	values := make(map[string]types.AttributeValue, len(keys))
	expr := "SET "
	for i, k := range keys {
		attr, err := attributevalue.Marshal(patch[k])
		if err != nil {
			return fmt.Errorf("appointments: marshal patch field %s: %w", k, err)
		}
		nameRef := fmt.Sprintf("#f%d", i)
		valueRef := fmt.Sprintf(":v%d", i)
		names[nameRef] = k
		values[valueRef] = attr
		if i > 0 {
			expr += ", "
		}
		expr += nameRef + " = " + valueRef
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: docID},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("appointments: update global doc %s: %w", docID, err)
	}
	return nil
}

var _ GlobalStore = (*DynamoGlobalStore)(nil)
