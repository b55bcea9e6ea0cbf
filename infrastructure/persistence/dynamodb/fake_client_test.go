package dynamodb

import (
	"context"
	"errors"
	"strings"
	"sync"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory stand-in for the DynamoDB client. It stores
// items keyed by PK/SK and answers the GSI query the migration issues.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	puts       int
	failGet    bool
	failDelete bool
	updates    []*awsdynamodb.UpdateItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func attrString(av types.AttributeValue) string {
	if v, ok := av.(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func itemKey(attrs map[string]types.AttributeValue) string {
	return attrString(attrs["PK"]) + "|" + attrString(attrs["SK"])
}

func (f *fakeDynamo) seed(attrs map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[itemKey(attrs)] = attrs
}

func (f *fakeDynamo) has(pk, sk string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[pk+"|"+sk]
	return ok
}

func (f *fakeDynamo) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *awsdynamodb.GetItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, errors.New("simulated read failure")
	}
	item, ok := f.items[itemKey(params.Key)]
	if !ok {
		return &awsdynamodb.GetItemOutput{}, nil
	}
	return &awsdynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *awsdynamodb.PutItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	f.items[itemKey(params.Item)] = params.Item
	return &awsdynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, params *awsdynamodb.UpdateItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, params)
	return &awsdynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *awsdynamodb.DeleteItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return nil, errors.New("simulated delete failure")
	}
	delete(f.items, itemKey(params.Key))
	return &awsdynamodb.DeleteItemOutput{}, nil
}

// Query answers the GSI1 key condition built by fetchLegacy: an equality on
// GSI1PK and a begins_with on GSI1SK.
func (f *fakeDynamo) Query(ctx context.Context, params *awsdynamodb.QueryInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values := make([]string, 0, len(params.ExpressionAttributeValues))
	for _, av := range params.ExpressionAttributeValues {
		values = append(values, attrString(av))
	}

	out := &awsdynamodb.QueryOutput{}
	for _, item := range f.items {
		pk := attrString(item["GSI1PK"])
		sk := attrString(item["GSI1SK"])
		if pk == "" || sk == "" {
			continue
		}
		pkMatch, skMatch := false, false
		for _, v := range values {
			if pk == v {
				pkMatch = true
			}
			if strings.HasPrefix(sk, v) {
				skMatch = true
			}
		}
		if pkMatch && skMatch {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

var _ API = (*fakeDynamo)(nil)
