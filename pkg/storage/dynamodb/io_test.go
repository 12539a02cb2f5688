package dynamodb

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/google/go-cmp/cmp"
	"github.com/in4it/imagepipe/pkg/api"
	"github.com/in4it/imagepipe/pkg/storage/storeerr"
)

// fakeTable implements the subset of DynamoDB the storage uses, including the
// two condition expressions it sends.
type fakeTable struct {
	dynamodbiface.DynamoDBAPI
	mu      sync.Mutex
	items   map[string]map[string]*dynamodb.AttributeValue
	updates []*dynamodb.UpdateItemInput
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: make(map[string]map[string]*dynamodb.AttributeValue)}
}

func conditionFailed() error {
	return awserr.New(dynamodb.ErrCodeConditionalCheckFailedException, "The conditional request failed", nil)
}

func (f *fakeTable) PutItemWithContext(ctx aws.Context, in *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.StringValue(in.Item[keyAttribute].S)
	if _, ok := f.items[key]; ok && aws.StringValue(in.ConditionExpression) == "attribute_not_exists(#key)" {
		return nil, conditionFailed()
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) UpdateItemWithContext(ctx aws.Context, in *dynamodb.UpdateItemInput, opts ...request.Option) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)
	key := aws.StringValue(in.Key[keyAttribute].S)
	item, ok := f.items[key]
	if !ok {
		return nil, conditionFailed()
	}
	item[aws.StringValue(in.ExpressionAttributeNames["#attr"])] = in.ExpressionAttributeValues[":value"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeTable) DeleteItemWithContext(ctx aws.Context, in *dynamodb.DeleteItemInput, opts ...request.Option) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, aws.StringValue(in.Key[keyAttribute].S))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeTable) GetItemWithContext(ctx aws.Context, in *dynamodb.GetItemInput, opts ...request.Option) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[aws.StringValue(in.Key[keyAttribute].S)]}, nil
}

func newStorage(t *testing.T) (*DynamoDBStorage, *fakeTable) {
	t.Helper()
	table := newFakeTable()
	d, err := NewDynamoDBStorage(Config{Table: "Images", Client: table})
	if err != nil {
		t.Fatalf("NewDynamoDBStorage error: %s", err)
	}
	return d, table
}

func TestImageAttributeNames(t *testing.T) {
	av, err := dynamodbattribute.MarshalMap(api.Image{Name: "a.png", Date: "2023-05-01"})
	if err != nil {
		t.Fatalf("MarshalMap: %v", err)
	}
	if _, ok := av["ImageName"]; !ok {
		t.Errorf("expected ImageName attribute, got %v", av)
	}
	if _, ok := av["Date"]; !ok {
		t.Errorf("expected Date attribute, got %v", av)
	}
	if _, ok := av["Caption"]; ok {
		t.Errorf("empty Caption should be omitted, got %v", av)
	}
}

func TestPutUpdateGet(t *testing.T) {
	ctx := context.Background()
	d, table := newStorage(t)
	if err := d.PutImage(ctx, api.Image{Name: "vacation photo.png"}); err != nil {
		t.Fatalf("PutImage error: %s", err)
	}
	if err := d.UpdateAttribute(ctx, "vacation photo.png", api.AttributeDate, "2023-05-01"); err != nil {
		t.Fatalf("UpdateAttribute error: %s", err)
	}
	if err := d.PutImage(ctx, api.Image{Name: "vacation photo.png"}); err != nil {
		t.Fatalf("duplicate PutImage error: %s", err)
	}
	got, err := d.GetImage(ctx, "vacation photo.png")
	if err != nil {
		t.Fatalf("GetImage error: %s", err)
	}
	want := api.Image{Name: "vacation photo.png", Date: "2023-05-01"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("image mismatch (-want +got):\n%s", diff)
	}
	update := table.updates[0]
	if aws.StringValue(update.UpdateExpression) != "SET #attr = :value" {
		t.Errorf("unexpected update expression: %s", aws.StringValue(update.UpdateExpression))
	}
	if aws.StringValue(update.ExpressionAttributeNames["#attr"]) != "Date" {
		t.Errorf("unexpected attribute name: %v", update.ExpressionAttributeNames)
	}
}

func TestUpdateMissingImage(t *testing.T) {
	d, _ := newStorage(t)
	err := d.UpdateAttribute(context.Background(), "missing.png", api.AttributeCaption, "x")
	if !errors.Is(err, storeerr.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got: %v", err)
	}
}

func TestDeleteImage(t *testing.T) {
	ctx := context.Background()
	d, _ := newStorage(t)
	if err := d.DeleteImage(ctx, "never-existed.png"); err != nil {
		t.Errorf("DeleteImage error: %s", err)
	}
	if err := d.PutImage(ctx, api.Image{Name: "a.jpeg"}); err != nil {
		t.Fatalf("PutImage error: %s", err)
	}
	if err := d.DeleteImage(ctx, "a.jpeg"); err != nil {
		t.Errorf("DeleteImage error: %s", err)
	}
	if _, err := d.GetImage(ctx, "a.jpeg"); !errors.Is(err, storeerr.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got: %v", err)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	d, err := NewDynamoDBStorage(Config{Table: "Images", Client: failingTable{}})
	if err != nil {
		t.Fatalf("NewDynamoDBStorage error: %s", err)
	}
	if err := d.PutImage(context.Background(), api.Image{Name: "a.png"}); err == nil {
		t.Errorf("expected PutImage to fail")
	}
}

type failingTable struct {
	dynamodbiface.DynamoDBAPI
}

func (failingTable) PutItemWithContext(ctx aws.Context, in *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error) {
	return nil, awserr.New(dynamodb.ErrCodeProvisionedThroughputExceededException, "slow down", nil)
}
