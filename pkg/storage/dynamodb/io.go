package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/in4it/imagepipe/pkg/api"
	"github.com/in4it/imagepipe/pkg/storage/storeerr"
	"github.com/juju/loggo"
)

const keyAttribute = "ImageName"

var logger = loggo.GetLogger("imagepipe.storage.dynamodb")

type DynamoDBStorage struct {
	config Config
	svc    dynamodbiface.DynamoDBAPI
}
type Config struct {
	Table  string
	Region string
	// Client overrides the client built from Region.
	Client dynamodbiface.DynamoDBAPI
}

func NewDynamoDBStorage(config Config) (*DynamoDBStorage, error) {
	if config.Table == "" {
		return nil, errors.New("dynamodb storage: no table configured")
	}
	svc := config.Client
	if svc == nil {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(config.Region)})
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize dynamodb: %s", err)
		}
		svc = dynamodb.New(sess)
	}
	return &DynamoDBStorage{config: config, svc: svc}, nil
}

func (d *DynamoDBStorage) key(name string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		keyAttribute: {S: aws.String(name)},
	}
}

func (d *DynamoDBStorage) PutImage(ctx context.Context, image api.Image) error {
	item, err := dynamodbattribute.MarshalMap(image)
	if err != nil {
		return err
	}
	_, err = d.svc.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.config.Table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#key)"),
		ExpressionAttributeNames: map[string]*string{"#key": aws.String(keyAttribute)},
	})
	if isConditionalCheckFailed(err) {
		logger.Debugf("image %s already exists, leaving it", image.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("PutItem %s: %w", image.Name, err)
	}
	return nil
}

func (d *DynamoDBStorage) UpdateAttribute(ctx context.Context, key, attribute, value string) error {
	_, err := d.svc.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.config.Table),
		Key:                 d.key(key),
		UpdateExpression:    aws.String("SET #attr = :value"),
		ConditionExpression: aws.String("attribute_exists(#key)"),
		ExpressionAttributeNames: map[string]*string{
			"#attr": aws.String(attribute),
			"#key":  aws.String(keyAttribute),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":value": {S: aws.String(value)},
		},
	})
	if isConditionalCheckFailed(err) {
		return storeerr.ErrNotExist
	}
	if err != nil {
		return fmt.Errorf("UpdateItem %s: %w", key, err)
	}
	return nil
}

func (d *DynamoDBStorage) DeleteImage(ctx context.Context, key string) error {
	_, err := d.svc.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.config.Table),
		Key:       d.key(key),
	})
	if err != nil {
		return fmt.Errorf("DeleteItem %s: %w", key, err)
	}
	return nil
}

func (d *DynamoDBStorage) GetImage(ctx context.Context, key string) (api.Image, error) {
	var image api.Image
	out, err := d.svc.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.config.Table),
		Key:            d.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return image, fmt.Errorf("GetItem %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return image, storeerr.ErrNotExist
	}
	err = dynamodbattribute.UnmarshalMap(out.Item, &image)
	return image, err
}

func isConditionalCheckFailed(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}
