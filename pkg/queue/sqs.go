package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
)

const maxSQSBatch = 10

type SQSQueue struct {
	name     string
	queueURL string
	sqsSvc   sqsiface.SQSAPI
}

func NewSQSQueue(svc sqsiface.SQSAPI, name, queueURL string) *SQSQueue {
	return &SQSQueue{name: name, queueURL: queueURL, sqsSvc: svc}
}

// NewSQSQueueByName resolves the queue URL through GetQueueUrl.
func NewSQSQueueByName(ctx context.Context, svc sqsiface.SQSAPI, name string) (*SQSQueue, error) {
	resultURL, err := svc.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("GetQueueUrl %s: %w", name, err)
	}
	logger.Infof("Using SQS queue (%s)", aws.StringValue(resultURL.QueueUrl))
	return NewSQSQueue(svc, name, aws.StringValue(resultURL.QueueUrl)), nil
}

func NewSQSClient(region string) (sqsiface.SQSAPI, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region)},
	)
	if err != nil {
		return nil, err
	}
	return sqs.New(sess), nil
}

func (q *SQSQueue) Name() string {
	return q.name
}

func (q *SQSQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if max <= 0 || max > maxSQSBatch {
		max = maxSQSBatch
	}
	result, err := q.sqsSvc.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl: aws.String(q.queueURL),
		AttributeNames: aws.StringSlice([]string{
			sqs.MessageSystemAttributeNameApproximateReceiveCount,
		}),
		MaxNumberOfMessages: aws.Int64(int64(max)),
		MessageAttributeNames: aws.StringSlice([]string{
			"All",
		}),
		WaitTimeSeconds: aws.Int64(int64(wait / time.Second)),
	})
	if err != nil {
		return nil, fmt.Errorf("ReceiveMessage error: %w", err)
	}
	messages := make([]Message, 0, len(result.Messages))
	for _, v := range result.Messages {
		msg := Message{
			ID:            aws.StringValue(v.MessageId),
			ReceiptHandle: aws.StringValue(v.ReceiptHandle),
			Body:          aws.StringValue(v.Body),
			Attributes:    make(map[string]string, len(v.MessageAttributes)),
			ReceiveCount:  1,
		}
		if count, err := strconv.Atoi(aws.StringValue(v.Attributes[sqs.MessageSystemAttributeNameApproximateReceiveCount])); err == nil {
			msg.ReceiveCount = count
		}
		for name, attr := range v.MessageAttributes {
			msg.Attributes[name] = aws.StringValue(attr.StringValue)
		}
		messages = append(messages, msg)
	}
	if len(messages) > 0 {
		logger.Debugf("Received %d messages from %s", len(messages), q.name)
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, msg Message) error {
	_, err := q.sqsSvc.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("DeleteMessage error: %w", err)
	}
	return nil
}

func (q *SQSQueue) Release(ctx context.Context, msg Message) error {
	_, err := q.sqsSvc.ChangeMessageVisibilityWithContext(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(msg.ReceiptHandle),
		VisibilityTimeout: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("ChangeMessageVisibility error: %w", err)
	}
	return nil
}

func (q *SQSQueue) Send(ctx context.Context, body string, attrs map[string]string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	}
	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]*sqs.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			input.MessageAttributes[k] = &sqs.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}
	if _, err := q.sqsSvc.SendMessageWithContext(ctx, input); err != nil {
		return fmt.Errorf("SendMessage error: %w", err)
	}
	return nil
}
