package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/in4it/imagepipe/pkg/envelope"
)

type SNSTopic struct {
	topicArn string
	snsSvc   snsiface.SNSAPI
}

func NewSNSTopic(svc snsiface.SNSAPI, topicArn string) *SNSTopic {
	return &SNSTopic{topicArn: topicArn, snsSvc: svc}
}

func (t *SNSTopic) Publish(ctx context.Context, message string, attrs map[string]string) error {
	input := &sns.PublishInput{
		TopicArn: aws.String(t.topicArn),
		Message:  aws.String(message),
	}
	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]*sns.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			input.MessageAttributes[k] = &sns.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}
	out, err := t.snsSvc.PublishWithContext(ctx, input)
	if err != nil {
		return fmt.Errorf("Publish error: %w", err)
	}
	logger.Debugf("Published message %s to %s", aws.StringValue(out.MessageId), t.topicArn)
	return nil
}

// MemoryTopic delivers each published message to every subscribed queue,
// wrapped in an SNS notification the way an SNS-to-SQS subscription does.
type MemoryTopic struct {
	mu          sync.Mutex
	subscribers []Queue
}

func NewMemoryTopic(subscribers ...Queue) *MemoryTopic {
	return &MemoryTopic{subscribers: subscribers}
}

func (t *MemoryTopic) Subscribe(q Queue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, q)
}

func (t *MemoryTopic) Publish(ctx context.Context, message string, attrs map[string]string) error {
	body, err := envelope.WrapSNS(message, attrs)
	if err != nil {
		return err
	}
	t.mu.Lock()
	subscribers := append([]Queue(nil), t.subscribers...)
	t.mu.Unlock()
	for _, q := range subscribers {
		if err := q.Send(ctx, body, nil); err != nil {
			return fmt.Errorf("deliver to %s: %w", q.Name(), err)
		}
	}
	return nil
}
