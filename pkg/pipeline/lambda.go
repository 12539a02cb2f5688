package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/in4it/imagepipe/pkg/deadletter"
	"github.com/in4it/imagepipe/pkg/queue"
	"github.com/in4it/imagepipe/pkg/worker"
)

type SQSHandler func(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error)

// NewSQSHandler adapts a pool's handler to a Lambda SQS event source. Messages
// the pool doesn't acknowledge are reported individually so the rest of the
// batch is deleted; the event source's redrive policy parks repeat failures.
func NewSQSHandler(pool *worker.Pool) SQSHandler {
	return func(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
		var response events.SQSEventResponse
		for _, record := range event.Records {
			msg := fromSQSMessage(record)
			err := pool.Handle(ctx, msg)
			action := pool.Decide(msg, err)
			pool.Metrics.Message(pool.Name, action.String())
			if action != deadletter.Ack {
				logger.Errorf("%s: message %s failed: %s", pool.Name, msg.ID, err)
				response.BatchItemFailures = append(response.BatchItemFailures, events.SQSBatchItemFailure{
					ItemIdentifier: record.MessageId,
				})
			}
		}
		return response, nil
	}
}

func fromSQSMessage(record events.SQSMessage) queue.Message {
	msg := queue.Message{
		ID:            record.MessageId,
		ReceiptHandle: record.ReceiptHandle,
		Body:          record.Body,
		Attributes:    make(map[string]string, len(record.MessageAttributes)),
		ReceiveCount:  1,
	}
	if count, err := strconv.Atoi(record.Attributes["ApproximateReceiveCount"]); err == nil {
		msg.ReceiveCount = count
	}
	for name, attr := range record.MessageAttributes {
		if attr.StringValue != nil {
			msg.Attributes[name] = *attr.StringValue
		}
	}
	return msg
}

// SNSMetadataHandler applies metadata edits delivered straight from SNS. Any
// failure fails the invocation so SNS retries it.
func (p *Pipeline) SNSMetadataHandler(ctx context.Context, event events.SNSEvent) error {
	var errs []error
	for _, record := range event.Records {
		if err := p.Metadata.HandleSNS(ctx, record.SNS); err != nil {
			logger.Errorf("metadata update %s failed: %s", record.SNS.MessageID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LambdaHandler returns the Lambda entry point for one consumer: "catalog" and
// "mailer" take SQS events, "metadata" takes SNS events and "metadata-sqs"
// takes SQS events from a queue subscribed to the metadata topic.
func (p *Pipeline) LambdaHandler(kind string) (interface{}, error) {
	policy := deadletter.Policy{MaxReceives: p.config.MaxReceives}
	newPool := func(name string, h worker.Handler, timeout time.Duration) *worker.Pool {
		return &worker.Pool{Name: name, Handler: h, Timeout: timeout, Policy: policy, Metrics: p.metrics}
	}
	switch kind {
	case "catalog":
		return NewSQSHandler(newPool(p.config.Queues.Catalog, p.Catalog, p.config.Pools.Catalog.Timeout)), nil
	case "mailer":
		pool := newPool(p.config.Queues.Mailer, p.Router, p.config.Pools.Mailer.Timeout)
		pool.BestEffort = true
		return NewSQSHandler(pool), nil
	case "metadata-sqs":
		return NewSQSHandler(newPool(p.config.Queues.Metadata, p.Metadata, p.config.Pools.Metadata.Timeout)), nil
	case "metadata":
		return p.SNSMetadataHandler, nil
	default:
		return nil, fmt.Errorf("unknown handler: %q", kind)
	}
}
