// Package queue is the at-least-once transport the pipeline's workers drain:
// SQS in production and an in-process equivalent for local runs and tests.
package queue

import (
	"context"
	"time"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("imagepipe.queue")

type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	Attributes    map[string]string
	// ReceiveCount is the number of times the message has been handed out,
	// this delivery included.
	ReceiveCount int
}

type Queue interface {
	Name() string
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	// Delete acknowledges a received message.
	Delete(ctx context.Context, msg Message) error
	// Release returns a received message to the queue for redelivery.
	Release(ctx context.Context, msg Message) error
	Send(ctx context.Context, body string, attrs map[string]string) error
}

// Topic fans a message out to every subscriber.
type Topic interface {
	Publish(ctx context.Context, message string, attrs map[string]string) error
}
