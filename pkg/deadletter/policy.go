// Package deadletter decides what happens to a message whose processing
// failed: retry it or park it for manual inspection.
package deadletter

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/in4it/imagepipe/pkg/queue"
	"github.com/juju/loggo"
)

const (
	DefaultMaxReceives = 3

	ReasonAttribute       = "dead_letter_reason"
	SourceAttribute       = "dead_letter_source"
	ReceiveCountAttribute = "receive_count"
)

var logger = loggo.GetLogger("imagepipe.deadletter")

type Action int

const (
	Ack Action = iota
	Retry
	DeadLetter
)

func (a Action) String() string {
	switch a {
	case Ack:
		return "ack"
	case Retry:
		return "retry"
	default:
		return "dead_letter"
	}
}

type dropError struct {
	err error
}

func (d dropError) Error() string { return d.err.Error() }
func (d dropError) Unwrap() error { return d.err }

// Drop marks err as not worth retrying: the message is acknowledged.
func Drop(err error) error {
	if err == nil {
		return nil
	}
	return dropError{err: err}
}

func IsDrop(err error) bool {
	var d dropError
	return errors.As(err, &d)
}

type Policy struct {
	MaxReceives int
}

func (p Policy) maxReceives() int {
	if p.MaxReceives <= 0 {
		return DefaultMaxReceives
	}
	return p.MaxReceives
}

func (p Policy) Decide(msg queue.Message, err error) Action {
	switch {
	case err == nil, IsDrop(err):
		return Ack
	case msg.ReceiveCount >= p.maxReceives():
		return DeadLetter
	default:
		return Retry
	}
}

type Parker interface {
	Park(ctx context.Context, msg queue.Message, reason error) error
}

// QueueParker moves messages to a dead-letter queue, keeping the body and
// attributes and recording why and from where they were parked.
type QueueParker struct {
	Source string
	DLQ    queue.Queue
}

func (p QueueParker) Park(ctx context.Context, msg queue.Message, reason error) error {
	attrs := make(map[string]string, len(msg.Attributes)+3)
	for k, v := range msg.Attributes {
		attrs[k] = v
	}
	if reason != nil {
		attrs[ReasonAttribute] = reason.Error()
	}
	attrs[SourceAttribute] = p.Source
	attrs[ReceiveCountAttribute] = strconv.Itoa(msg.ReceiveCount)
	if err := p.DLQ.Send(ctx, msg.Body, attrs); err != nil {
		return fmt.Errorf("park %s: %w", msg.ID, err)
	}
	logger.Warningf("Parked message %s from %s after %d receives: %v", msg.ID, p.Source, msg.ReceiveCount, reason)
	return nil
}
