package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultVisibilityTimeout = 30 * time.Second

type memoryEntry struct {
	msg          Message
	invisibleTil time.Time
	receipt      string
}

// MemoryQueue is an in-process Queue with SQS-like visibility semantics: a
// received message stays hidden until it is deleted, released, or its
// visibility timeout passes.
type MemoryQueue struct {
	name       string
	visibility time.Duration
	mu         sync.Mutex
	entries    []*memoryEntry
	notify     chan struct{}
	now        func() time.Time
}

func NewMemoryQueue(name string, visibility time.Duration) *MemoryQueue {
	if visibility <= 0 {
		visibility = defaultVisibilityTimeout
	}
	return &MemoryQueue{
		name:       name,
		visibility: visibility,
		notify:     make(chan struct{}, 1),
		now:        time.Now,
	}
}

func (q *MemoryQueue) Name() string {
	return q.name
}

func (q *MemoryQueue) Send(ctx context.Context, body string, attrs map[string]string) error {
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	q.mu.Lock()
	q.entries = append(q.entries, &memoryEntry{msg: Message{
		ID:         uuid.New().String(),
		Body:       body,
		Attributes: copied,
	}})
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if max <= 0 {
		max = maxSQSBatch
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		if msgs := q.take(max); len(msgs) > 0 {
			return msgs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.notify:
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (q *MemoryQueue) take(max int) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	var msgs []Message
	for _, e := range q.entries {
		if len(msgs) == max {
			break
		}
		if now.Before(e.invisibleTil) {
			continue
		}
		e.msg.ReceiveCount++
		e.receipt = uuid.New().String()
		e.invisibleTil = now.Add(q.visibility)
		msg := e.msg
		msg.ReceiptHandle = e.receipt
		msgs = append(msgs, msg)
	}
	return msgs
}

// find returns the index of the entry currently held under msg's receipt.
func (q *MemoryQueue) find(msg Message) int {
	for i, e := range q.entries {
		if e.msg.ID == msg.ID && e.receipt == msg.ReceiptHandle {
			return i
		}
	}
	return -1
}

func (q *MemoryQueue) Delete(ctx context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := q.find(msg); i >= 0 {
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
	}
	return nil
}

func (q *MemoryQueue) Release(ctx context.Context, msg Message) error {
	q.mu.Lock()
	if i := q.find(msg); i >= 0 {
		q.entries[i].invisibleTil = time.Time{}
	}
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of messages not yet deleted, visible or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Messages returns a snapshot of the queued messages.
func (q *MemoryQueue) Messages() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	msgs := make([]Message, 0, len(q.entries))
	for _, e := range q.entries {
		msgs = append(msgs, e.msg)
	}
	return msgs
}
