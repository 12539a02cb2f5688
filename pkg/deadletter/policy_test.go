package deadletter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/in4it/imagepipe/pkg/queue"
)

func TestDecide(t *testing.T) {
	boom := errors.New("boom")
	p := Policy{MaxReceives: 3}
	tests := []struct {
		name  string
		count int
		err   error
		want  Action
	}{
		{"success", 1, nil, Ack},
		{"first failure", 1, boom, Retry},
		{"second failure", 2, boom, Retry},
		{"exhausted", 3, boom, DeadLetter},
		{"past bound", 7, boom, DeadLetter},
		{"dropped", 1, Drop(boom), Ack},
	}
	for _, tt := range tests {
		got := p.Decide(queue.Message{ReceiveCount: tt.count}, tt.err)
		if got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestDecideDefaultBound(t *testing.T) {
	var p Policy
	if got := p.Decide(queue.Message{ReceiveCount: DefaultMaxReceives}, errors.New("x")); got != DeadLetter {
		t.Errorf("zero policy should dead-letter at %d receives, got %s", DefaultMaxReceives, got)
	}
}

func TestQueueParker(t *testing.T) {
	ctx := context.Background()
	dlq := queue.NewMemoryQueue("deadLetterQueue", time.Minute)
	p := QueueParker{Source: "img-created-queue", DLQ: dlq}
	msg := queue.Message{ID: "m-1", Body: "payload", Attributes: map[string]string{"k": "v"}, ReceiveCount: 3}
	if err := p.Park(ctx, msg, errors.New("unsupported image type: pdf")); err != nil {
		t.Fatalf("Park error: %s", err)
	}
	parked := dlq.Messages()
	if len(parked) != 1 {
		t.Fatalf("expected 1 parked message, got %d", len(parked))
	}
	got := parked[0]
	if got.Body != "payload" || got.Attributes["k"] != "v" {
		t.Errorf("body or attributes lost: %+v", got)
	}
	if got.Attributes[ReasonAttribute] != "unsupported image type: pdf" || got.Attributes[SourceAttribute] != "img-created-queue" || got.Attributes[ReceiveCountAttribute] != "3" {
		t.Errorf("missing dead letter attributes: %+v", got.Attributes)
	}
}
