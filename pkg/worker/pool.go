// Package worker drains a queue with a pool of batch workers, acknowledging
// each message individually.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/in4it/imagepipe/pkg/deadletter"
	"github.com/in4it/imagepipe/pkg/metrics"
	"github.com/in4it/imagepipe/pkg/queue"
	"github.com/juju/loggo"
)

const (
	DefaultBatchSize = 5
	DefaultWaitTime  = 10 * time.Second
	DefaultTimeout   = 15 * time.Second

	maxBackoff = 30 * time.Second
)

var logger = loggo.GetLogger("imagepipe.worker")

type Handler interface {
	HandleMessage(ctx context.Context, msg queue.Message) error
}

type HandlerFunc func(ctx context.Context, msg queue.Message) error

func (f HandlerFunc) HandleMessage(ctx context.Context, msg queue.Message) error {
	return f(ctx, msg)
}

type Pool struct {
	Name      string
	Queue     queue.Queue
	Handler   Handler
	Workers   int
	BatchSize int
	WaitTime  time.Duration
	// Timeout is the budget for handling one message. A message that exceeds
	// it is returned to the queue.
	Timeout time.Duration
	Policy  deadletter.Policy
	// Parker receives messages the policy gives up on. Without one, those
	// messages are released and left to the queue's own redrive policy.
	Parker deadletter.Parker
	// BestEffort acknowledges every handled message whatever the outcome,
	// timeouts included. Failures are logged and never redelivered.
	BestEffort bool
	Metrics    *metrics.Metrics
}

func (p *Pool) batchSize() int {
	if p.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return p.BatchSize
}

func (p *Pool) waitTime() time.Duration {
	if p.WaitTime <= 0 {
		return DefaultWaitTime
	}
	return p.WaitTime
}

func (p *Pool) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

// Run blocks until ctx is cancelled and all workers have stopped.
func (p *Pool) Run(ctx context.Context) {
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	logger.Infof("Starting %d workers for %s", workers, p.Name)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}
	wg.Wait()
	logger.Infof("Workers for %s stopped", p.Name)
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	backoff := time.Second
	for ctx.Err() == nil {
		msgs, err := p.Queue.Receive(ctx, p.batchSize(), p.waitTime())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("%s worker %d: %s (retrying in %s)", p.Name, id, err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		p.ProcessBatch(ctx, msgs)
	}
}

// ProcessBatch handles msgs one after the other and settles each one with the
// queue. It returns the IDs of the messages left on the queue for redelivery.
// Once ctx is cancelled, failed and unprocessed messages go back to the queue
// untouched by the policy.
func (p *Pool) ProcessBatch(ctx context.Context, msgs []queue.Message) []string {
	var failed []string
	settleCtx := context.WithoutCancel(ctx)
	for i, msg := range msgs {
		if ctx.Err() != nil {
			for _, rest := range msgs[i:] {
				p.release(settleCtx, rest)
				failed = append(failed, rest.ID)
			}
			return failed
		}
		err := p.Handle(ctx, msg)
		if err != nil && ctx.Err() != nil {
			logger.Infof("%s: shutting down, returning message %s", p.Name, msg.ID)
			p.Metrics.Message(p.Name, deadletter.Retry.String())
			p.release(settleCtx, msg)
			failed = append(failed, msg.ID)
			continue
		}
		if !p.settle(settleCtx, msg, p.Decide(msg, err), err) {
			failed = append(failed, msg.ID)
		}
	}
	return failed
}

// Decide applies the pool's policy to the outcome of handling msg.
func (p *Pool) Decide(msg queue.Message, err error) deadletter.Action {
	if err != nil && p.BestEffort {
		logger.Warningf("%s: message %s failed, not retrying: %s", p.Name, msg.ID, err)
		return deadletter.Ack
	}
	return p.Policy.Decide(msg, err)
}

// settle applies the policy decision and reports whether the message left the
// queue, either acknowledged or parked.
func (p *Pool) settle(ctx context.Context, msg queue.Message, action deadletter.Action, err error) bool {
	p.Metrics.Message(p.Name, action.String())
	switch action {
	case deadletter.Ack:
		if err != nil {
			logger.Debugf("%s: dropping message %s: %s", p.Name, msg.ID, err)
		}
		if delErr := p.Queue.Delete(ctx, msg); delErr != nil {
			logger.Errorf("%s: %s", p.Name, delErr)
			return false
		}
		return true
	case deadletter.Retry:
		logger.Warningf("%s: message %s failed (receive %d): %s", p.Name, msg.ID, msg.ReceiveCount, err)
		p.release(ctx, msg)
		return false
	default:
		if p.Parker == nil {
			logger.Errorf("%s: message %s exhausted its receives: %s", p.Name, msg.ID, err)
			p.release(ctx, msg)
			return false
		}
		if parkErr := p.Parker.Park(ctx, msg, err); parkErr != nil {
			logger.Errorf("%s: %s", p.Name, parkErr)
			p.release(ctx, msg)
			return false
		}
		if delErr := p.Queue.Delete(ctx, msg); delErr != nil {
			logger.Errorf("%s: %s", p.Name, delErr)
			return false
		}
		return true
	}
}

func (p *Pool) release(ctx context.Context, msg queue.Message) {
	if err := p.Queue.Release(ctx, msg); err != nil {
		logger.Errorf("%s: %s", p.Name, err)
	}
}

// Handle runs the handler for a single message within the pool's timeout.
// Panics and timeouts are reported as errors.
func (p *Pool) Handle(ctx context.Context, msg queue.Message) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	start := time.Now()
	defer func() { p.Metrics.ObserveHandler(p.Name, time.Since(start)) }()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("handler panic: %v", r)
			}
		}()
		done <- p.Handler.HandleMessage(ctx, msg)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("message %s: %w", msg.ID, ctx.Err())
	}
}
