package broker

import (
	"context"
	"log"
	"sync"
)

// Handler processes one Envelope. Returning nil completes the message;
// returning an error abandons it for redelivery (spec §4.7). Handlers must
// be idempotent (spec §8 P6): replaying the same message must yield the
// same terminal entity state.
type Handler func(ctx context.Context, env *Envelope) error

// Broker owns the named queues of spec §4.7 and the worker goroutines that
// drain them. The goroutine-per-worker lifecycle (start on Subscribe, join
// on Close) is grounded on the teacher's pkg/async.Task[T] Run/Await pair
// (task_test.go), generalized here to a pool of N uniform workers per queue
// rather than one result-producing task, since queue workers run
// indefinitely and report outcome per-message rather than once.
type Broker struct {
	mu     sync.Mutex
	queues map[string]*Queue
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds an empty Broker with the four queues of spec §4.7
// pre-declared, plus whatever capacity is given.
func New(capacity int) *Broker {
	b := &Broker{queues: make(map[string]*Queue)}
	for _, name := range []string{
		QueueResourceDiscovery, QueueTemplateCreated, QueueTemplateValidation,
		QueueTemplateDeployment, QueueTemplateDeploymentResult,
	} {
		b.queues[name] = NewQueue(name, capacity)
	}
	return b
}

// Queue names, per spec §4.7's table.
const (
	QueueResourceDiscovery         = "resource-discovery"
	QueueTemplateCreated           = "template-created"
	QueueTemplateValidation        = "template-validation"
	QueueTemplateDeployment        = "template-deployment"
	QueueTemplateDeploymentResult  = "template-deployment-result"
)

// Publish enqueues a message built from body onto the named queue.
func (b *Broker) Publish(queueName string, body map[string]any) {
	b.mu.Lock()
	q, ok := b.queues[queueName]
	b.mu.Unlock()
	if !ok {
		return
	}
	q.Publish(NewEnvelope(queueName, body))
}

// Subscribe starts workerCount goroutines draining queueName, each calling
// handler per message and completing/abandoning it based on the returned
// error (spec §5: "Multiple workers for the same queue are permitted").
func (b *Broker) Subscribe(ctx context.Context, queueName string, workerCount int, handler Handler) {
	b.mu.Lock()
	q, ok := b.queues[queueName]
	b.mu.Unlock()
	if !ok {
		return
	}
	if workerCount < 1 {
		workerCount = 1
	}

	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.runWorker(ctx, q, handler)
		}()
	}
}

func (b *Broker) runWorker(ctx context.Context, q *Queue, handler Handler) {
	for {
		msg, ok := q.receive()
		if !ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := handler(ctx, msg); err != nil {
			log.Printf("broker: handler for queue %s failed (attempt %d): %v", q.Name(), msg.Attempt+1, err)
			q.abandon(msg)
			continue
		}
		q.complete(msg)
	}
}

// Close stops accepting new deliveries on every queue and waits for
// in-flight handlers to drain.
func (b *Broker) Close() {
	b.mu.Lock()
	queues := make([]*Queue, 0, len(b.queues))
	for _, q := range b.queues {
		queues = append(queues, q)
	}
	b.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
	b.wg.Wait()
}

// DeadLetters returns the dead-lettered messages of one queue, for
// diagnostics.
func (b *Broker) DeadLetters(queueName string) []*Envelope {
	b.mu.Lock()
	q, ok := b.queues[queueName]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return q.DeadLetters()
}
