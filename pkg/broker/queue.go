// Package broker implements the Workflow Broker (C7): durable queues and a
// background dispatcher that move a template through
// created -> validated -> deployed -> result. The pub/sub primitives
// (Envelope, topic-style delivery, filtered subscription) are adapted
// directly from the teacher's pkg/messaging (Envelope/Topic/Subscription,
// service_test.go / topic_test.go / subscription_test.go); what the
// teacher's messaging package does not need — because it is fire-and-forget
// telemetry fan-out — is durability and redelivery, which this package adds
// on top in Queue: messages stay pending until a handler explicitly
// Completes or Abandons them, and an abandoned message is redelivered
// (spec §4.7: "Handlers complete the message on success and abandon on
// exception so the broker will redeliver (at-least-once)").
package broker

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Envelope is one message moving through a queue, carrying an arbitrary
// JSON-shaped body (mirroring the teacher's messaging.Envelope, which wraps
// a MessageKind + value).
type Envelope struct {
	ID        string
	Queue     string
	Body      map[string]any
	Attempt   int
	EnqueuedAt time.Time
}

// NewEnvelope builds an Envelope with a fresh id.
func NewEnvelope(queue string, body map[string]any) *Envelope {
	return &Envelope{ID: uuid.NewString(), Queue: queue, Body: body, EnqueuedAt: time.Now()}
}

// maxRedeliveries caps how many times an abandoned message is redelivered
// before it is moved to the dead letter list, so a handler that always
// errors cannot spin the dispatcher forever.
const maxRedeliveries = 5

// Queue is one durable, named channel of Envelopes. Multiple workers may
// subscribe to the same queue (spec §5: "Multiple workers for the same
// queue are permitted").
type Queue struct {
	name string
	mu   sync.Mutex

	ch         chan *Envelope
	deadLetter []*Envelope
	replayLog  []*Envelope // every message ever enqueued, for audit/idempotence checks
}

// NewQueue creates an empty, durable queue named name with the given
// buffer capacity.
func NewQueue(name string, capacity int) *Queue {
	return &Queue{name: name, ch: make(chan *Envelope, capacity)}
}

// Name returns the queue's name.
func (q *Queue) Name() string { return q.name }

// Publish enqueues msg for delivery.
func (q *Queue) Publish(msg *Envelope) {
	q.mu.Lock()
	q.replayLog = append(q.replayLog, msg)
	q.mu.Unlock()
	q.ch <- msg
}

// receive blocks for the next envelope, or returns ok=false if the queue's
// channel is closed and drained.
func (q *Queue) receive() (*Envelope, bool) {
	msg, ok := <-q.ch
	return msg, ok
}

// complete marks a message successfully processed; it is simply dropped
// (the store already reflects the terminal entity state by the time a
// handler calls Complete).
func (q *Queue) complete(msg *Envelope) {}

// abandon redelivers msg, unless it has exhausted maxRedeliveries, in which
// case it is moved to the dead-letter list and dropped.
func (q *Queue) abandon(msg *Envelope) {
	msg.Attempt++
	if msg.Attempt > maxRedeliveries {
		q.mu.Lock()
		q.deadLetter = append(q.deadLetter, msg)
		q.mu.Unlock()
		return
	}
	q.ch <- msg
}

// DeadLetters returns the messages that exhausted their redelivery budget.
func (q *Queue) DeadLetters() []*Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Envelope, len(q.deadLetter))
	copy(out, q.deadLetter)
	return out
}

// Close stops accepting new deliveries to existing subscribers; in-flight
// messages already pulled from the channel continue processing.
func (q *Queue) Close() { close(q.ch) }
