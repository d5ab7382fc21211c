package audithook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultRoutingPrefix prefixes the action in every routing key.
const DefaultRoutingPrefix = "batterybank."

// Publisher is the subset of *amqp.Channel used by AMQPRecorder.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPRecorder publishes audit events as persistent JSON messages. The
// routing key is the prefix followed by the event action, for example
// "batterybank.energy.stored".
type AMQPRecorder struct {
	ch       Publisher
	exchange string
	prefix   string
	now      func() time.Time
}

// NewAMQPRecorder returns a Recorder that publishes to exchange through ch.
// An empty exchange publishes through the default exchange, in which case
// the routing key must name a queue.
func NewAMQPRecorder(ch Publisher, exchange string) *AMQPRecorder {
	return &AMQPRecorder{
		ch:       ch,
		exchange: exchange,
		prefix:   DefaultRoutingPrefix,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithRoutingPrefix replaces DefaultRoutingPrefix.
func (r *AMQPRecorder) WithRoutingPrefix(prefix string) *AMQPRecorder {
	r.prefix = prefix
	return r
}

// Record implements Recorder.
func (r *AMQPRecorder) Record(ctx context.Context, event *AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit_hook: marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    r.now(),
		Type:         event.Action,
		Body:         body,
	}
	if err := r.ch.PublishWithContext(ctx, r.exchange, r.prefix+event.Action, false, false, pub); err != nil {
		return fmt.Errorf("audit_hook: publish %s: %w", event.Action, err)
	}
	return nil
}
