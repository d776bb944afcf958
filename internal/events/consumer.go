package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cashflow_events_consumed_total",
	Help: "Integration events consumed, labeled by outcome",
}, []string{"outcome"})

const (
	defaultPrefetch  = 10
	reconnectBackoff = 10 * time.Second
)

// Processor handles a deserialized integration event. Errors trigger the
// per-message retry policy; exhaustion drops the message.
type Processor interface {
	ProcessTransactionCreated(ctx context.Context, evt TransactionCreated) error
}

// Consumer is the long-running subscriber driving consolidation updates.
// Concurrency is bounded by the prefetch window: the broker holds back
// further deliveries until in-flight messages are acked or rejected.
type Consumer struct {
	url       string
	processor Processor
	retry     RetryPolicy
	prefetch  int
	log       zerolog.Logger
}

func NewConsumer(url string, processor Processor, log zerolog.Logger) *Consumer {
	return &Consumer{
		url:       url,
		processor: processor,
		retry:     NewRetryPolicy(log),
		prefetch:  defaultPrefetch,
		log:       log,
	}
}

// Run consumes until ctx is cancelled, reconnecting with backoff after
// connection failures. In-flight handlers finish before each return.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			c.log.Info().Msg("consumer stopping")
			return nil
		}
		c.log.Error().Err(err).Dur("backoff", reconnectBackoff).Msg("consumer connection lost, reconnecting")

		select {
		case <-time.After(reconnectBackoff):
		case <-ctx.Done():
			c.log.Info().Msg("consumer stopping")
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(QueueName, EventNameTransactionCreated, ExchangeName, false, nil); err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.log.Info().Str("queue", QueueName).Int("prefetch", c.prefetch).Msg("consumer started")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				c.handle(ctx, d)
			}(d)
		}
	}
}

// handle processes one delivery: deserialize, run the processor under the
// retry policy, then ack. Poison messages and retry exhaustion are rejected
// without requeue; there is no dead-letter queue, so the drop is logged and
// counted. Cancellation mid-flight is not exhaustion: the message is
// requeued for redelivery.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var evt TransactionCreated
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		c.log.Error().Err(err).Str("messageId", d.MessageId).Msg("dropping undecodable event")
		eventsConsumed.WithLabelValues("poison").Inc()
		d.Nack(false, false)
		return
	}

	err := c.retry.Do(ctx, "process "+EventNameTransactionCreated, func() error {
		return c.processor.ProcessTransactionCreated(ctx, evt)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Shutdown interrupted the handler; the event is not exhausted,
			// so hand it back to the broker for redelivery.
			c.log.Info().
				Str("eventId", evt.EventID.String()).
				Msg("requeueing in-flight event after cancellation")
			eventsConsumed.WithLabelValues("requeued").Inc()
			d.Nack(false, true)
			return
		}
		c.log.Error().
			Err(err).
			Str("eventId", evt.EventID.String()).
			Str("transactionId", evt.TransactionID.String()).
			Msg("dropping event after retry exhaustion")
		eventsConsumed.WithLabelValues("error").Inc()
		d.Nack(false, false)
		return
	}

	eventsConsumed.WithLabelValues("ok").Inc()
	d.Ack(false)
}
