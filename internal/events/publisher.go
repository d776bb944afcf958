package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cashflow_events_published_total",
	Help: "Integration events published, labeled by outcome",
}, []string{"outcome"})

// Publisher emits integration events to the durable topic exchange with
// persistent delivery. Publish attempts are wrapped in the shared retry
// policy; a dropped connection is re-dialed inside the retry loop.
type Publisher struct {
	url   string
	retry RetryPolicy
	log   zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string, log zerolog.Logger) (*Publisher, error) {
	p := &Publisher{url: url, retry: NewRetryPolicy(log), log: log}
	if err := p.connect(); err != nil {
		return nil, err
	}
	log.Info().Str("exchange", ExchangeName).Msg("event publisher connected")
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("broker dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("channel open failed: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("exchange declare failed: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// PublishTransactionCreated serializes and emits the event, routed by event
// type name. After retry exhaustion the failure propagates to the caller;
// per the ingestion contract the caller only logs it.
func (p *Publisher) PublishTransactionCreated(ctx context.Context, evt TransactionCreated) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("event serialization failed: %w", err)
	}

	err = p.retry.Do(ctx, "publish "+EventNameTransactionCreated, func() error {
		return p.publish(ctx, EventNameTransactionCreated, evt.EventID.String(), body)
	})
	if err != nil {
		eventsPublished.WithLabelValues("error").Inc()
		return err
	}

	eventsPublished.WithLabelValues("ok").Inc()
	p.log.Info().
		Str("eventId", evt.EventID.String()).
		Str("transactionId", evt.TransactionID.String()).
		Msg("integration event published")
	return nil
}

func (p *Publisher) publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}

	return p.ch.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
