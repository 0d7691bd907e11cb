package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"naver-estate/models"
)

const (
	listingEventType    = "NaverListingEvent"
	listingEventVersion = "1.0.0"
)

// ListingEvent is the message body published for every cleaned listing.
type ListingEvent struct {
	RunID     string          `json:"run_id"`
	Source    string          `json:"source"`
	Listing   *models.Listing `json:"listing"`
	Published time.Time       `json:"published_at"`
}

// AMQPPublisher fans cleaned listings out to a RabbitMQ topic exchange so
// downstream services can consume a crawl without reading the CSV.
type AMQPPublisher struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

// NewAMQPPublisher dials the broker and declares a durable topic exchange.
func NewAMQPPublisher(url, exchange, routingKey string) (*AMQPPublisher, error) {
	if exchange == "" || routingKey == "" {
		return nil, fmt.Errorf("amqp: exchange and routing key are required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: declare exchange %q: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, routingKey: routingKey}, nil
}

// Write publishes one persistent message per listing.
func (p *AMQPPublisher) Write(ctx context.Context, runID string, listings []*models.Listing) error {
	for _, l := range listings {
		msg, err := buildListingMessage(runID, l, time.Now())
		if err != nil {
			return err
		}

		publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = p.ch.PublishWithContext(publishCtx, p.exchange, p.routingKey, false, false, msg)
		cancel()
		if err != nil {
			return fmt.Errorf("amqp: publish %s: %w", l.ArticleNo, err)
		}
	}
	return nil
}

func buildListingMessage(runID string, l *models.Listing, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(ListingEvent{
		RunID:     runID,
		Source:    "naver-land",
		Listing:   l,
		Published: now.UTC(),
	})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("amqp: marshal listing %s: %w", l.ArticleNo, err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		MessageId:    l.ArticleNo,
		Headers: amqp.Table{
			"event-type":    listingEventType,
			"event-version": listingEventVersion,
			"x-run-id":      runID,
		},
	}, nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return fmt.Errorf("amqp: close channel: %w", err)
	}
	return p.conn.Close()
}
