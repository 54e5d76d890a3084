package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/praekelt/helpdesk/pkg/logger"
)

// AMQP publishes events to a durable topic exchange, routed by event type.
type AMQP struct {
	conn     *amqp.Connection
	exchange string
}

func NewAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", exchange, err)
	}
	logger.Info("amqp_publisher_ready", "exchange", exchange)
	return &AMQP{conn: conn, exchange: exchange}, nil
}

func amqpMessage(ev Event) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.Time,
		Type:         ev.Type,
		Body:         body,
	}, nil
}

func (a *AMQP) Publish(ctx context.Context, ev Event) error {
	msg, err := amqpMessage(ev)
	if err != nil {
		return err
	}
	ch, err := a.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.PublishWithContext(ctx, a.exchange, ev.Type, false, false, msg)
}

func (a *AMQP) Close() error {
	return a.conn.Close()
}
