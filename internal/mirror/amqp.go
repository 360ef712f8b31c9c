package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"weride/internal/types"
)

const defaultExchange = "ride_topic"

// AMQP publishes snapshots to a topic exchange with routing key ride.<status>.
type AMQP struct {
	url      string
	exchange string
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
}

func NewAMQP(url, exchange string) (*AMQP, error) {
	if exchange == "" {
		exchange = defaultExchange
	}
	a := &AMQP{url: url, exchange: exchange}
	if err := a.connect(); err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	return a, nil
}

func (a *AMQP) connect() error {
	conn, err := amqp.Dial(a.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(a.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return err
	}
	a.conn, a.ch = conn, ch
	return nil
}

func (a *AMQP) Publish(ctx context.Context, rideID types.ID, s Snapshot) error {
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil || a.conn.IsClosed() || a.ch == nil || a.ch.IsClosed() {
		if err := a.connect(); err != nil {
			return fmt.Errorf("reconnect rabbitmq: %w", err)
		}
	}
	err = a.ch.PublishWithContext(ctx, a.exchange, "ride."+string(s.Status), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    string(rideID),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish ride %s: %w", rideID, err)
	}
	return nil
}

func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	if a.ch != nil && !a.ch.IsClosed() {
		errs = append(errs, a.ch.Close())
	}
	if a.conn != nil && !a.conn.IsClosed() {
		errs = append(errs, a.conn.Close())
	}
	return errors.Join(errs...)
}
