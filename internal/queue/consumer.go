package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// StartSecurityEventConsumer connects to RabbitMQ, declares the
// durable security.events queue and appends each message to
// logs/security.log in a single-line format. It runs a reconnect loop
// with exponential backoff until the context is cancelled; processing
// errors reject the offending message without requeueing so the
// server keeps operating.
func StartSecurityEventConsumer(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			logrus.WithError(err).Warnf("security-consumer: dial failed; retrying in %s", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(ctx, conn); err != nil {
			logrus.WithError(err).Warn("security-consumer: consume loop ended; reconnecting")
			_ = conn.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logrus.WithError(err).Warn("security-consumer: set QoS failed")
	}

	if _, err := ch.QueueDeclare(securityQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(securityQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(d.Body); err != nil {
				logrus.WithError(err).Warn("security-consumer: handle message failed")
				_ = d.Nack(false, false) // do not requeue, avoids tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(body []byte) error {
	var ev SecurityEventMessage
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "security.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	actor := "-"
	if ev.ActorID != nil {
		actor = *ev.ActorID
	}
	detail := ""
	if ev.Detail != nil {
		detail = *ev.Detail
	}
	line := fmt.Sprintf("[%s] %s | actor=%s/%s | status=%s | %s\n",
		ev.CreatedAt, ev.EventType, ev.ActorType, actor, ev.Status, detail)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
