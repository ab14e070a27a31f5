package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const exchange = "ledger_events"

// Publisher is the event surface services publish to.
type Publisher interface {
	TaskCompleted(ctx context.Context, accountID, taskID, claimID uuid.UUID, rewardCents int64)
	ReferralAwarded(ctx context.Context, referrerID, referredUserID uuid.UUID, amountCents int64)
	WithdrawalStateChanged(ctx context.Context, requestID, accountID uuid.UUID, status string, amountCents int64)
	Close()
}

var (
	_ Publisher = (*Producer)(nil)
	_ Publisher = (*NoopProducer)(nil)
)

// amqpChannel is the slice of *amqp091.Channel the producer publishes on.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Producer publishes domain events to a durable topic exchange. Events are
// emitted after the owning transaction commits; a publish failure is logged
// and swallowed so a broker outage never fails a committed operation.
// Producer is safe for concurrent use: the channel is guarded by a mutex
// because channels die on any AMQP error and get replaced in flight.
type Producer struct {
	conn   *amqp091.Connection
	logger *slog.Logger

	mu      sync.Mutex
	channel amqpChannel
	reopen  func() (amqpChannel, error)
}

func NewProducer(amqpURL string, logger *slog.Logger) (*Producer, error) {
	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Producer{
		conn:    conn,
		logger:  logger,
		channel: ch,
		reopen:  func() (amqpChannel, error) { return conn.Channel() },
	}, nil
}

func (p *Producer) Close() {
	p.mu.Lock()
	if p.channel != nil {
		p.channel.Close()
	}
	p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *Producer) publish(ctx context.Context, routingKey string, body any) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		p.logger.Error("event marshal failed", "routing_key", routingKey, "error", err)
		return
	}
	msg := amqp091.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        jsonBody,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
	if err == nil {
		return
	}
	p.logger.Warn("event publish failed, reopening channel", "routing_key", routingKey, "error", err)
	// Reopen the channel once; the old one is dead after any AMQP error.
	ch, err := p.reopen()
	if err != nil {
		p.logger.Error("channel reopen failed, event dropped", "routing_key", routingKey, "error", err)
		return
	}
	p.channel = ch
	if err := p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		p.logger.Error("event publish retry failed, event dropped", "routing_key", routingKey, "error", err)
	}
}

func (p *Producer) TaskCompleted(ctx context.Context, accountID, taskID, claimID uuid.UUID, rewardCents int64) {
	p.publish(ctx, "task.completed", map[string]any{
		"account_id":   accountID,
		"task_id":      taskID,
		"claim_id":     claimID,
		"reward_cents": rewardCents,
		"occurred_at":  time.Now().UTC(),
	})
}

func (p *Producer) ReferralAwarded(ctx context.Context, referrerID, referredUserID uuid.UUID, amountCents int64) {
	p.publish(ctx, "referral.awarded", map[string]any{
		"referrer_id":      referrerID,
		"referred_user_id": referredUserID,
		"amount_cents":     amountCents,
		"occurred_at":      time.Now().UTC(),
	})
}

func (p *Producer) WithdrawalStateChanged(ctx context.Context, requestID, accountID uuid.UUID, status string, amountCents int64) {
	p.publish(ctx, "withdrawal."+status, map[string]any{
		"request_id":   requestID,
		"account_id":   accountID,
		"status":       status,
		"amount_cents": amountCents,
		"occurred_at":  time.Now().UTC(),
	})
}

// NoopProducer stands in when the broker is unavailable at startup.
type NoopProducer struct {
	logger *slog.Logger
}

func NewNoopProducer(logger *slog.Logger) *NoopProducer {
	return &NoopProducer{logger: logger}
}

func (p *NoopProducer) Close() {}

func (p *NoopProducer) TaskCompleted(ctx context.Context, accountID, taskID, claimID uuid.UUID, rewardCents int64) {
	p.logger.Debug("event skipped, no broker", "routing_key", "task.completed")
}

func (p *NoopProducer) ReferralAwarded(ctx context.Context, referrerID, referredUserID uuid.UUID, amountCents int64) {
	p.logger.Debug("event skipped, no broker", "routing_key", "referral.awarded")
}

func (p *NoopProducer) WithdrawalStateChanged(ctx context.Context, requestID, accountID uuid.UUID, status string, amountCents int64) {
	p.logger.Debug("event skipped, no broker", "routing_key", "withdrawal."+status)
}
