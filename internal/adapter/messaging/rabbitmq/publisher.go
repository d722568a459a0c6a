// Package rabbitmq delivers outbound notifications through a RabbitMQ topic
// exchange. A mail worker consuming the exchange performs the actual send.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nithin1018/Village-Banking-App/config"
	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	defaultExchange   = "notifications"
	defaultRoutingKey = "notification.email"

	// HeaderSignature carries the hex HMAC-SHA256 of the message body.
	HeaderSignature = "x-signature"
)

// Channel is the subset of *amqp091.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// emailMessage is the payload consumed by the mail worker.
type emailMessage struct {
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Sealed    bool      `json:"sealed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MailPublisher implements ports.MailSender by publishing one message per notification.
type MailPublisher struct {
	conn       *amqp091.Connection
	ch         Channel
	mu         sync.Mutex
	exchange   string
	routingKey string
	sealer     ports.MessageSealer
	signer     ports.MessageSigner
	log        zerolog.Logger
}

// Option configures a MailPublisher.
type Option func(*MailPublisher)

// WithSealer encrypts every body before it reaches the broker.
func WithSealer(s ports.MessageSealer) Option {
	return func(p *MailPublisher) { p.sealer = s }
}

// WithSigner attaches an HMAC of the payload in the x-signature header.
func WithSigner(s ports.MessageSigner) Option {
	return func(p *MailPublisher) { p.signer = s }
}

// Dial connects to the broker at cfg.URL and declares the exchange.
func Dial(cfg config.RabbitMQConfig, log zerolog.Logger, opts ...Option) (*MailPublisher, error) {
	cleanURL, err := sanitizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	p, err := NewMailPublisher(ch, cfg.Exchange, cfg.RoutingKey, log, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn

	log.Info().
		Str("exchange", p.exchange).
		Str("routing_key", p.routingKey).
		Bool("sealed", p.sealer != nil).
		Bool("signed", p.signer != nil).
		Msg("RabbitMQ publisher ready")
	return p, nil
}

// NewMailPublisher wraps an open channel and declares a durable topic exchange on it.
func NewMailPublisher(ch Channel, exchange, routingKey string, log zerolog.Logger, opts ...Option) (*MailPublisher, error) {
	if exchange == "" {
		exchange = defaultExchange
	}
	if routingKey == "" {
		routingKey = defaultRoutingKey
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := &MailPublisher{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		log:        log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Send publishes n as a persistent JSON message.
func (p *MailPublisher) Send(ctx context.Context, n domain.Notification) error {
	msgBody := emailMessage{
		Recipient: n.Recipient,
		Subject:   n.Subject,
		Body:      n.Body,
		CreatedAt: n.CreatedAt,
	}
	if p.sealer != nil {
		sealed, err := p.sealer.Seal(n.Body, n.Recipient)
		if err != nil {
			return fmt.Errorf("seal notification: %w", err)
		}
		msgBody.Body, msgBody.Sealed = sealed, true
	}

	body, err := json.Marshal(msgBody)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if p.signer != nil {
		msg.Headers = amqp091.Table{HeaderSignature: p.signer.Sign(body)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close releases the channel and, when dialled, the connection.
func (p *MailPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse rabbitmq url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("rabbitmq url scheme must be amqp:// or amqps://")
	}
	return clean, nil
}

// LogSender implements ports.MailSender for deployments without a broker. It
// records that a message would have gone out but never logs the body, which
// may carry a one-time code.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the recipient and subject.
func (s *LogSender) Send(ctx context.Context, n domain.Notification) error {
	s.log.Info().
		Str("recipient", n.Recipient).
		Str("subject", n.Subject).
		Msg("notification delivery skipped: no broker configured")
	return nil
}
