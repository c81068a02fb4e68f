package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/santokhan/authkit"
	"github.com/segmentio/kafka-go"
)

// LinkEvent is the payload KafkaPublisher writes.
type LinkEvent struct {
	Type      Kind      `json:"type"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name,omitempty"`
	Channel   string    `json:"channel"`
	Address   string    `json:"address"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaPublisher hands links to a notification service over Kafka.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

var _ authkit.Delivery = (*KafkaPublisher)(nil)

func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	batch := cfg.BatchTimeout
	if batch <= 0 {
		batch = 10 * time.Millisecond
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batch,
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaPublisher(w, cfg.Topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &KafkaPublisher{writer: w, topic: topic, logger: logger, now: time.Now}
}

func (p *KafkaPublisher) SendResetLink(ctx context.Context, to authkit.Recipient, link string) error {
	return p.publish(ctx, KindPasswordReset, to, link)
}

func (p *KafkaPublisher) SendVerificationLink(ctx context.Context, to authkit.Recipient, link string) error {
	return p.publish(ctx, KindEmailVerification, to, link)
}

func (p *KafkaPublisher) publish(ctx context.Context, kind Kind, to authkit.Recipient, link string) error {
	data, err := json.Marshal(LinkEvent{
		Type:      kind,
		AccountID: to.AccountID,
		Name:      to.Name,
		Channel:   string(to.Channel),
		Address:   to.Address,
		Link:      link,
		CreatedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal link event: %w", err)
	}

	// Keyed by account so events for one account stay ordered.
	msg := kafka.Message{
		Key:   []byte(to.AccountID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(kind)},
			{Key: "channel", Value: []byte(to.Channel)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "link event publish failed",
			slog.String("topic", p.topic),
			slog.String("event_type", string(kind)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish %s to %s: %w", kind, p.topic, err)
	}
	p.logger.DebugContext(ctx, "link event published",
		slog.String("topic", p.topic),
		slog.String("event_type", string(kind)),
		slog.String("account_id", to.AccountID),
	)
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
