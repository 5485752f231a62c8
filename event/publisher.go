// Package event broadcasts cart changes over NATS.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gofalre.io/marketplace/models"
	"gofalre.io/marketplace/models/enum"
)

// SubjectPrefix is prepended to the event type, e.g. "cart.event.added".
const SubjectPrefix = "cart.event"

// Message is the payload published for every cart change.
type Message struct {
	ID        string             `json:"id"`
	Type      enum.CartEventType `json:"type"`
	ProductID string             `json:"product_id,omitempty"`
	Products  []models.Product   `json:"products"`
	Version   uint64             `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
}

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

type Publisher struct {
	conn   Conn
	logger *zap.Logger
}

func NewPublisher(conn Conn, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

func Subject(eventType enum.CartEventType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

func (p *Publisher) Publish(event models.CartEvent) error {
	msg := Message{
		ID:        uuid.NewString(),
		Type:      event.Type,
		ProductID: event.ProductID,
		Products:  event.Products,
		Version:   event.Version,
		CreatedAt: event.CreatedAt,
	}
	if msg.Products == nil {
		msg.Products = []models.Product{}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal cart event: %w", err)
	}

	if err = p.conn.Publish(Subject(event.Type), data); err != nil {
		return fmt.Errorf("failed to publish cart event: %w", err)
	}
	return nil
}

// Handle publishes event and logs failures. It has the signature expected by
// cart.Store.Subscribe.
func (p *Publisher) Handle(event models.CartEvent) {
	if err := p.Publish(event); err != nil {
		p.logger.Error("Failed to publish cart event",
			zap.Error(err),
			zap.String("event_type", event.Type.String()),
			zap.Uint64("version", event.Version))
	}
}

// Connect dials NATS and logs connection state changes.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return nats.Connect(url,
		nats.Name("gomarketplace-cart"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
}

// Watch subscribes to every cart event and passes decoded messages to fn.
// Messages that fail to decode are logged and dropped.
func Watch(conn *nats.Conn, logger *zap.Logger, fn func(Message)) (*nats.Subscription, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return conn.Subscribe(SubjectPrefix+".>", func(m *nats.Msg) {
		msg, err := Decode(m.Data)
		if err != nil {
			logger.Error("Failed to unmarshal cart event", zap.Error(err), zap.String("subject", m.Subject))
			return
		}
		fn(msg)
	})
}

func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
