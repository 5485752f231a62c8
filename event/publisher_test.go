package event_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofalre.io/marketplace/event"
	"gofalre.io/marketplace/models"
	"gofalre.io/marketplace/models/enum"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject: subject, data: data})
	return nil
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "cart.event.added", event.Subject(enum.CartEventTypeAdded))
	assert.Equal(t, "cart.event.removed", event.Subject(enum.CartEventTypeRemoved))
}

func TestPublisher_Publish(t *testing.T) {
	conn := &fakeConn{}
	p := event.NewPublisher(conn, nil)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := p.Publish(models.CartEvent{
		Type:      enum.CartEventTypeIncremented,
		ProductID: "a",
		Products:  []models.Product{{ID: "a", Title: "A", Price: models.NewPrice(10), Quantity: 2}},
		Version:   7,
		CreatedAt: at,
	})
	require.NoError(t, err)
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "cart.event.incremented", conn.msgs[0].subject)

	msg, err := event.Decode(conn.msgs[0].data)
	require.NoError(t, err)
	_, err = uuid.Parse(msg.ID)
	assert.NoError(t, err, "message id should be a uuid")
	assert.Equal(t, enum.CartEventTypeIncremented, msg.Type)
	assert.Equal(t, "a", msg.ProductID)
	assert.Equal(t, uint64(7), msg.Version)
	assert.True(t, at.Equal(msg.CreatedAt))
	require.Len(t, msg.Products, 1)
	assert.Equal(t, 2, msg.Products[0].Quantity)
	assert.True(t, msg.Products[0].Price.Equal(models.NewPrice(10).Decimal))
}

func TestPublisher_EmptyCartEncodesArray(t *testing.T) {
	conn := &fakeConn{}
	p := event.NewPublisher(conn, nil)

	require.NoError(t, p.Publish(models.CartEvent{Type: enum.CartEventTypeLoaded}))
	require.Len(t, conn.msgs, 1)
	assert.Contains(t, string(conn.msgs[0].data), `"products":[]`)
	assert.NotContains(t, string(conn.msgs[0].data), `"product_id"`)
}

func TestPublisher_Errors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := event.NewPublisher(conn, nil)

	err := p.Publish(models.CartEvent{Type: enum.CartEventTypeAdded, ProductID: "a"})
	assert.ErrorIs(t, err, conn.err)

	assert.NotPanics(t, func() {
		p.Handle(models.CartEvent{Type: enum.CartEventTypeAdded, ProductID: "a"})
	})
}

func TestDecode_Invalid(t *testing.T) {
	_, err := event.Decode([]byte(`{"type":`))
	assert.Error(t, err)
}
