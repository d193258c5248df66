package rabbit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
)

var ErrConnectorClosed = errors.New("rabbitmq connector closed")

// ChannelOpener hands out fresh channels. Both *amqp091.Connection and
// *Connector satisfy it.
type ChannelOpener interface {
	Channel() (*amqp091.Channel, error)
}

// Connector owns the broker connection and redials it when a channel is
// requested after the broker dropped it.
type Connector struct {
	url    string
	mu     sync.Mutex
	conn   *amqp091.Connection
	closed bool
}

func Dial(url string) (*Connector, error) {
	c := &Connector{url: url}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dialLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connector) dialLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	c.conn = conn
	return nil
}

func (c *Connector) Channel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnectorClosed
	}
	if c.conn == nil || c.conn.IsClosed() {
		if err := c.dialLocked(); err != nil {
			return nil, err
		}
	}
	return c.conn.Channel()
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}
