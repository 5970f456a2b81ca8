package mailbox

import (
	"encoding/json"
	"fmt"
	"time"

	nc "github.com/nats-io/nats.go"
)

// Subject returns the fanout subject for a worker's mailbox within a
// team, e.g. "mailbox.demo.worker-1".
func Subject(teamName, workerName string) string {
	return fmt.Sprintf("mailbox.%s.%s", teamName, workerName)
}

// AllSubject returns the wildcard subject matching every worker in a
// team, e.g. "mailbox.demo.*".
func AllSubject(teamName string) string {
	return fmt.Sprintf("mailbox.%s.*", teamName)
}

// Client wraps a NATS connection for publishing and subscribing to
// mailbox fanout subjects. It is optional: Store already persists every
// message to disk regardless of whether a Client is in use.
type Client struct {
	conn *nc.Conn
}

// NewClient connects to the embedded mailbox server at url.
func NewClient(url string) (*Client, error) {
	conn, err := nc.Connect(url,
		nc.ReconnectWait(2*time.Second),
		nc.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to mailbox server: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// PublishMessage publishes msg to its recipient's subject.
func (c *Client) PublishMessage(teamName string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mailbox message: %w", err)
	}
	if err := c.conn.Publish(Subject(teamName, msg.To), data); err != nil {
		return fmt.Errorf("publish to %s: %w", Subject(teamName, msg.To), err)
	}
	return nil
}

// Subscribe delivers every message published for workerName (or every
// worker, if workerName is "*") to handler.
func (c *Client) Subscribe(teamName, workerName string, handler func(Message)) (*nc.Subscription, error) {
	subject := Subject(teamName, workerName)
	if workerName == "*" {
		subject = AllSubject(teamName)
	}
	sub, err := c.conn.Subscribe(subject, func(m *nc.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err == nil {
			handler(msg)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// IsConnected reports whether the client holds a live connection.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
