package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

// conn is the subset of *nats.Conn used for publishing.
type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
	Close()
}

var natsConnect = func(url string, opts ...nats.Option) (conn, error) {
	return nats.Connect(url, opts...)
}

// NATSPublisher publishes JSON encoded events on "<prefix>.<type>".
type NATSPublisher struct {
	conn   conn
	prefix string

	// Flush makes Publish wait until the server has processed the message.
	Flush bool
}

func NewNATSPublisher(url, prefix string, opts ...nats.Option) (*NATSPublisher, error) {
	if prefix == "" {
		prefix = "filepool"
	}
	opts = append([]nats.Option{
		nats.Name("filepool"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}, opts...)

	nc, err := natsConnect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc, prefix: prefix}, nil
}

// Subject returns the subject an event of type t is published on.
func (p *NATSPublisher) Subject(t Type) string {
	return p.prefix + "." + string(t)
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if p == nil {
		return errors.New("nil publisher")
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.Subject(e.Type), data); err != nil {
		return err
	}
	if p.Flush {
		return p.conn.FlushWithContext(ctx)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
