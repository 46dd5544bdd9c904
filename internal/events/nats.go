package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// streamPublisher is the part of jetstream.JetStream the broker uses.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NatsBroker publishes to a JetStream stream with server acknowledgement.
type NatsBroker struct {
	conn *nats.Conn
	js   streamPublisher
	now  func() time.Time
}

var _ Publisher = (*NatsBroker)(nil)

// NewNatsBroker connects and makes sure the SOCIAL stream exists.
func NewNatsBroker(ctx context.Context, url string) (*NatsBroker, error) {
	nc, err := nats.Connect(url, nats.Name("social-graph"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage,
		Replicas: 1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &NatsBroker{conn: nc, js: js, now: time.Now}, nil
}

func (n *NatsBroker) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(Envelope{
		Subject:    subject,
		OccurredAt: n.now().UTC(),
		Data:       payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := n.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages before closing the connection.
func (n *NatsBroker) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
