package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nearyou/nearsync/internal/core/domain"
)

// Subjects for engine events. Plain core NATS: events are ephemeral
// broadcast for UI banners and ops tooling, nothing replays them.
const (
	subjectState        = "nearyou.engine.state"
	subjectPosition     = "nearyou.engine.position"
	subjectNotification = "nearyou.engine.notification"
)

// Publisher implements ports.EventPublisher over NATS.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to NATS.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

func (p *Publisher) PublishStateChange(ctx context.Context, from, to domain.ConnState) error {
	return p.publish(subjectState, map[string]string{
		"from": from.String(),
		"to":   to.String(),
	})
}

func (p *Publisher) PublishPositionUpdate(ctx context.Context, u domain.PositionUpdate) error {
	return p.publish(subjectPosition, u)
}

func (p *Publisher) PublishNotification(ctx context.Context, n domain.Notification) error {
	return p.publish(subjectNotification, n)
}

func (p *Publisher) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
