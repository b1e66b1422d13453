package queue

import (
	"context"
	"fmt"
)

// Producer appends messages to one queue's pending list.
type Producer struct {
	client Client
	keys   keys
}

func NewProducer(client Client, prefix string) *Producer {
	return &Producer{client: client, keys: keysFor(prefix)}
}

// PublishMessage wraps payload in a Message and pushes it. A
// json.RawMessage payload is stored as is.
func (p *Producer) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	b, err := newMessage(msgType, payload)
	if err != nil {
		return err
	}
	if err := p.client.LPush(ctx, p.keys.pending, b).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", p.keys.pending, err)
	}
	return nil
}

var _ Publisher = (*Producer)(nil)
