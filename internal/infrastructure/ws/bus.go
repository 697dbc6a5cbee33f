package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"walletcore.backend/pkg/logger"
)

const channelPrefix = "notifications:"

// Envelope is the frame clients receive: the event name plus its payload.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Bus carries user events between processes over redis pub/sub.
type Bus struct {
	client *goredis.Client
}

func NewBus(client *goredis.Client) *Bus {
	return &Bus{client: client}
}

// Channel is the pub/sub channel of one user.
func Channel(userID uuid.UUID) string {
	return channelPrefix + userID.String()
}

// Publish sends event to every process subscribed for userID.
func (b *Bus) Publish(ctx context.Context, userID uuid.UUID, event string, data interface{}) error {
	raw, err := json.Marshal(Envelope{Type: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	return b.client.Publish(ctx, Channel(userID), raw).Err()
}

// Subscribe delivers every user event to fn until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, fn func(userID uuid.UUID, payload []byte)) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, channelPrefix))
			if err != nil {
				logger.Warn(ctx, "ignoring message on unexpected channel", zap.String("channel", msg.Channel))
				continue
			}
			fn(userID, []byte(msg.Payload))
		}
	}
}
