package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"drawza/internal/core/domain"
	"drawza/internal/protocol"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const relayChannel = "drawza:relay:events"

// Event is one room envelope crossing instance boundaries.
type Event struct {
	InstanceID string            `json:"instanceId"`
	RoomID     domain.RoomID     `json:"roomId"`
	Timestamp  time.Time         `json:"timestamp"`
	Envelope   protocol.Envelope `json:"envelope"`
}

// EventBus bridges room fanout between relay instances over redis
// pub/sub. Each instance publishes the events it relayed locally and
// delivers events published elsewhere to its own members of the room.
// Events carry the publishing instance ID so an instance never replays
// its own traffic.
type EventBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
}

func NewEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Publish sends a room envelope to every other relay instance.
func (b *EventBus) Publish(ctx context.Context, roomID domain.RoomID, env protocol.Envelope) error {
	event := Event{
		InstanceID: b.instanceID,
		RoomID:     roomID,
		Timestamp:  time.Now(),
		Envelope:   env,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal relay event: %w", err)
	}
	if err := b.client.Publish(ctx, relayChannel, data).Err(); err != nil {
		return fmt.Errorf("publish relay event: %w", err)
	}
	return nil
}

// Subscribe blocks delivering remote envelopes to handler until ctx is
// cancelled. Events published by this instance are skipped.
func (b *EventBus) Subscribe(ctx context.Context, handler func(roomID domain.RoomID, env protocol.Envelope)) error {
	if b.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	b.pubsub = b.client.Subscribe(ctx, relayChannel)
	defer b.pubsub.Close()

	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warnw("dropped undecodable relay event", "error", err)
				continue
			}
			if event.InstanceID == b.instanceID {
				continue
			}
			handler(event.RoomID, event.Envelope)
		}
	}
}

// Close terminates the subscription if one is active.
func (b *EventBus) Close() error {
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}
