package invalidation

import (
	"context"
	"encoding/json"
	"fmt"

	"learnlink-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const Topic = "cache.invalidate"

// Message asks every holder of a user's data to drop it. Keys are removed
// from the cache store and Sections of the user's open View are reloaded.
type Message struct {
	UserID   string   `json:"user_id"`
	View     string   `json:"view"`
	Keys     []string `json:"keys,omitempty"`
	Sections []string `json:"sections,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

type Handler func(ctx context.Context, msg Message) error

// Bus is the in-process invalidation channel.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger logger.ILogger
}

func NewBus(log logger.ILogger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		NewLoggerAdapter(log),
	)
	return &Bus{pubSub: pubSub, logger: log}
}

func (b *Bus) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode invalidation: %w", err)
	}

	wm := message.NewMessage(watermill.NewUUID(), payload)
	wm.SetContext(ctx)
	if err := b.pubSub.Publish(Topic, wm); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Subscribe runs handler for every message until ctx ends. Messages are
// always acked; a failed handler is logged, not retried, since the cache
// entries it targets expire on their own.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := b.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		return err
	}

	go func() {
		for wm := range messages {
			b.process(ctx, wm, handler)
		}
	}()
	return nil
}

func (b *Bus) process(ctx context.Context, wm *message.Message, handler Handler) {
	defer wm.Ack()

	var msg Message
	if err := json.Unmarshal(wm.Payload, &msg); err != nil {
		b.logger.Error("INVALIDATION", "Failed to decode message", map[string]interface{}{
			"message_id": wm.UUID,
			"error":      err.Error(),
		})
		return
	}

	if err := handler(ctx, msg); err != nil {
		b.logger.Warn("INVALIDATION", "Handler failed", map[string]interface{}{
			"user_id": msg.UserID,
			"view":    msg.View,
			"error":   err.Error(),
		})
	}
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
