package session

import (
	"context"
	"encoding/json"
	"fmt"

	"reportforms/internal/redis"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const invalidateChannel = "invalidate"

const (
	ScopeSession = "session"
	ScopeApp     = "app"
)

type Invalidation struct {
	Session string `json:"session"`
	App     string `json:"app,omitempty"`
	Scope   string `json:"scope"`
	Origin  string `json:"origin"`
}

// Invalidator broadcasts state resets between service instances over redis
// pub/sub, so an instance never serves a gallery cleared elsewhere.
type Invalidator struct {
	client   *redis.Client
	instance string
	logger   *zap.Logger
}

func NewInvalidator(client *redis.Client, logger *zap.Logger) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{client: client, instance: uuid.NewString(), logger: logger}
}

func (i *Invalidator) Publish(ctx context.Context, msg Invalidation) error {
	msg.Origin = i.instance
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	if err := i.client.Publish(ctx, invalidateChannel, payload); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Listen delivers invalidations from other instances until ctx ends.
func (i *Invalidator) Listen(ctx context.Context, handler func(Invalidation)) error {
	pubsub, err := i.client.Subscribe(ctx, invalidateChannel)
	if err != nil {
		return err
	}
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var inv Invalidation
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				i.logger.Warn("invalidation decode failed", zap.Error(err))
				continue
			}
			if inv.Origin == i.instance {
				continue
			}
			handler(inv)
		}
	}
}
