package hub

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
)

const redisChannelPrefix = "vitals:updates:"

// RedisBridge mirrors hub traffic across instances over redis pub/sub.
// Forward publishes a local envelope outward; RunRelay injects remote
// envelopes into the local hub. Enabled only when a redis address is
// configured, the in-process hub works the same without it.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
}

func NewRedisBridge(client *redis.Client, h *Hub) *RedisBridge {
	return &RedisBridge{client: client, hub: h}
}

func redisChannelFor(deviceID string) string {
	return redisChannelPrefix + deviceID
}

func (b *RedisBridge) Forward(ctx context.Context, deviceID string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, redisChannelFor(deviceID), payload).Err()
}

// RunRelay blocks until ctx is cancelled, republishing every remote
// envelope into the local hub. Malformed messages are logged and
// skipped.
func (b *RedisBridge) RunRelay(ctx context.Context) error {
	logger := common.GetLoggerWith(common.LoggerNameBroadcastHub)

	pubsub := b.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer pubsub.Close()

	// Wait for the subscription to be established before reporting ready.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			deviceID := strings.TrimPrefix(msg.Channel, redisChannelPrefix)

			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("Dropping malformed relayed envelope",
					zap.String("channel", msg.Channel),
					zap.Error(err))
				continue
			}

			b.hub.Publish(deviceID, env)
		}
	}
}
