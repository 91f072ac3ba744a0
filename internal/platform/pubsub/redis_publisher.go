package pubsub

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publica atualizações de mercado no canal Pub/Sub
// configurado (config.RedisPubSubChannel); o subscriber do hub WS escuta
// o mesmo canal.
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, payload []byte) error {
	return b.r.Publish(ctx, b.channel, payload).Err()
}

// Payload padrão para o WS da plataforma
type WSUpdate struct {
	MarketID string      `json:"marketId"`
	Payload  interface{} `json:"payload"`
}
