package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartRedisSubscriber escuta o canal Pub/Sub configurado e repassa as
// atualizações recebidas para os clientes WebSocket inscritos via Hub.
// Permite rodar múltiplas réplicas do platform-service com um único broadcast.
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, hub *Hub, channel string) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var upd MarketUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
					log.Warn("ws subscriber unmarshal", zap.Error(err))
					continue
				}
				hub.Broadcast(upd)
			}
		}
	}()
}
