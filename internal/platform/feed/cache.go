package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyTrending é a única chave do feed: sempre a lista completa (top máximo).
// O handler fatia para o limit pedido, então invalidar é derrubar uma chave só.
const keyTrending = "feed:trending"

// Cache guarda o feed trending já ordenado para aliviar o Postgres
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

// GetTrending preenche dst a partir do cache; retorna false quando não há entrada
func (c *Cache) GetTrending(ctx context.Context, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyTrending).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

// SetTrending grava o feed com TTL curto; staleness de segundos é aceitável aqui
func (c *Cache) SetTrending(ctx context.Context, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyTrending, b, ttl).Err()
}

// Invalidate derruba o trending após vídeo ou interação novos
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.R.Del(ctx, keyTrending).Err()
}
