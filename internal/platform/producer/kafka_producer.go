package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/aicolabsdev/aicolabs/pkg/contracts/events"
)

// KafkaPublisher publica os eventos de domínio do ledger de mercados
type KafkaPublisher struct {
	BetWriter      *kafka.Writer
	ResolvedWriter *kafka.Writer
}

func NewKafkaPublisher(betWriter, resolvedWriter *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{BetWriter: betWriter, ResolvedWriter: resolvedWriter}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.BetWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.MarketID), Value: b})
}

func (p *KafkaPublisher) PublishMarketResolved(ctx context.Context, e events.MarketResolved) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.ResolvedWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.MarketID), Value: b})
}
