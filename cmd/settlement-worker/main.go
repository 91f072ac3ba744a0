package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedcfg "github.com/aicolabsdev/aicolabs/internal/shared/config"
	"github.com/aicolabsdev/aicolabs/internal/shared/db"
	"github.com/aicolabsdev/aicolabs/internal/shared/kafka"
	"github.com/aicolabsdev/aicolabs/internal/shared/logger"
	"github.com/aicolabsdev/aicolabs/internal/shared/metrics"
	ev "github.com/aicolabsdev/aicolabs/pkg/contracts/events"
)

// Reputação ganha por aposta vencedora creditada
const reputationPerWin = 5

func main() {
	cfg := sharedcfg.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres para crédito de ganhos e reputação dos agentes
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: eventos market_resolved
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMarketResolved, "settlement-worker")
	defer reader.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicMarketResolvedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketResolvedDLQ)
		defer dlqWriter.Close()
	}

	// Métricas Prometheus do worker
	consumed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_events_consumed_total", Help: "eventos market_resolved consumidos"})
	credited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_payouts_credited_total", Help: "payouts creditados a agentes"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, credited, errorsBy)

	// Servidor HTTP para métricas e healthcheck
	metrics.StartMetricsServer(cfg.MetricsPort,
		func(ctx context.Context) error { return pg.PingContext(ctx) },
	)
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	log.Info("settlement-worker started", zap.String("consume", cfg.TopicMarketResolved))

	ctx := context.Background()

	// Loop principal: consome market_resolved e credita os vencedores
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			errorsBy.WithLabelValues("read").Inc()
			time.Sleep(time.Second)
			continue
		}
		consumed.Inc()

		var resolved ev.MarketResolved
		if jerr := json.Unmarshal(msg.Value, &resolved); jerr != nil {
			log.Error("unmarshal market_resolved", zap.Error(jerr))
			errorsBy.WithLabelValues("decode").Inc()
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, string(msg.Key), msg.Value)
			}
			continue
		}

		n, err := processOne(ctx, log, pg, &resolved)
		if err != nil {
			log.Error("process settlement", zap.String("marketId", resolved.MarketID), zap.Error(err))
			errorsBy.WithLabelValues("credit").Inc()
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, resolved.MarketID, msg.Value)
			}
			// Backoff simples para evitar flood em caso de erro
			time.Sleep(500 * time.Millisecond)
			continue
		}
		credited.Add(float64(n))
		log.Info("market settled",
			zap.String("marketId", resolved.MarketID),
			zap.String("outcome", resolved.Outcome),
			zap.Int("payoutsCredited", n),
		)
	}
}

// processOne credita os payouts de um mercado resolvido.
// Entrega do Kafka é at-least-once: a tabela settlement_credits marca cada
// aposta já creditada e torna o processamento idempotente.
func processOne(ctx context.Context, log *zap.Logger, pg *sql.DB, resolved *ev.MarketResolved) (int, error) {
	credited := 0
	for _, st := range resolved.Settlements {
		if st.PayoutCents <= 0 {
			continue
		}
		ok, err := creditPayout(ctx, pg, resolved.MarketID, st)
		if err != nil {
			return credited, err
		}
		if !ok {
			log.Debug("payout already credited", zap.String("betId", st.BetID))
			continue
		}
		credited++
	}
	return credited, nil
}

// creditPayout aplica um payout na mesma transação da marca de idempotência.
// Retorna false quando a aposta já tinha sido creditada antes.
func creditPayout(ctx context.Context, pg *sql.DB, marketID string, st ev.SettlementEntry) (bool, error) {
	tx, err := pg.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO settlement_credits (bet_id, market_id, agent_id, payout_cents, created_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT (bet_id) DO NOTHING`,
		st.BetID, marketID, st.AgentID, st.PayoutCents)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil // já creditado
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE agents
		SET total_earnings_cents = total_earnings_cents + $1,
		    reputation_score = reputation_score + $2
		WHERE id=$3`,
		st.PayoutCents, reputationPerWin, st.AgentID); err != nil {
		return false, err
	}

	return true, tx.Commit()
}
