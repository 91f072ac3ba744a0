package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aicolabsdev/aicolabs/internal/market"
)

// Postgres é o sistema de registro do ledger de mercados de previsão.
// Toda mutação roda em transação com lock de linha (FOR UPDATE) no mercado,
// serializando escritores concorrentes por mercado sem bloquear mercados
// não relacionados.
type Postgres struct {
	db       *sql.DB
	minStake int64
}

// NewPostgres retorna o repositório do ledger; minStake vem da configuração
func NewPostgres(db *sql.DB, minStake int64) *Postgres {
	return &Postgres{db: db, minStake: minStake}
}

// Create abre um novo mercado com pools zerados
func (p *Postgres) Create(ctx context.Context, videoID, question string, endTime time.Time) (market.Market, error) {
	m := market.Market{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		Question:  question,
		EndTime:   endTime,
		State:     market.StateOpen,
		CreatedAt: time.Now(),
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO markets (id, video_id, question, end_time, total_pool_cents, yes_pool_cents, no_pool_cents, state, created_at)
		VALUES ($1,$2,$3,$4,0,0,0,$5,$6)`,
		m.ID, m.VideoID, m.Question, m.EndTime, m.State, m.CreatedAt,
	)
	if err != nil {
		return market.Market{}, err
	}
	return m, nil
}

// Get retorna o snapshot de um mercado
func (p *Postgres) Get(ctx context.Context, id string) (market.Market, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, video_id, question, end_time, total_pool_cents, yes_pool_cents, no_pool_cents, state, outcome, created_at, resolved_at
		FROM markets WHERE id=$1`, id)
	return scanMarket(row)
}

// List retorna todos os mercados, mais recentes primeiro
func (p *Postgres) List(ctx context.Context) ([]market.Market, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, video_id, question, end_time, total_pool_cents, yes_pool_cents, no_pool_cents, state, outcome, created_at, resolved_at
		FROM markets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListBets retorna as apostas de um mercado em ordem de colocação
func (p *Postgres) ListBets(ctx context.Context, marketID string) ([]market.Bet, error) {
	return p.listBets(ctx, p.db, marketID)
}

// ListSettlements retorna os payouts gravados na resolução do mercado
func (p *Postgres) ListSettlements(ctx context.Context, marketID string) ([]market.Settlement, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT bet_id, agent_id, payout_cents, resolved_at
		FROM settlements WHERE market_id=$1 ORDER BY bet_id`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Settlement
	for rows.Next() {
		var s market.Settlement
		if err := rows.Scan(&s.BetID, &s.AgentID, &s.PayoutCents, &s.ResolvedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PlaceBet valida e acumula uma aposta, persistindo aposta + novos totais
// do mercado numa única transação. Estado parcial é inalcançável.
func (p *Postgres) PlaceBet(ctx context.Context, marketID, agentID string, side market.Side, amount int64, now time.Time) (market.Bet, market.Market, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return market.Bet{}, market.Market{}, err
	}
	defer tx.Rollback()

	m, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return market.Bet{}, market.Market{}, err
	}

	bet, err := market.ApplyStake(&m, agentID, side, amount, now, p.minStake)
	if err != nil {
		return market.Bet{}, market.Market{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO bets (id, market_id, agent_id, amount_cents, side, placed_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		bet.ID, bet.MarketID, bet.AgentID, bet.AmountCents, bet.Side, bet.PlacedAt,
	); err != nil {
		return market.Bet{}, market.Market{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE markets SET total_pool_cents=$1, yes_pool_cents=$2, no_pool_cents=$3 WHERE id=$4`,
		m.TotalPoolCents, m.YesPoolCents, m.NoPoolCents, m.ID,
	); err != nil {
		return market.Bet{}, market.Market{}, err
	}

	if err = tx.Commit(); err != nil {
		return market.Bet{}, market.Market{}, err
	}
	return bet, m, nil
}

// Resolve declara o desfecho e grava a transição de estado junto com todos
// os settlements na mesma transação: nunca existe mercado resolvido sem
// payouts gravados, nem o contrário. Exactly-once garantido pelo lock de
// linha + checagem de estado dentro da transação.
func (p *Postgres) Resolve(ctx context.Context, marketID string, outcome market.Side, now time.Time) (market.Market, []market.Settlement, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return market.Market{}, nil, err
	}
	defer tx.Rollback()

	m, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return market.Market{}, nil, err
	}

	if err := market.CheckResolvable(&m, now); err != nil {
		return market.Market{}, nil, err
	}

	bets, err := p.listBets(ctx, tx, marketID)
	if err != nil {
		return market.Market{}, nil, err
	}

	settlements, err := market.Settle(&m, bets, outcome, now)
	if err != nil {
		return market.Market{}, nil, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE markets SET state=$1, outcome=$2, resolved_at=$3 WHERE id=$4`,
		m.State, m.Outcome, m.ResolvedAt, m.ID,
	); err != nil {
		return market.Market{}, nil, err
	}

	for _, s := range settlements {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO settlements (bet_id, market_id, agent_id, payout_cents, resolved_at)
			VALUES ($1,$2,$3,$4,$5)`,
			s.BetID, m.ID, s.AgentID, s.PayoutCents, s.ResolvedAt,
		); err != nil {
			return market.Market{}, nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return market.Market{}, nil, err
	}
	return m, settlements, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (p *Postgres) listBets(ctx context.Context, q querier, marketID string) ([]market.Bet, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, market_id, agent_id, amount_cents, side, placed_at
		FROM bets WHERE market_id=$1 ORDER BY placed_at, id`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Bet
	for rows.Next() {
		var b market.Bet
		if err := rows.Scan(&b.ID, &b.MarketID, &b.AgentID, &b.AmountCents, &b.Side, &b.PlacedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// lockMarket carrega o mercado segurando o lock da linha até o commit
func lockMarket(ctx context.Context, tx *sql.Tx, id string) (market.Market, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, video_id, question, end_time, total_pool_cents, yes_pool_cents, no_pool_cents, state, outcome, created_at, resolved_at
		FROM markets WHERE id=$1 FOR UPDATE`, id)
	return scanMarket(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarket(row rowScanner) (market.Market, error) {
	var m market.Market
	var outcome sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&m.ID, &m.VideoID, &m.Question, &m.EndTime,
		&m.TotalPoolCents, &m.YesPoolCents, &m.NoPoolCents,
		&m.State, &outcome, &m.CreatedAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Market{}, market.ErrMarketNotFound
	}
	if err != nil {
		return market.Market{}, err
	}
	if outcome.Valid {
		m.Outcome = market.Side(outcome.String)
	}
	if resolvedAt.Valid {
		m.ResolvedAt = resolvedAt.Time
	}
	return m, nil
}
