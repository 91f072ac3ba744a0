package market

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ApplyStake valida e acumula uma aposta no snapshot do mercado.
// Lógica pura: quem chama (repo) é responsável por lock e atomicidade.
// Ordem das pré-condições: estado aberto, prazo, aposta mínima.
func ApplyStake(m *Market, agentID string, side Side, amount int64, now time.Time, minStake int64) (Bet, error) {
	if m.Resolved() {
		return Bet{}, ErrMarketResolved
	}
	if now.After(m.EndTime) {
		return Bet{}, ErrMarketExpired
	}
	if amount < minStake {
		return Bet{}, ErrStakeTooSmall
	}
	if side != SideYes && side != SideNo {
		return Bet{}, ErrInvalidSide
	}
	if amount > math.MaxInt64-m.TotalPoolCents {
		return Bet{}, fmt.Errorf("%w: pool overflow on market %s", ErrInvariantViolation, m.ID)
	}

	bet := Bet{
		ID:          uuid.NewString(),
		MarketID:    m.ID,
		AgentID:     agentID,
		AmountCents: amount,
		Side:        side,
		PlacedAt:    now,
	}

	m.TotalPoolCents += amount
	if side == SideYes {
		m.YesPoolCents += amount
	} else {
		m.NoPoolCents += amount
	}

	if m.YesPoolCents+m.NoPoolCents != m.TotalPoolCents {
		return Bet{}, fmt.Errorf("%w: pool mismatch after stake on market %s", ErrInvariantViolation, m.ID)
	}

	return bet, nil
}

// CheckResolvable verifica se o mercado pode transicionar para resolved.
// Resolução antecipada é proibida: só a partir do EndTime.
func CheckResolvable(m *Market, now time.Time) error {
	if m.Resolved() {
		return ErrMarketResolved
	}
	if now.Before(m.EndTime) {
		return ErrNotYetEligible
	}
	return nil
}

// Settle calcula os payouts de todas as apostas e aplica a transição
// open -> resolved no snapshot. Invocado somente pelo caminho de resolução,
// depois de CheckResolvable; daqui em diante qualquer falha é violação de
// invariante, não erro de usuário.
//
// Cada aposta vencedora recebe floor(amount * P / W); perdedoras recebem 0.
// Com W == 0 ninguém acertou e o pool inteiro fica retido pela plataforma.
// O resíduo de arredondamento (< W centavos) também fica retido, garantindo
// sum(payouts) <= P sempre.
func Settle(m *Market, bets []Bet, outcome Side, now time.Time) ([]Settlement, error) {
	if m.Resolved() {
		return nil, fmt.Errorf("%w: settle on resolved market %s", ErrInvariantViolation, m.ID)
	}

	pool := m.TotalPoolCents

	var winning int64
	for _, b := range bets {
		if b.Side == outcome {
			winning += b.AmountCents
		}
	}

	// O pool do lado vencedor registrado no mercado tem que bater com a soma das apostas
	recorded := m.NoPoolCents
	if outcome == SideYes {
		recorded = m.YesPoolCents
	}
	if winning != recorded {
		return nil, fmt.Errorf("%w: winning pool %d != recorded %d on market %s",
			ErrInvariantViolation, winning, recorded, m.ID)
	}

	settlements := make([]Settlement, 0, len(bets))
	var paid int64
	for _, b := range bets {
		var payout int64
		if winning > 0 && b.Side == outcome {
			if b.AmountCents != 0 && pool > math.MaxInt64/b.AmountCents {
				return nil, fmt.Errorf("%w: payout overflow on bet %s", ErrInvariantViolation, b.ID)
			}
			payout = b.AmountCents * pool / winning
		}
		paid += payout
		settlements = append(settlements, Settlement{
			BetID:       b.ID,
			AgentID:     b.AgentID,
			PayoutCents: payout,
			ResolvedAt:  now,
		})
	}

	if paid > pool {
		return nil, fmt.Errorf("%w: payouts %d exceed pool %d on market %s",
			ErrInvariantViolation, paid, pool, m.ID)
	}

	m.State = StateResolved
	m.Outcome = outcome
	m.ResolvedAt = now

	return settlements, nil
}
