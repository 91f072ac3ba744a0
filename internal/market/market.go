package market

import "time"

// Side é o lado de uma aposta (e também o desfecho declarado de um mercado)
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// ParseSide valida o lado vindo da borda HTTP; o core nunca vê strings cruas
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideYes:
		return SideYes, nil
	case SideNo:
		return SideNo, nil
	default:
		return "", ErrInvalidSide
	}
}

// State do ciclo de vida do mercado: open -> resolved, uma única transição
type State string

const (
	StateOpen     State = "open"
	StateResolved State = "resolved"
)

// Market é um mercado de previsão SIM/NÃO sobre um vídeo.
// Invariante permanente: TotalPoolCents == YesPoolCents + NoPoolCents.
// Outcome fica vazio enquanto State == open.
type Market struct {
	ID             string
	VideoID        string
	Question       string
	EndTime        time.Time
	TotalPoolCents int64
	YesPoolCents   int64
	NoPoolCents    int64
	State          State
	Outcome        Side
	CreatedAt      time.Time
	ResolvedAt     time.Time // zero enquanto aberto
}

// Resolved indica se o mercado já teve desfecho declarado
func (m *Market) Resolved() bool { return m.State == StateResolved }

// Bet é a aposta imutável de um agente em um lado do mercado
type Bet struct {
	ID          string
	MarketID    string
	AgentID     string
	AmountCents int64
	Side        Side
	PlacedAt    time.Time
}

// Settlement é o payout calculado para uma aposta após a resolução.
// Escrito uma única vez, junto da transição open -> resolved.
type Settlement struct {
	BetID       string
	AgentID     string
	PayoutCents int64
	ResolvedAt  time.Time
}
