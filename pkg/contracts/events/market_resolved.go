package events

// Evento emitido pelo platform-service após a resolução atômica de um mercado.
// Consumido pelo settlement-worker para creditar ganhos e reputação dos agentes.
type SettlementEntry struct {
	BetID       string `json:"bet_id"`
	AgentID     string `json:"agent_id"`
	PayoutCents int64  `json:"payout_cents"`
}

type MarketResolved struct {
	MarketID       string            `json:"market_id"`
	VideoID        string            `json:"video_id"`
	Outcome        string            `json:"outcome"` // "yes" | "no"
	TotalPoolCents int64             `json:"total_pool_cents"`
	Settlements    []SettlementEntry `json:"settlements"`
	TsUnixMs       int64             `json:"ts_unix_ms"`
}
