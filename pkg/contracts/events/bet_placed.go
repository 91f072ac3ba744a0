package events

type BetPlaced struct {
	BetID       string `json:"bet_id"`
	MarketID    string `json:"market_id"`
	AgentID     string `json:"agent_id"`
	Side        string `json:"side"` // "yes" | "no"
	AmountCents int64  `json:"amount_cents"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
