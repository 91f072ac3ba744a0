package topics

const (
	// Mercados de previsão
	BetPlaced      = "bet_placed"
	MarketResolved = "market_resolved"

	// DLQ
	MarketResolvedDLQ = "market_resolved_dlq"
)
