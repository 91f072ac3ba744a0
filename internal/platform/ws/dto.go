package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// MarketID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type     string `json:"type"`
	MarketID string `json:"marketId"`
}

// MarketUpdate é a atualização de mercado (aposta aceita, resolução)
// enviada para os clientes WebSocket inscritos
type MarketUpdate struct {
	MarketID string      `json:"marketId"`
	Payload  interface{} `json:"payload"`
}
