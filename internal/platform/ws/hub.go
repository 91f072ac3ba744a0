package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// client serializa as escritas numa conexão: gorilla/websocket não permite
// mais de um writer concorrente por conn (Broadcast x resposta de ping).
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket inscritas em mercados de previsão
// subs: mapeia marketID para o conjunto de clientes inscritos
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Cada cliente pode se inscrever em múltiplos mercados
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	cl := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[msg.MarketID]; !ok {
				h.subs[msg.MarketID] = make(map[*client]struct{})
			}
			h.subs[msg.MarketID][cl] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.MarketID]; ok {
				delete(m, cl)
				if len(m) == 0 {
					delete(h.subs, msg.MarketID)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = cl.writeJSON(map[string]string{"type": "pong"})
		}
	}
	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for id, set := range h.subs {
		delete(set, cl)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
}

// Broadcast envia uma atualização para todos os clientes inscritos no mercado.
// Os clientes são copiados sob o lock; a escrita (que pode bloquear em rede
// lenta) acontece fora dele, serializada por conexão.
func (h *Hub) Broadcast(update MarketUpdate) {
	h.mu.RLock()
	set := h.subs[update.MarketID]
	clients := make([]*client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	b, _ := json.Marshal(update)
	for _, c := range clients {
		_ = c.write(websocket.TextMessage, b)
	}
}

// subscribers informa quantos clientes estão inscritos num mercado
func (h *Hub) subscribers(marketID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[marketID])
}
