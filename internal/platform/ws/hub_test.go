package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(func(_ *http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialAndSubscribe(t *testing.T, url, marketID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", MarketID: marketID}))
	return conn
}

func waitSubscribers(t *testing.T, hub *Hub, marketID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.subscribers(marketID) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("mercado %s não atingiu %d inscritos", marketID, want)
}

func TestBroadcastDeliversToSubscriber(t *testing.T) {
	hub, url := newTestHub(t)

	conn := dialAndSubscribe(t, url, "m1")
	defer conn.Close()
	waitSubscribers(t, hub, "m1", 1)

	hub.Broadcast(MarketUpdate{MarketID: "m1", Payload: map[string]any{"state": "resolved"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var upd MarketUpdate
	require.NoError(t, conn.ReadJSON(&upd))
	assert.Equal(t, "m1", upd.MarketID)
}

func TestBroadcastSkipsOtherMarkets(t *testing.T) {
	hub, url := newTestHub(t)

	conn := dialAndSubscribe(t, url, "m1")
	defer conn.Close()
	waitSubscribers(t, hub, "m1", 1)

	hub.Broadcast(MarketUpdate{MarketID: "m2", Payload: "x"})
	hub.Broadcast(MarketUpdate{MarketID: "m1", Payload: "y"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var upd MarketUpdate
	require.NoError(t, conn.ReadJSON(&upd))
	assert.Equal(t, "m1", upd.MarketID)
}

// Broadcast concorrente com churn de inscrição/desinscrição no mesmo mercado.
// Roda limpo sob -race: os clientes são copiados sob lock antes da escrita.
func TestBroadcastDuringSubscriptionChurn(t *testing.T) {
	hub, url := newTestHub(t)

	persistent := dialAndSubscribe(t, url, "m1")
	defer persistent.Close()
	waitSubscribers(t, hub, "m1", 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				return
			}
			_ = conn.WriteJSON(ClientMsg{Type: "subscribe", MarketID: "m1"})
			_ = conn.WriteJSON(ClientMsg{Type: "unsubscribe", MarketID: "m1"})
			conn.Close()
		}
	}()

	for i := 0; i < 500; i++ {
		hub.Broadcast(MarketUpdate{MarketID: "m1", Payload: i})
	}
	<-done

	require.NoError(t, persistent.SetReadDeadline(time.Now().Add(2*time.Second)))
	var upd MarketUpdate
	require.NoError(t, persistent.ReadJSON(&upd))
	assert.Equal(t, "m1", upd.MarketID)
}

// Resposta de pong e Broadcast compartilham a conexão; as escritas são
// serializadas pelo mutex por cliente.
func TestPingConcurrentWithBroadcast(t *testing.T) {
	hub, url := newTestHub(t)

	conn := dialAndSubscribe(t, url, "m1")
	defer conn.Close()
	waitSubscribers(t, hub, "m1", 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Broadcast(MarketUpdate{MarketID: "m1", Payload: i})
		}
	}()

	for i := 0; i < 20; i++ {
		require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))
	}
	<-done

	// Tudo que chega é JSON íntegro: ou pong, ou atualização do m1
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := 0; i < 20; i++ {
		var raw map[string]any
		require.NoError(t, conn.ReadJSON(&raw))
	}
}

func TestDisconnectRemovesSubscription(t *testing.T) {
	hub, url := newTestHub(t)

	conn := dialAndSubscribe(t, url, "m1")
	waitSubscribers(t, hub, "m1", 1)

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.subscribers("m1") == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("conexão fechada continua inscrita")
}
