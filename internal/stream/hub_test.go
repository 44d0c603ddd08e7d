package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Subscribers() == n }, 2*time.Second, 5*time.Millisecond)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := Decode(data)
	require.NoError(t, err)
	return msg
}

func TestHub_BroadcastOrderToAllClients(t *testing.T) {
	hub := NewHub(ports.NopLogger{}, 0)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a := dialHub(t, srv)
	b := dialHub(t, srv)
	waitSubscribers(t, hub, 2)

	hub.PublishLog("INFO", "first")
	hub.PublishExecution(domain.Execution{Symbol: "BTCUSDT", Side: domain.SideLong, Price: decimal.NewFromInt(10), Quantity: decimal.NewFromInt(1), Fee: decimal.Zero})
	hub.PublishPortfolio(decimal.NewFromInt(90), decimal.NewFromInt(100), nil)

	for _, conn := range []*websocket.Conn{a, b} {
		assert.Equal(t, TypeLog, readMessage(t, conn).Type())
		assert.Equal(t, TypeTradeExecuted, readMessage(t, conn).Type())
		upd, ok := readMessage(t, conn).(PortfolioUpdate)
		require.True(t, ok)
		assert.True(t, upd.TotalValue.Equal(decimal.NewFromInt(100)))
	}
}

func TestHub_NoReplayForLateJoiners(t *testing.T) {
	hub := NewHub(ports.NopLogger{}, 0)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	hub.PublishLog("INFO", "before anyone listened")

	conn := dialHub(t, srv)
	waitSubscribers(t, hub, 1)
	hub.PublishLog("INFO", "live")

	msg, ok := readMessage(t, conn).(LogMessage)
	require.True(t, ok)
	assert.Equal(t, "live", msg.Message)
}

func TestHub_DropsSlowConsumer(t *testing.T) {
	hub := NewHub(ports.NopLogger{}, 1)

	// No write pump drains this subscriber
	s := hub.subscribe()
	require.NotNil(t, s)
	assert.Equal(t, 1, hub.Subscribers())

	hub.PublishLog("INFO", "fits")
	hub.PublishLog("INFO", "overflows")
	assert.Equal(t, 0, hub.Subscribers())

	_, ok := <-s.send
	assert.True(t, ok, "queued message stays readable")
	_, ok = <-s.send
	assert.False(t, ok, "queue closed after drop")
}

func TestHub_ClientDisconnectUnsubscribes(t *testing.T) {
	hub := NewHub(ports.NopLogger{}, 0)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	waitSubscribers(t, hub, 1)

	conn.Close()
	waitSubscribers(t, hub, 0)
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	hub := NewHub(ports.NopLogger{}, 0)
	hub.Close()
	assert.Nil(t, hub.subscribe())
}

func TestClient_ReceivesAndReconnects(t *testing.T) {
	hub := NewHub(ports.NopLogger{}, 0)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	var mu sync.Mutex
	var got []string
	client, err := NewClient(ClientConfig{URL: wsURL(srv), ReconnectDelay: 10 * time.Millisecond}, func(m Message) {
		if l, ok := m.(LogMessage); ok {
			mu.Lock()
			got = append(got, l.Message)
			mu.Unlock()
		}
	}, ports.NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	received := func(n int) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) >= n
		}
	}

	waitSubscribers(t, hub, 1)
	hub.PublishLog("INFO", "one")
	require.Eventually(t, received(1), 2*time.Second, 5*time.Millisecond)

	// Kick every client; the consumer must come back on its own
	hub.mu.Lock()
	for s := range hub.subs {
		hub.dropLocked(s)
	}
	hub.mu.Unlock()

	waitSubscribers(t, hub, 1)
	hub.PublishLog("INFO", "two")
	require.Eventually(t, received(2), 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop after cancel")
	}

	mu.Lock()
	assert.Equal(t, []string{"one", "two"}, got)
	mu.Unlock()
}

func TestClient_BacksOffWhenServerDropsImmediately(t *testing.T) {
	var accepted atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted.Add(1)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		conn.Close()
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{URL: wsURL(srv), ReconnectDelay: 50 * time.Millisecond, MaxDelay: 50 * time.Millisecond},
		func(Message) {}, ports.NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, client.Run(ctx))

	n := accepted.Load()
	assert.GreaterOrEqual(t, n, int32(2), "client should reconnect")
	assert.LessOrEqual(t, n, int32(8), "reconnects must be spaced by the backoff delay")
}

func TestClient_GivesUp(t *testing.T) {
	srv := httptest.NewServer(NewHub(ports.NopLogger{}, 0))
	url := wsURL(srv)
	srv.Close()

	client, err := NewClient(ClientConfig{URL: url, ReconnectDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxAttempts: 3},
		func(Message) {}, ports.NopLogger{})
	require.NoError(t, err)

	err = client.Run(context.Background())
	assert.ErrorIs(t, err, ports.ErrTransportDisconnect)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{}, func(Message) {}, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)

	_, err = NewClient(ClientConfig{URL: "ws://localhost:1"}, nil, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)
}
