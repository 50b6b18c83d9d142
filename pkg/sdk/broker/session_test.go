package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVenue is an in-process stand-in for the trading venue. It records
// every frame the client writes and answers the handshake operations the
// way the real venue does: an "authenticated" frame for authenticate, a
// "result" acknowledgement for everything acknowledged, and named payload
// frames for the bootstrap fetches.
type fakeVenue struct {
	t      *testing.T
	server *httptest.Server

	mu     sync.Mutex
	conn   *websocket.Conn
	frames []venueFrame
}

type venueFrame struct {
	Name      string          `json:"name"`
	RequestID string          `json:"request_id"`
	LocalTime int64           `json:"local_time"`
	Msg       json.RawMessage `json:"msg"`
}

type innerMsg struct {
	Name string          `json:"name"`
	Body json.RawMessage `json:"body"`
}

func newFakeVenue(t *testing.T) *fakeVenue {
	v := &fakeVenue{t: t}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	v.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		v.mu.Lock()
		v.conn = conn
		v.mu.Unlock()
		v.serve(conn)
	}))
	t.Cleanup(v.server.Close)
	return v
}

func (v *fakeVenue) url() string {
	return "ws" + strings.TrimPrefix(v.server.URL, "http")
}

func (v *fakeVenue) serve(conn *websocket.Conn) {
	for {
		var frame venueFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		v.mu.Lock()
		v.frames = append(v.frames, frame)
		v.mu.Unlock()
		v.respond(conn, frame)
	}
}

func (v *fakeVenue) respond(conn *websocket.Conn, frame venueFrame) {
	switch frame.Name {
	case "authenticate":
		v.write(conn, "authenticated", frame.RequestID, true)
	case "setOptions":
		v.write(conn, "result", frame.RequestID, map[string]any{"success": true})
	case "heartbeat":
		// Client-initiated heartbeat replies need no answer.
	case "subscribeMessage", "unsubscribeMessage":
		v.write(conn, "result", frame.RequestID, map[string]any{"success": true})
	case "sendMessage":
		var inner innerMsg
		if err := json.Unmarshal(frame.Msg, &inner); err != nil {
			v.t.Errorf("malformed sendMessage body: %v", err)
			return
		}
		v.write(conn, "result", frame.RequestID, map[string]any{"success": true})
		switch inner.Name {
		case "core.get-profile":
			v.write(conn, "profile", frame.RequestID, map[string]any{
				"result": map[string]any{
					"user_id":    42,
					"group_id":   112,
					"balance_id": 300,
					"email":      "trader@example.com",
				},
			})
		case "get-user-profile-client":
			v.write(conn, "user-profile-client", frame.RequestID, map[string]any{
				"user_id": 42,
				"flag":    "br",
			})
		case "get-balances":
			v.write(conn, "balances", frame.RequestID, []map[string]any{
				{"id": 300, "type": 4, "amount": 10000, "enrolled_amount": 10000, "currency": "USD"},
				{"id": 301, "type": 1, "amount": 52.3, "enrolled_amount": 52.3, "currency": "USD"},
			})
		case "get-commissions":
			var body struct {
				InstrumentType string `json:"instrument_type"`
			}
			_ = json.Unmarshal(inner.Body, &body)
			v.write(conn, "commissions", frame.RequestID, map[string]any{
				"instrument_type": body.InstrumentType,
				"items": []map[string]any{
					{"active_id": 1, "value": 15},
					{"active_id": 816, "value": 18.5},
				},
			})
		}
	}
}

func (v *fakeVenue) write(conn *websocket.Conn, name, requestID string, msg any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	err := conn.WriteJSON(map[string]any{
		"name":       name,
		"request_id": requestID,
		"msg":        msg,
	})
	if err != nil {
		v.t.Logf("venue write %s: %v", name, err)
	}
}

// push sends an uncorrelated broadcast to the connected client.
func (v *fakeVenue) push(name string, msg any) {
	v.mu.Lock()
	conn := v.conn
	v.mu.Unlock()
	require.NotNil(v.t, conn, "no client connected")
	v.write(conn, name, "", msg)
}

func (v *fakeVenue) received(name string) []venueFrame {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []venueFrame
	for _, f := range v.frames {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

func (v *fakeVenue) receivedOperation(name string) []venueFrame {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []venueFrame
	for _, f := range v.frames {
		var inner innerMsg
		if json.Unmarshal(f.Msg, &inner) == nil && inner.Name == name {
			out = append(out, f)
		}
	}
	return out
}

func connectedBroker(t *testing.T, v *fakeVenue, opts ConnectOptions) *Broker {
	b := NewWithConfig("test-ssid", &Config{URL: v.url()})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.Connect(ctx, opts))
	t.Cleanup(b.Disconnect)
	return b
}

func TestConnectBootstrapsSession(t *testing.T) {
	v := newFakeVenue(t)
	b := connectedBroker(t, v, ConnectOptions{})

	profile := b.Profile()
	require.NotNil(t, profile)
	assert.Equal(t, int64(42), profile.UserID)
	assert.Equal(t, int64(112), profile.GroupID)

	client := b.Client()
	require.NotNil(t, client)
	assert.Equal(t, "br", client.Flag)

	balances := b.Balances()
	require.Len(t, balances, 2)
	assert.Equal(t, int64(300), balances[0].ID)

	// Commission tables were fetched for both option categories.
	assert.Equal(t, float64(85), b.Profit(TurboOption, 1))
	assert.Equal(t, float64(81.5), b.Profit(BinaryOption, 816))

	// Position subscriptions cover every instrument/balance combination.
	subs := v.received("subscribeMessage")
	var positionSubs, commissionSubs int
	for _, f := range subs {
		var inner struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.Unmarshal(f.Msg, &inner))
		switch inner.Name {
		case "portfolio.position-changed":
			positionSubs++
		case "commission-changed":
			commissionSubs++
		}
	}
	assert.Equal(t, 4, positionSubs)
	assert.Equal(t, 2, commissionSubs)
}

func TestConnectMinimalSkipsBootstrap(t *testing.T) {
	v := newFakeVenue(t)
	b := connectedBroker(t, v, ConnectOptions{Minimal: true})

	assert.Nil(t, b.Profile())
	assert.Empty(t, b.Balances())
	assert.Empty(t, v.received("subscribeMessage"))
	require.Len(t, v.received("authenticate"), 1)
}

func TestReconnectResetsCounterAndCache(t *testing.T) {
	v := newFakeVenue(t)
	b := connectedBroker(t, v, ConnectOptions{Minimal: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := b.Send(ctx, GetBalances{}, WantMessage)
	require.NoError(t, err)
	assert.Equal(t, "0", reply.RequestID)
	require.Eventually(t, func() bool { return len(b.Balances()) == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, b.Connect(ctx, ConnectOptions{Minimal: true}))

	// Fresh session: counter restarts and the cache is empty again.
	assert.Empty(t, b.Balances())
	reply, err = b.Send(ctx, GetBalances{}, WantMessage)
	require.NoError(t, err)
	assert.Equal(t, "0", reply.RequestID)

	assert.Len(t, v.received("authenticate"), 2)
}

func TestHeartbeatAutoReply(t *testing.T) {
	v := newFakeVenue(t)
	b := connectedBroker(t, v, ConnectOptions{Minimal: true})

	beats := make(chan *InboundEnvelope, 1)
	b.OnHeartbeat(func(env *InboundEnvelope) { beats <- env })

	v.push("heartbeat", 1659062692000)

	select {
	case <-beats:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat handler did not fire")
	}

	require.Eventually(t, func() bool { return len(v.received("heartbeat")) == 1 }, 2*time.Second, 10*time.Millisecond)
	reply := v.received("heartbeat")[0]
	var msg struct {
		UserTime      string `json:"userTime"`
		HeartbeatTime string `json:"heartbeatTime"`
	}
	require.NoError(t, json.Unmarshal(reply.Msg, &msg))
	assert.Equal(t, "1659062692000", msg.HeartbeatTime)
	assert.NotEmpty(t, msg.UserTime)
}

func TestTimeSyncMovesExpiration(t *testing.T) {
	v := newFakeVenue(t)
	b := connectedBroker(t, v, ConnectOptions{Minimal: true})

	synced := make(chan int64, 1)
	b.OnTimeSync(func(ms int64) { synced <- ms })

	// 2022-07-29 12:00:45 UTC rounds two minutes ahead.
	v.push("timeSync", 1659096045000)

	select {
	case ms := <-synced:
		assert.Equal(t, int64(1659096045000), ms)
	case <-time.After(2 * time.Second):
		t.Fatal("timeSync handler did not fire")
	}
	assert.Equal(t, int64(1659096120), b.Expiration())
}

func TestBalanceChangedBroadcast(t *testing.T) {
	v := newFakeVenue(t)
	b := connectedBroker(t, v, ConnectOptions{})

	changes := make(chan *BalanceChange, 1)
	b.OnBalanceChanged(func(c *BalanceChange) { changes <- c })

	v.push("balance-changed", map[string]any{
		"current_balance": map[string]any{
			"id":              300,
			"new_amount":      9980,
			"enrolled_amount": 9980,
		},
	})

	select {
	case change := <-changes:
		assert.Equal(t, int64(300), change.CurrentBalance.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("balance-changed handler did not fire")
	}

	balances := b.Balances()
	require.Len(t, balances, 2)
	assert.Equal(t, float64(9980), balances[0].Amount)
	assert.Equal(t, "USD", balances[0].Currency)
}

func TestCatchAllOnlyForUnrecognizedNames(t *testing.T) {
	v := newFakeVenue(t)
	b := connectedBroker(t, v, ConnectOptions{Minimal: true})

	messages := make(chan *InboundEnvelope, 4)
	b.OnMessage(func(env *InboundEnvelope) { messages <- env })

	v.push("front", "wss://fr24.ws.iqoption.com/echo/websocket")
	v.push("some-new-broadcast", map[string]any{"x": 1})

	select {
	case env := <-messages:
		assert.Equal(t, "some-new-broadcast", env.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("catch-all handler did not fire")
	}
	select {
	case env := <-messages:
		t.Fatalf("unexpected catch-all for %s", env.Name)
	default:
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	b := New("test-ssid")
	_, err := b.Send(context.Background(), GetBalances{}, WantResult)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSendContextExpiresWithoutReply(t *testing.T) {
	v := newFakeVenue(t)
	b := connectedBroker(t, v, ConnectOptions{Minimal: true})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The venue never sends a payload frame for traders mood, only the
	// acknowledgement, so waiting on the message slot must hit the deadline.
	_, err := b.Send(ctx, GetTradersMood{Instrument: TurboOption, ActiveID: 1}, WantMessage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDisconnectEmitsClose(t *testing.T) {
	v := newFakeVenue(t)
	b := connectedBroker(t, v, ConnectOptions{Minimal: true})

	closed := make(chan struct{}, 1)
	b.OnClose(func() { closed <- struct{}{} })

	b.Disconnect()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close handler did not fire")
	}

	// Idempotent.
	b.Disconnect()
}

func TestFireAndForgetReturnsNilReply(t *testing.T) {
	v := newFakeVenue(t)
	b := connectedBroker(t, v, ConnectOptions{Minimal: true})

	reply, err := b.Send(context.Background(), UpdateUserAvailability{}, WantNothing)
	require.NoError(t, err)
	assert.Nil(t, reply)

	require.Eventually(t, func() bool {
		return len(v.receivedOperation("update-user-availability")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
