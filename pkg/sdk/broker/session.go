package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/betbot/iqbroker/pkg/logger"
)

// Broker is one session with the trading venue: a single persistent
// WebSocket connection over which commands, subscriptions and broadcasts
// are multiplexed. All methods are safe for concurrent use.
type Broker struct {
	cfg  *Config
	ssid string

	connMu sync.Mutex
	conn   *websocket.Conn

	mu         sync.Mutex
	state      *sessionState
	correlator *correlator

	events events
}

// ConnectOptions tunes the post-dial handshake.
type ConnectOptions struct {
	// Minimal stops after authenticate and setOptions, skipping the profile,
	// balance and portfolio bootstrap.
	Minimal bool
}

// New builds a Broker with venue defaults for the given session token.
func New(ssid string) *Broker {
	return NewWithConfig(ssid, DefaultConfig())
}

// NewWithConfig builds a Broker with explicit transport settings. Zero
// fields in cfg fall back to the defaults.
func NewWithConfig(ssid string, cfg *Config) *Broker {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Origin == "" {
		cfg.Origin = def.Origin
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Broker{
		cfg:        cfg,
		ssid:       ssid,
		state:      newSessionState(),
		correlator: newCorrelator(),
	}
}

// Connect dials the venue and runs the handshake. An existing connection is
// torn down first, and the identifier counter, clock and cached trading
// state start fresh. The handshake is the authenticate and setOptions
// exchange, followed (unless opts.Minimal) by the profile, balance,
// portfolio and commission bootstrap.
func (b *Broker) Connect(ctx context.Context, opts ConnectOptions) error {
	b.Disconnect()

	b.mu.Lock()
	b.state = newSessionState()
	b.correlator = newCorrelator()
	b.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: b.cfg.HandshakeTimeout}
	header := http.Header{}
	header.Set("Origin", b.cfg.Origin)
	header.Set("User-Agent", b.cfg.UserAgent)

	conn, _, err := dialer.DialContext(ctx, b.cfg.URL, header)
	if err != nil {
		return errors.Wrapf(err, "dial %s", b.cfg.URL)
	}

	// closed is per-connection; the read loop closes it on exit.
	closed := make(chan struct{})
	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()

	go b.readLoop(conn, closed)

	// A transport failure mid-handshake would otherwise leave Connect
	// blocked on a reply that can no longer arrive.
	hsCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-closed:
			cancel()
		case <-hsCtx.Done():
		}
	}()

	if err := b.handshake(hsCtx, opts); err != nil {
		b.Disconnect()
		if hsCtx.Err() != nil && ctx.Err() == nil {
			return errors.Wrap(err, "connection lost during handshake")
		}
		return err
	}
	return nil
}

func (b *Broker) handshake(ctx context.Context, opts ConnectOptions) error {
	if _, err := b.Send(ctx, Authenticate{SSID: b.ssid}, WantMessage); err != nil {
		return errors.Wrap(err, "authenticate")
	}
	if _, err := b.Send(ctx, SetOptions{}, WantNothing); err != nil {
		return errors.Wrap(err, "setOptions")
	}
	if opts.Minimal {
		return nil
	}

	if _, err := b.Subscribe(ctx, ProfileChanged{}, WantNothing); err != nil {
		return err
	}

	reply, err := b.Send(ctx, GetProfile{}, WantMessage)
	if err != nil {
		return errors.Wrap(err, "core.get-profile")
	}
	var wrapper struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(reply.Message, &wrapper); err != nil {
		return errors.Wrap(err, "profile payload")
	}
	b.mu.Lock()
	_, err = b.state.applyProfile(wrapper.Result)
	b.mu.Unlock()
	if err != nil {
		return err
	}

	reply, err = b.Send(ctx, GetUserProfileClient{}, WantMessage)
	if err != nil {
		return errors.Wrap(err, "get-user-profile-client")
	}
	b.mu.Lock()
	_, err = b.state.applyClientProfile(reply.Message)
	b.mu.Unlock()
	if err != nil {
		return err
	}

	for _, topic := range []Subscription{AuthBalanceChanged, BalanceChanged} {
		if _, err := b.Subscribe(ctx, topic, WantNothing); err != nil {
			return err
		}
	}

	if _, err := b.Send(ctx, GetBalances{}, WantMessage); err != nil {
		return errors.Wrap(err, "get-balances")
	}

	for _, it := range []string{TurboInstrument, BinaryInstrument} {
		if _, err := b.Subscribe(ctx, OrderChanged{InstrumentType: it}, WantResult); err != nil {
			return err
		}
	}

	for _, it := range []InstrumentType{TurboOption, BinaryOption} {
		for _, balance := range b.Balances() {
			sub := PositionChanged{InstrumentType: it, UserBalanceID: balance.ID}
			if _, err := b.Subscribe(ctx, sub, WantResult); err != nil {
				return err
			}
		}
		if _, err := b.Subscribe(ctx, CommissionChanged{InstrumentType: it}, WantNothing); err != nil {
			return err
		}
		if _, err := b.Send(ctx, GetCommissions{InstrumentType: it}, WantMessage); err != nil {
			return errors.Wrapf(err, "get-commissions %s", it)
		}
	}

	if _, err := b.Subscribe(ctx, PositionsState{}, WantResult); err != nil {
		return err
	}
	return nil
}

// Disconnect closes the connection if one is open. Pending operations are
// left registered; their callers keep waiting until their context expires.
// Safe to call when already disconnected.
func (b *Broker) Disconnect() {
	b.connMu.Lock()
	conn := b.conn
	b.conn = nil
	b.connMu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Send issues a command and waits for the frames want asks for. With
// WantNothing the call returns right after the frame is written and the
// reply is nil.
func (b *Broker) Send(ctx context.Context, cmd Command, want ReplyWant) (*Reply, error) {
	env, err := b.buildEnvelope(kindSend, cmd.envelope)
	if err != nil {
		return nil, err
	}
	return b.dispatchEnvelope(ctx, env, want)
}

// Subscribe opens a broadcast subscription and waits per want.
func (b *Broker) Subscribe(ctx context.Context, sub Subscription, want ReplyWant) (*Reply, error) {
	env, err := b.buildEnvelope(kindSubscribe, sub.envelope)
	if err != nil {
		return nil, err
	}
	return b.dispatchEnvelope(ctx, env, want)
}

// Unsubscribe closes a broadcast subscription. The subscription value must
// carry the same filter parameters Subscribe was called with.
func (b *Broker) Unsubscribe(ctx context.Context, sub Subscription, want ReplyWant) (*Reply, error) {
	env, err := b.buildEnvelope(kindUnsubscribe, sub.envelope)
	if err != nil {
		return nil, err
	}
	return b.dispatchEnvelope(ctx, env, want)
}

// buildEnvelope shapes the outbound frame under the state lock: the body
// may read cached session state, and the identifier must be allocated in
// send order.
func (b *Broker) buildEnvelope(kind string, fill func(*Envelope, *stateSnapshot) error) (*Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	env := &Envelope{Name: kind, LocalTime: b.state.clock.localTime()}
	if err := fill(env, b.state.snapshot()); err != nil {
		return nil, err
	}
	if env.RequestID == "" {
		if kind == kindSend {
			env.RequestID = b.state.ids.nextRequestID()
		} else {
			env.RequestID = b.state.ids.nextSubscriptionID()
		}
	}
	return env, nil
}

func (b *Broker) dispatchEnvelope(ctx context.Context, env *Envelope, want ReplyWant) (*Reply, error) {
	b.mu.Lock()
	corr := b.correlator
	b.mu.Unlock()

	// Register before writing: the reply may race the write returning.
	op := corr.register(env.RequestID, want)

	if err := b.writeEnvelope(env); err != nil {
		if op != nil {
			corr.unregister(env.RequestID)
		}
		return nil, err
	}
	if op == nil {
		return nil, nil
	}

	select {
	case reply := <-op.done:
		return &reply, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "waiting for %s reply %s", env.Name, env.RequestID)
	}
}

func (b *Broker) writeEnvelope(env *Envelope) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.conn == nil {
		return ErrNotConnected
	}
	_ = b.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout))
	if err := b.conn.WriteJSON(env); err != nil {
		return errors.Wrapf(err, "write %s %s", env.Name, env.RequestID)
	}
	return nil
}

func (b *Broker) readLoop(conn *websocket.Conn, closed chan struct{}) {
	defer func() {
		close(closed)
		b.events.emitClose()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnf("broker: connection closed: %v", err)
				b.events.emitError(err)
			}
			return
		}

		var env InboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Errorf("broker: malformed frame: %v", err)
			b.events.emitError(errors.Wrap(err, "decode frame"))
			continue
		}
		b.handleFrame(&env)
	}
}

// Profile returns the cached account profile, nil before the handshake
// fetches it.
func (b *Broker) Profile() *Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.profile == nil {
		return nil
	}
	p := *b.state.profile
	return &p
}

// Client returns the cached public client record, nil until fetched.
func (b *Broker) Client() *ClientProfile {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.client == nil {
		return nil
	}
	c := *b.state.client
	return &c
}

// Balances returns a copy of the cached balance list.
func (b *Broker) Balances() []Balance {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Balance, len(b.state.balances))
	copy(out, b.state.balances)
	return out
}

// Profit returns the cached profit percentage for an asset, zero when no
// commission has been seen for it.
func (b *Broker) Profit(it InstrumentType, activeID int64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.profits[it][activeID]
}

// Expiration returns the current option-expiration anchor in epoch
// seconds, zero before the first timeSync broadcast.
func (b *Broker) Expiration() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.expiration
}

// LocalTime returns the session-local clock value sent on every frame.
func (b *Broker) LocalTime() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.clock.localTime()
}
