package broker

import (
	"encoding/json"
	"sync"
)

// events holds the registered handler lists. Handlers run on the reader
// goroutine, one frame at a time, so a slow handler stalls dispatch.
type events struct {
	mu sync.RWMutex

	allHandlers       []func(*InboundEnvelope)
	messageHandlers   []func(*InboundEnvelope)
	heartbeatHandlers []func(*InboundEnvelope)

	timeSyncHandlers       []func(int64)
	balancesHandlers       []func([]Balance)
	balanceChangedHandlers []func(*BalanceChange)
	commissionHandlers     []func(CommissionEvent)

	optionHandlers          []func(json.RawMessage)
	soldOptionsHandlers     []func(json.RawMessage)
	positionChangedHandlers []func(json.RawMessage)
	positionsStateHandlers  []func(json.RawMessage)
	subscriptionHandlers    []func(json.RawMessage)
	candleHandlers          []func(json.RawMessage)

	closeHandlers []func()
	errorHandlers []func(error)
}

// OnAll registers a handler for every inbound frame, correlated or not.
func (b *Broker) OnAll(h func(*InboundEnvelope)) {
	b.events.mu.Lock()
	b.events.allHandlers = append(b.events.allHandlers, h)
	b.events.mu.Unlock()
}

// OnMessage registers the catch-all for frames no named handler covers.
func (b *Broker) OnMessage(h func(*InboundEnvelope)) {
	b.events.mu.Lock()
	b.events.messageHandlers = append(b.events.messageHandlers, h)
	b.events.mu.Unlock()
}

// OnHeartbeat fires for server heartbeats, after the automatic reply.
func (b *Broker) OnHeartbeat(h func(*InboundEnvelope)) {
	b.events.mu.Lock()
	b.events.heartbeatHandlers = append(b.events.heartbeatHandlers, h)
	b.events.mu.Unlock()
}

// OnTimeSync fires with the server time in epoch milliseconds.
func (b *Broker) OnTimeSync(h func(serverTimeMs int64)) {
	b.events.mu.Lock()
	b.events.timeSyncHandlers = append(b.events.timeSyncHandlers, h)
	b.events.mu.Unlock()
}

// OnBalances fires with each full balance snapshot.
func (b *Broker) OnBalances(h func([]Balance)) {
	b.events.mu.Lock()
	b.events.balancesHandlers = append(b.events.balancesHandlers, h)
	b.events.mu.Unlock()
}

// OnBalanceChanged fires for each incremental balance update.
func (b *Broker) OnBalanceChanged(h func(*BalanceChange)) {
	b.events.mu.Lock()
	b.events.balanceChangedHandlers = append(b.events.balanceChangedHandlers, h)
	b.events.mu.Unlock()
}

// OnCommission fires once per asset for bulk commission snapshots and once
// per incremental commission update.
func (b *Broker) OnCommission(h func(CommissionEvent)) {
	b.events.mu.Lock()
	b.events.commissionHandlers = append(b.events.commissionHandlers, h)
	b.events.mu.Unlock()
}

// OnOption fires for option lifecycle broadcasts.
func (b *Broker) OnOption(h func(json.RawMessage)) {
	b.events.mu.Lock()
	b.events.optionHandlers = append(b.events.optionHandlers, h)
	b.events.mu.Unlock()
}

// OnSoldOptions fires when options are sold back.
func (b *Broker) OnSoldOptions(h func(json.RawMessage)) {
	b.events.mu.Lock()
	b.events.soldOptionsHandlers = append(b.events.soldOptionsHandlers, h)
	b.events.mu.Unlock()
}

// OnPositionChanged fires for position updates.
func (b *Broker) OnPositionChanged(h func(json.RawMessage)) {
	b.events.mu.Lock()
	b.events.positionChangedHandlers = append(b.events.positionChangedHandlers, h)
	b.events.mu.Unlock()
}

// OnPositionsState fires for aggregated positions-state broadcasts.
func (b *Broker) OnPositionsState(h func(json.RawMessage)) {
	b.events.mu.Lock()
	b.events.positionsStateHandlers = append(b.events.positionsStateHandlers, h)
	b.events.mu.Unlock()
}

// OnSubscription fires for generic subscription payload frames.
func (b *Broker) OnSubscription(h func(json.RawMessage)) {
	b.events.mu.Lock()
	b.events.subscriptionHandlers = append(b.events.subscriptionHandlers, h)
	b.events.mu.Unlock()
}

// OnCandleGenerated fires for streamed candles.
func (b *Broker) OnCandleGenerated(h func(json.RawMessage)) {
	b.events.mu.Lock()
	b.events.candleHandlers = append(b.events.candleHandlers, h)
	b.events.mu.Unlock()
}

// OnClose fires once per connection when the read loop exits.
func (b *Broker) OnClose(h func()) {
	b.events.mu.Lock()
	b.events.closeHandlers = append(b.events.closeHandlers, h)
	b.events.mu.Unlock()
}

// OnError fires for read, decode and dispatch errors.
func (b *Broker) OnError(h func(error)) {
	b.events.mu.Lock()
	b.events.errorHandlers = append(b.events.errorHandlers, h)
	b.events.mu.Unlock()
}

func (e *events) emitAll(env *InboundEnvelope) {
	e.mu.RLock()
	handlers := e.allHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(env)
	}
}

func (e *events) emitMessage(env *InboundEnvelope) {
	e.mu.RLock()
	handlers := e.messageHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(env)
	}
}

func (e *events) emitHeartbeat(env *InboundEnvelope) {
	e.mu.RLock()
	handlers := e.heartbeatHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(env)
	}
}

func (e *events) emitTimeSync(ms int64) {
	e.mu.RLock()
	handlers := e.timeSyncHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ms)
	}
}

func (e *events) emitBalances(balances []Balance) {
	e.mu.RLock()
	handlers := e.balancesHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(balances)
	}
}

func (e *events) emitBalanceChanged(change *BalanceChange) {
	e.mu.RLock()
	handlers := e.balanceChangedHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(change)
	}
}

func (e *events) emitCommission(ev CommissionEvent) {
	e.mu.RLock()
	handlers := e.commissionHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (e *events) emitOption(raw json.RawMessage) {
	e.mu.RLock()
	handlers := e.optionHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(raw)
	}
}

func (e *events) emitSoldOptions(raw json.RawMessage) {
	e.mu.RLock()
	handlers := e.soldOptionsHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(raw)
	}
}

func (e *events) emitPositionChanged(raw json.RawMessage) {
	e.mu.RLock()
	handlers := e.positionChangedHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(raw)
	}
}

func (e *events) emitPositionsState(raw json.RawMessage) {
	e.mu.RLock()
	handlers := e.positionsStateHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(raw)
	}
}

func (e *events) emitSubscription(raw json.RawMessage) {
	e.mu.RLock()
	handlers := e.subscriptionHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(raw)
	}
}

func (e *events) emitCandle(raw json.RawMessage) {
	e.mu.RLock()
	handlers := e.candleHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(raw)
	}
}

func (e *events) emitClose() {
	e.mu.RLock()
	handlers := e.closeHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

func (e *events) emitError(err error) {
	e.mu.RLock()
	handlers := e.errorHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(err)
	}
}
