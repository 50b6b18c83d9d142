package broker

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/betbot/iqbroker/pkg/logger"
)

// handleFrame runs on the reader goroutine, strictly in arrival order.
// Classification and cache mutation happen before the correlator resolves
// waiters: a caller woken by its reply must already see the frame's effect
// on the cached state.
func (b *Broker) handleFrame(env *InboundEnvelope) {
	b.events.emitAll(env)
	b.classify(env)

	b.mu.Lock()
	corr := b.correlator
	b.mu.Unlock()
	corr.observe(env)
}

func (b *Broker) classify(env *InboundEnvelope) {
	switch env.Name {
	case "result":
		// Generic acknowledgement, consumed by the correlator only.
		return

	case "authenticated", "front", "additional-blocks", "profile",
		"user-profile-client", "traders-mood", "orders", "positions":
		// Correlated payloads with no broadcast meaning.
		return

	case "timeSync":
		b.handleTimeSync(env)

	case "heartbeat":
		b.handleHeartbeat(env)

	case "commissions":
		b.mu.Lock()
		events, err := b.state.applyCommissions(env.Msg)
		b.mu.Unlock()
		if err != nil {
			b.events.emitError(err)
			return
		}
		for _, ev := range events {
			b.events.emitCommission(ev)
		}

	case "commission-changed":
		b.mu.Lock()
		ev, err := b.state.applyCommissionChange(env.Msg)
		b.mu.Unlock()
		if err != nil {
			b.events.emitError(err)
			return
		}
		if ev != (CommissionEvent{}) {
			b.events.emitCommission(ev)
		}

	case "balances":
		b.mu.Lock()
		balances, err := b.state.applyBalances(env.Msg)
		b.mu.Unlock()
		if err != nil {
			b.events.emitError(err)
			return
		}
		b.events.emitBalances(balances)

	case "balance-changed":
		b.mu.Lock()
		change, err := b.state.applyBalanceChange(env.Msg)
		b.mu.Unlock()
		if err != nil {
			b.events.emitError(err)
			return
		}
		b.events.emitBalanceChanged(change)

	case "option":
		b.events.emitOption(env.Msg)

	case "sold-options":
		b.events.emitSoldOptions(env.Msg)

	case "position-changed":
		b.events.emitPositionChanged(env.Msg)

	case "positions-state":
		b.events.emitPositionsState(env.Msg)

	case "subscription":
		b.events.emitSubscription(env.Msg)

	case "candle-generated":
		b.events.emitCandle(env.Msg)

	default:
		b.events.emitMessage(env)
	}
}

func (b *Broker) handleTimeSync(env *InboundEnvelope) {
	b.mu.Lock()
	ms, err := b.state.applyTimeSync(env.Msg)
	b.mu.Unlock()
	if err != nil {
		logger.Errorf("broker: timeSync payload: %v", err)
		b.events.emitError(err)
		return
	}
	b.events.emitTimeSync(ms)
}

// handleHeartbeat answers the server heartbeat with the wall-clock time and
// the echoed heartbeat value, then notifies handlers. The reply is
// fire-and-forget; a write failure surfaces through the error handlers.
func (b *Broker) handleHeartbeat(env *InboundEnvelope) {
	var beat json.Number
	if err := json.Unmarshal(env.Msg, &beat); err != nil {
		logger.Errorf("broker: heartbeat payload: %v", err)
		b.events.emitError(err)
		return
	}
	reply := Heartbeat{
		UserTime:      strconv.FormatInt(time.Now().UnixMilli(), 10),
		HeartbeatTime: beat.String(),
	}
	if _, err := b.Send(context.Background(), reply, WantNothing); err != nil {
		logger.Warnf("broker: heartbeat reply: %v", err)
		b.events.emitError(err)
	}
	b.events.emitHeartbeat(env)
}
