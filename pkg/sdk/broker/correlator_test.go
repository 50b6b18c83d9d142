package broker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorIssuesDistinctIncreasingIDs(t *testing.T) {
	var a idAllocator
	assert.Equal(t, "0", a.nextRequestID())
	assert.Equal(t, "1", a.nextRequestID())
	assert.Equal(t, "s_2", a.nextSubscriptionID())
	assert.Equal(t, "3", a.nextRequestID())
	assert.Equal(t, "s_4", a.nextSubscriptionID())
}

func TestRegisterNothingKeepsNoEntry(t *testing.T) {
	c := newCorrelator()
	op := c.register("7", WantNothing)
	assert.Nil(t, op)
	assert.Empty(t, c.pending)
}

func TestObserveResolvesResultOnly(t *testing.T) {
	c := newCorrelator()
	op := c.register("3", WantResult)
	require.NotNil(t, op)

	c.observe(&InboundEnvelope{Name: "result", RequestID: "3", Msg: json.RawMessage(`{"success":true}`)})

	select {
	case reply := <-op.done:
		assert.Equal(t, "3", reply.RequestID)
		assert.JSONEq(t, `{"success":true}`, string(reply.Result))
		assert.Nil(t, reply.Message)
	default:
		t.Fatal("operation did not resolve")
	}
}

func TestObserveBothSlotsEitherOrder(t *testing.T) {
	result := &InboundEnvelope{Name: "result", RequestID: "5", Msg: json.RawMessage(`{"success":true}`)}
	message := &InboundEnvelope{Name: "balances", RequestID: "5", Msg: json.RawMessage(`[]`)}

	orders := map[string][2]*InboundEnvelope{
		"result first":  {result, message},
		"message first": {message, result},
	}
	for name, frames := range orders {
		t.Run(name, func(t *testing.T) {
			c := newCorrelator()
			op := c.register("5", WantBoth)

			c.observe(frames[0])
			select {
			case <-op.done:
				t.Fatal("resolved before both slots were filled")
			default:
			}

			c.observe(frames[1])
			select {
			case reply := <-op.done:
				assert.JSONEq(t, `{"success":true}`, string(reply.Result))
				assert.JSONEq(t, `[]`, string(reply.Message))
			default:
				t.Fatal("operation did not resolve")
			}
		})
	}
}

func TestObserveResolvesExactlyOnce(t *testing.T) {
	c := newCorrelator()
	op := c.register("9", WantResult)

	c.observe(&InboundEnvelope{Name: "result", RequestID: "9", Msg: json.RawMessage(`1`)})
	// A late duplicate must not resolve again or panic.
	c.observe(&InboundEnvelope{Name: "result", RequestID: "9", Msg: json.RawMessage(`2`)})

	<-op.done
	select {
	case <-op.done:
		t.Fatal("resolved twice")
	default:
	}
	assert.Empty(t, c.pending)
}

func TestObserveIgnoresUnknownAndEmptyIDs(t *testing.T) {
	c := newCorrelator()
	c.observe(&InboundEnvelope{Name: "result", RequestID: "404", Msg: json.RawMessage(`1`)})
	c.observe(&InboundEnvelope{Name: "timeSync", Msg: json.RawMessage(`1659062692000`)})
	assert.Empty(t, c.pending)
}

func TestUnregisterDropsEntry(t *testing.T) {
	c := newCorrelator()
	c.register("2", WantMessage)
	c.unregister("2")
	assert.Empty(t, c.pending)
}
