package broker

import "sync"

// pendingOp is one in-flight command or subscription awaiting its replies.
// It resolves exactly once, and only after every slot its flags ask for has
// been filled.
type pendingOp struct {
	id          string
	wantResult  bool
	wantMessage bool

	gotResult  bool
	gotMessage bool
	reply      Reply

	done chan Reply
}

func (op *pendingOp) complete() bool {
	if op.wantResult && !op.gotResult {
		return false
	}
	if op.wantMessage && !op.gotMessage {
		return false
	}
	return true
}

// correlator maps correlation identifiers to their pending operations and
// resolves them against the inbound stream. An operation whose reply never
// arrives stays registered for the lifetime of the session; nothing times
// it out and disconnecting does not reject it.
type correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingOp
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[string]*pendingOp)}
}

// register creates a pending operation for id. When neither flag is set the
// operation is already resolved and no entry is kept: fire-and-forget sends
// must not grow the table.
func (c *correlator) register(id string, want ReplyWant) *pendingOp {
	if !want.Result && !want.Message {
		return nil
	}
	op := &pendingOp{
		id:          id,
		wantResult:  want.Result,
		wantMessage: want.Message,
		reply:       Reply{RequestID: id},
		done:        make(chan Reply, 1),
	}
	c.mu.Lock()
	c.pending[id] = op
	c.mu.Unlock()
	return op
}

// unregister drops an operation that never made it onto the wire.
func (c *correlator) unregister(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// observe feeds one inbound frame through the pending table. A "result"
// frame fills the acknowledgement slot, anything else the payload slot;
// the operation resolves the moment every wanted slot is filled, in either
// arrival order, and is detached so it cannot resolve twice.
func (c *correlator) observe(env *InboundEnvelope) {
	if env.RequestID == "" {
		return
	}

	c.mu.Lock()
	op, ok := c.pending[env.RequestID]
	if !ok {
		c.mu.Unlock()
		return
	}

	if env.Name == "result" {
		op.reply.Result = env.Msg
		op.gotResult = true
	} else {
		op.reply.Message = env.Msg
		op.gotMessage = true
	}

	if !op.complete() {
		c.mu.Unlock()
		return
	}

	delete(c.pending, env.RequestID)
	c.mu.Unlock()

	op.done <- op.reply
}
