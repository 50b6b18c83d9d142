package broker

import "strconv"

// idAllocator issues correlation identifiers from one monotonic counter.
// Subscription ids share the counter but carry the "s_" prefix, so the two
// spaces never collide. Reset only when a connection is (re)established.
type idAllocator struct {
	next uint64
}

func (a *idAllocator) nextRequestID() string {
	id := strconv.FormatUint(a.next, 10)
	a.next++
	return id
}

func (a *idAllocator) nextSubscriptionID() string {
	id := "s_" + strconv.FormatUint(a.next, 10)
	a.next++
	return id
}
