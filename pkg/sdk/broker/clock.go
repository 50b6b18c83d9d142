package broker

import (
	"fmt"
	"math/rand"
	"time"
)

// sessionClock reports the client-local monotonic time the protocol expects.
// The baseline is wall clock minus a 4000-6000ms jitter rolled at connect,
// so the line never sees the real client time, only monotonic progression.
type sessionClock struct {
	baseline time.Time
}

func newSessionClock() sessionClock {
	jitter := time.Duration(4000+rand.Intn(2000)) * time.Millisecond
	return sessionClock{baseline: time.Now().Add(-jitter)}
}

// localTime returns whole seconds elapsed since the baseline.
func (c sessionClock) localTime() int64 {
	return int64(time.Since(c.baseline) / time.Second)
}

// expirationAnchor maps a server time broadcast to the next valid
// option-expiration boundary: the next whole minute, or the one after when
// the broadcast is already past second 30 of the current minute.
func expirationAnchor(serverTime time.Time) int64 {
	anchor := serverTime.Truncate(time.Minute).Add(time.Minute)
	if serverTime.Second() > 30 {
		anchor = anchor.Add(time.Minute)
	}
	return anchor.Unix()
}

// resolveExpiration interprets a caller-supplied expiration. Small values
// are minutes ahead of the current anchor; anything at or above one billion
// already looks like an absolute epoch time and is used verbatim.
func resolveExpiration(anchor, expired int64) int64 {
	if expired < 1_000_000_000 {
		return anchor + (expired-1)*60
	}
	return expired
}

// randomRequestID builds the clock-derived identifiers the authenticate and
// setOptions commands use instead of counter ids.
func randomRequestID() string {
	return fmt.Sprintf("%d_%09d", time.Now().Unix(), rand.Intn(1_000_000_000))
}
