package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
)

// Session is a conversational identity and its turn history.
type Session struct {
	ID           string       `json:"id"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity time.Time    `json:"last_activity"`
	Turns        []types.Turn `json:"turns"`
}

func newSession(id string, now time.Time) Session {
	return Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Turns:        []types.Turn{},
	}
}

// clone returns a deep copy; Turns never alias the store's slice.
func (s Session) clone() Session {
	turns := make([]types.Turn, len(s.Turns))
	copy(turns, s.Turns)
	s.Turns = turns
	return s
}

// expired reports whether the session has been idle for ttl or longer.
// A zero ttl never expires.
func (s Session) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivity) >= ttl
}

// entry is the store's slot for one session. lock is a one-slot semaphore
// so waiters can give up when their context ends.
type entry struct {
	lock    chan struct{}
	session Session
	// retired is set, under lock, when the entry leaves the map. A waiter
	// that then acquires it must look the ID up again.
	retired bool
	// touched mirrors session.LastActivity in unix nanos for lock-free
	// eviction scans.
	touched atomic.Int64
}

func newEntry() *entry {
	return &entry{lock: make(chan struct{}, 1)}
}

func (e *entry) acquire(ctx context.Context) error {
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) tryAcquire() bool {
	select {
	case e.lock <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *entry) release() {
	<-e.lock
}

func (e *entry) touch(t time.Time) {
	e.touched.Store(t.UnixNano())
}
