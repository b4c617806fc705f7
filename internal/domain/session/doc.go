// Package session is the relay's session store.
//
// A session maps a client-supplied identifier to its conversation turns
// and last-activity time. Sessions expire after an inactivity window and
// are then replaced, under the same identifier, by an empty one. Expiry
// is checked lazily on access; expired entries are also swept
// opportunistically, and the least recently used session is evicted when
// the store is full.
//
// Locking:
//   - The store mutex guards only the map
//   - Each session has its own lock, held for the whole of a WithSession
//     callback, so overlapping requests for one session serialize while
//     different sessions proceed in parallel
//   - Waiting for a session lock honours context cancellation
//
// Persistence is optional. A Persister (BadgerPersister) receives every
// committed session and answers in-memory misses, so conversations survive
// restarts and evictions.
//
// Example Usage:
//
//	store := session.NewStore(session.Options{TTL: time.Hour, MaxSessions: 10000})
//	out, err := store.WithSession(ctx, "s1", func(tx *session.Tx) error {
//	    tx.SetTurns(append(tx.Turns(), types.UserTurn("Hello")))
//	    return nil
//	})
package session
