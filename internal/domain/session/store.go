package session

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/monitoring"
	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	ids "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/id"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
	"go.uber.org/zap"
)

// sweepEvery is the number of session acquisitions between opportunistic
// sweeps of expired entries.
const sweepEvery = 256

// Options configures a Store.
type Options struct {
	// TTL is the inactivity window; zero keeps sessions until restart.
	TTL time.Duration
	// MaxSessions bounds the in-memory map; zero means unbounded.
	MaxSessions int
	// Persister, when set, receives committed sessions and serves misses.
	Persister Persister
	// Now overrides the clock, for tests.
	Now     func() time.Time
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Outcome describes how WithSession resolved the session.
type Outcome struct {
	ID string
	// Created is set when the ID was unknown.
	Created bool
	// Renewed is set when the ID named an expired session, which was
	// replaced by an empty one.
	Renewed bool
}

// Store maps session IDs to sessions. The store mutex guards only the map;
// each session has its own lock, so sessions never contend with each other.
type Store struct {
	opts    Options
	logger  *logging.Logger
	metrics *monitoring.Metrics
	now     func() time.Time

	mu       sync.Mutex
	entries  map[string]*entry
	accesses uint64
}

// NewStore creates an empty session store.
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		opts:    opts,
		logger:  logger.Named("session"),
		metrics: opts.Metrics,
		now:     now,
		entries: make(map[string]*entry),
	}
}

// Tx is the view of one locked session handed to WithSession callbacks.
// Changes are committed only if the callback returns nil.
type Tx struct {
	session Session
	dirty   bool
}

// ID returns the session ID.
func (tx *Tx) ID() string { return tx.session.ID }

// Turns returns a copy of the session's turns.
func (tx *Tx) Turns() []types.Turn {
	out := make([]types.Turn, len(tx.session.Turns))
	copy(out, tx.session.Turns)
	return out
}

// SetTurns replaces the session's turns.
func (tx *Tx) SetTurns(turns []types.Turn) {
	tx.session.Turns = append(make([]types.Turn, 0, len(turns)), turns...)
	tx.dirty = true
}

// Touch marks the session active without changing its turns.
func (tx *Tx) Touch() { tx.dirty = true }

// WithSession runs fn with the session id locked, creating it if unknown
// and replacing it if expired. An empty id gets a fresh session ID. Work
// done by fn is committed, and the session's activity refreshed, only
// when fn returns nil; otherwise the stored session is left exactly as it
// was. The lock is held for the whole of fn.
func (s *Store) WithSession(ctx context.Context, id string, fn func(tx *Tx) error) (Outcome, error) {
	if id == "" {
		id = ids.NewSessionID().String()
	}
	out := Outcome{ID: id}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	e, created, err := s.acquire(ctx, id)
	if err != nil {
		return out, err
	}
	defer e.release()
	out.Created = created

	now := s.now()
	tx := &Tx{session: e.session.clone()}

	if !created && tx.session.expired(now, s.opts.TTL) {
		s.logger.FromContext(ctx).Info("Session expired, starting a fresh context",
			zap.String("session_id", id),
			zap.Duration("idle", now.Sub(tx.session.LastActivity)),
			zap.Error(apperrors.ErrSessionExpired))
		tx.session = newSession(id, now)
		tx.dirty = true
		out.Renewed = true
	}

	if err := fn(tx); err != nil {
		return out, err
	}

	if out.Renewed && s.metrics != nil {
		s.metrics.IncSessionsRenewed()
	}

	if tx.dirty || created {
		tx.session.LastActivity = s.now()
		e.session = tx.session
		e.touch(e.session.LastActivity)
		s.persist(ctx, e.session)
	}

	return out, nil
}

// Get returns a copy of the live session id without creating or
// refreshing it. Expired sessions are reported as absent.
func (s *Store) Get(ctx context.Context, id string) (Session, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()

	var sess Session
	if ok {
		if err := e.acquire(ctx); err != nil {
			return Session{}, false
		}
		retired := e.retired
		sess = e.session.clone()
		e.release()
		if retired {
			return s.Get(ctx, id)
		}
	} else {
		restored, found := s.restore(ctx, id)
		if !found {
			return Session{}, false
		}
		sess = restored
	}

	if sess.expired(s.now(), s.opts.TTL) {
		return Session{}, false
	}
	return sess, true
}

// Len returns the number of sessions held in memory.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops expired sessions from memory, and their snapshots from the
// persister. Sessions currently locked are skipped. It returns the number
// removed.
func (s *Store) Sweep(ctx context.Context) int {
	if s.opts.TTL <= 0 {
		return 0
	}

	s.mu.Lock()
	removed := s.sweepLocked(s.now())
	// Held across the deletes so a session re-created under a swept ID
	// cannot save before its stale snapshot is gone.
	s.forget(ctx, removed)
	count := len(s.entries)
	s.mu.Unlock()

	s.reportSize(count)
	return len(removed)
}

// Close releases the persister, if any.
func (s *Store) Close() error {
	if s.opts.Persister == nil {
		return nil
	}
	return s.opts.Persister.Close()
}

// acquire returns the locked entry for id, inserting a new one on a miss.
func (s *Store) acquire(ctx context.Context, id string) (*entry, bool, error) {
	for {
		s.mu.Lock()
		s.accesses++
		if s.accesses%sweepEvery == 0 && s.opts.TTL > 0 {
			s.sweepLocked(s.now())
		}

		e, ok := s.entries[id]
		if !ok {
			e = newEntry()
			e.tryAcquire() // fresh entry, cannot fail
			if s.opts.MaxSessions > 0 && len(s.entries) >= s.opts.MaxSessions {
				s.makeRoomLocked()
			}
			s.entries[id] = e
			count := len(s.entries)
			s.mu.Unlock()

			s.reportSize(count)
			created := s.populate(ctx, e, id)
			return e, created, nil
		}
		s.mu.Unlock()

		if err := e.acquire(ctx); err != nil {
			return nil, false, err
		}
		if e.retired {
			e.release()
			continue
		}
		return e, false, nil
	}
}

// populate fills a freshly inserted entry from the persister or as a new
// session. It reports whether the session was newly created.
func (s *Store) populate(ctx context.Context, e *entry, id string) bool {
	if restored, ok := s.restore(ctx, id); ok {
		e.session = restored
		e.touch(restored.LastActivity)
		return false
	}

	e.session = newSession(id, s.now())
	e.touch(e.session.LastActivity)
	if s.metrics != nil {
		s.metrics.IncSessionsCreated()
	}
	s.logger.FromContext(ctx).Debug("Session created", zap.String("session_id", id))
	return true
}

func (s *Store) restore(ctx context.Context, id string) (Session, bool) {
	if s.opts.Persister == nil {
		return Session{}, false
	}
	sess, err := s.opts.Persister.Load(ctx, id)
	if err != nil {
		s.logger.FromContext(ctx).Warn("Failed to restore session", zap.String("session_id", id), zap.Error(err))
		return Session{}, false
	}
	if sess == nil {
		return Session{}, false
	}
	s.logger.FromContext(ctx).Debug("Session restored", zap.String("session_id", id), zap.Int("turns", len(sess.Turns)))
	return sess.clone(), true
}

// persist writes a committed session. Failures are logged, never returned:
// the in-memory session is authoritative.
func (s *Store) persist(ctx context.Context, sess Session) {
	if s.opts.Persister == nil {
		return
	}
	if err := s.opts.Persister.Save(ctx, sess, s.opts.TTL); err != nil {
		if s.metrics != nil {
			s.metrics.IncPersistErrors()
		}
		s.logger.FromContext(ctx).Warn("Failed to persist session", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// forget deletes the persisted snapshots of swept sessions. Failures are
// logged.
func (s *Store) forget(ctx context.Context, swept []string) {
	if s.opts.Persister == nil {
		return
	}
	for _, id := range swept {
		if err := s.opts.Persister.Delete(ctx, id); err != nil {
			if s.metrics != nil {
				s.metrics.IncPersistErrors()
			}
			s.logger.Warn("Failed to delete session snapshot", zap.String("session_id", id), zap.Error(err))
		}
	}
}

// sweepLocked removes expired, unlocked entries and returns their IDs.
// Caller holds s.mu.
func (s *Store) sweepLocked(now time.Time) []string {
	cutoff := now.Add(-s.opts.TTL).UnixNano()
	var removed []string
	for id, e := range s.entries {
		if e.touched.Load() > cutoff {
			continue
		}
		if !e.tryAcquire() {
			continue
		}
		if e.session.expired(now, s.opts.TTL) {
			e.retired = true
			delete(s.entries, id)
			removed = append(removed, id)
		}
		e.release()
	}
	if len(removed) > 0 {
		if s.metrics != nil {
			s.metrics.AddSessionsExpired(len(removed))
		}
		s.logger.Debug("Swept expired sessions", zap.Int("removed", len(removed)))
	}
	return removed
}

// makeRoomLocked frees one slot: expired sessions first, then the least
// recently used unlocked one. Caller holds s.mu.
func (s *Store) makeRoomLocked() {
	if s.opts.TTL > 0 && len(s.sweepLocked(s.now())) > 0 {
		return
	}

	skip := make(map[string]struct{})
	for attempt := 0; attempt < 3; attempt++ {
		victim := ""
		var oldest int64 = math.MaxInt64
		for id, e := range s.entries {
			if _, skipped := skip[id]; skipped {
				continue
			}
			if t := e.touched.Load(); t < oldest {
				oldest, victim = t, id
			}
		}
		if victim == "" {
			return
		}

		e := s.entries[victim]
		if !e.tryAcquire() {
			skip[victim] = struct{}{}
			continue
		}
		e.retired = true
		delete(s.entries, victim)
		e.release()

		if s.metrics != nil {
			s.metrics.IncSessionsEvicted()
		}
		s.logger.Debug("Evicted least recently used session", zap.String("session_id", victim))
		return
	}
}

func (s *Store) reportSize(count int) {
	if s.metrics != nil {
		s.metrics.SetSessionsActive(count)
	}
}
