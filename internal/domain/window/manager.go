package window

import (
	"context"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/domain/session"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
)

// DefaultBound is the number of turns kept per session: five exchanges.
const DefaultBound = 10

// ExchangeFunc produces the assistant reply for the next user prompt given
// the current window. It runs with the session locked.
type ExchangeFunc func(ctx context.Context, window []types.Turn) (string, error)

// Manager keeps each session's turns bounded to the most recent Bound.
type Manager struct {
	store   *session.Store
	bound   int
	metrics *monitoring.Metrics
}

// New creates a window manager over store. A non-positive bound selects
// DefaultBound; an odd bound is rounded up so user/assistant pairs stay
// together.
func New(store *session.Store, bound int, metrics *monitoring.Metrics) *Manager {
	if bound <= 0 {
		bound = DefaultBound
	}
	if bound%2 != 0 {
		bound++
	}
	return &Manager{store: store, bound: bound, metrics: metrics}
}

// Bound returns the maximum number of turns retained per session.
func (m *Manager) Bound() int {
	return m.bound
}

// GetWindow returns the session's current turns, oldest first. Unknown and
// expired sessions have an empty window.
func (m *Manager) GetWindow(ctx context.Context, sessionID string) []types.Turn {
	sess, ok := m.store.Get(ctx, sessionID)
	if !ok {
		return []types.Turn{}
	}
	return sess.Turns
}

// AppendTurn appends turn to the session and trims the window.
func (m *Manager) AppendTurn(ctx context.Context, sessionID string, turn types.Turn) (session.Outcome, error) {
	return m.store.WithSession(ctx, sessionID, func(tx *session.Tx) error {
		tx.SetTurns(Trim(append(tx.Turns(), turn), m.bound))
		return nil
	})
}

// Exchange runs one chat exchange under the session lock: fn sees the
// current window, and only if it succeeds are the user prompt and the
// reply appended and the window trimmed. A failed exchange leaves the
// session untouched.
func (m *Manager) Exchange(ctx context.Context, sessionID, prompt string, fn ExchangeFunc) (string, session.Outcome, error) {
	var reply string

	out, err := m.store.WithSession(ctx, sessionID, func(tx *session.Tx) error {
		window := tx.Turns()
		if m.metrics != nil {
			m.metrics.ObserveWindow(len(window))
		}

		r, err := fn(ctx, window)
		if err != nil {
			return err
		}
		reply = r

		turns := append(window, types.UserTurn(prompt), types.AssistantTurn(reply))
		tx.SetTurns(Trim(turns, m.bound))
		return nil
	})
	if err != nil {
		return "", out, err
	}
	return reply, out, nil
}

// Trim keeps the most recent bound turns, dropping from the front.
func Trim(turns []types.Turn, bound int) []types.Turn {
	if bound <= 0 || len(turns) <= bound {
		return turns
	}
	return turns[len(turns)-bound:]
}
