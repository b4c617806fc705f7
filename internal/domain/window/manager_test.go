package window

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/domain/session"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(bound int) *Manager {
	return New(session.NewStore(session.Options{TTL: time.Hour}), bound, nil)
}

func echo(ctx context.Context, window []types.Turn) (string, error) {
	return fmt.Sprintf("reply after %d turns", len(window)), nil
}

func TestNewNormalizesBound(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, DefaultBound},
		{-4, DefaultBound},
		{7, 8},
		{20, 20},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, newManager(tt.in).Bound())
		})
	}
}

func TestTrim(t *testing.T) {
	turns := []types.Turn{
		types.UserTurn("1"), types.AssistantTurn("1"),
		types.UserTurn("2"), types.AssistantTurn("2"),
		types.UserTurn("3"), types.AssistantTurn("3"),
	}

	assert.Equal(t, turns[2:], Trim(turns, 4))
	assert.Equal(t, turns, Trim(turns, 6))
	assert.Equal(t, turns, Trim(turns, 10))
	assert.Equal(t, turns, Trim(turns, 0))
	assert.Empty(t, Trim(nil, 4))
}

func TestGetWindowUnknownSession(t *testing.T) {
	m := newManager(10)
	window := m.GetWindow(context.Background(), "nobody")
	assert.NotNil(t, window)
	assert.Empty(t, window)
}

func TestAppendTurnTrims(t *testing.T) {
	m := newManager(4)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := m.AppendTurn(ctx, "s1", types.UserTurn(fmt.Sprint(i)))
		require.NoError(t, err)
	}

	window := m.GetWindow(ctx, "s1")
	require.Len(t, window, 4)
	assert.Equal(t, "2", window[0].Content)
	assert.Equal(t, "5", window[3].Content)
}

func TestExchangeAppendsPairOnSuccess(t *testing.T) {
	m := newManager(10)
	ctx := context.Background()

	reply, out, err := m.Exchange(ctx, "s1", "Hello", func(ctx context.Context, window []types.Turn) (string, error) {
		assert.Empty(t, window)
		return "Hi there", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)
	assert.True(t, out.Created)

	assert.Equal(t, []types.Turn{
		types.UserTurn("Hello"),
		types.AssistantTurn("Hi there"),
	}, m.GetWindow(ctx, "s1"))
}

func TestExchangeFailureLeavesWindowUnchanged(t *testing.T) {
	m := newManager(10)
	ctx := context.Background()

	_, _, err := m.Exchange(ctx, "s1", "Hello", echo)
	require.NoError(t, err)
	before := m.GetWindow(ctx, "s1")

	boom := errors.New("HTTP 500")
	_, _, err = m.Exchange(ctx, "s1", "Again", func(ctx context.Context, window []types.Turn) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, m.GetWindow(ctx, "s1"))
}

// After N exchanges the window holds at most Bound turns, and exactly the
// most recent ones in call order.
func TestFIFOTrimLaw(t *testing.T) {
	for _, bound := range []int{2, 4, 10, 20} {
		for _, exchanges := range []int{1, 3, 5, 11, 25} {
			t.Run(fmt.Sprintf("bound=%d/exchanges=%d", bound, exchanges), func(t *testing.T) {
				m := newManager(bound)
				ctx := context.Background()

				var all []types.Turn
				for i := 0; i < exchanges; i++ {
					prompt := fmt.Sprintf("q%d", i)
					answer := fmt.Sprintf("a%d", i)
					_, _, err := m.Exchange(ctx, "s", prompt, func(ctx context.Context, window []types.Turn) (string, error) {
						return answer, nil
					})
					require.NoError(t, err)
					all = append(all, types.UserTurn(prompt), types.AssistantTurn(answer))
				}

				window := m.GetWindow(ctx, "s")
				assert.LessOrEqual(t, len(window), bound)

				want := all
				if len(want) > bound {
					want = want[len(want)-bound:]
				}
				assert.Equal(t, want, window)
			})
		}
	}
}

func TestExchangeSeesTrimmedWindow(t *testing.T) {
	m := newManager(4)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := m.Exchange(ctx, "s", fmt.Sprint(i), echo)
		require.NoError(t, err)
	}

	_, _, err := m.Exchange(ctx, "s", "last", func(ctx context.Context, window []types.Turn) (string, error) {
		assert.Len(t, window, 4)
		assert.Equal(t, types.UserTurn("3"), window[0])
		return "ok", nil
	})
	require.NoError(t, err)
}
