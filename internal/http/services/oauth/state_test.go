package oauth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cachemem "github.com/samuvale95/swift-study-box-be/internal/cache/memory"
)

func newTestStates() *StateStore {
	return NewStateStore(cachemem.New(time.Minute))
}

func TestStateIssueAndConsume(t *testing.T) {
	states := newTestStates()

	state, err := states.Issue("google", "")
	require.NoError(t, err)
	require.NotEmpty(t, state)

	provider, err := states.Consume(state)
	require.NoError(t, err)
	require.Equal(t, "google", provider)
}

func TestStateIsSingleUse(t *testing.T) {
	states := newTestStates()

	state, err := states.Issue("google", "")
	require.NoError(t, err)

	_, err = states.Consume(state)
	require.NoError(t, err)

	_, err = states.Consume(state)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestStateUnknownAndEmpty(t *testing.T) {
	states := newTestStates()

	_, err := states.Consume("never-issued")
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = states.Consume("")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestStateCallerSuppliedValueIsKept(t *testing.T) {
	states := newTestStates()

	state, err := states.Issue("apple", "client-chosen-state")
	require.NoError(t, err)
	require.Equal(t, "client-chosen-state", state)

	provider, err := states.Consume("client-chosen-state")
	require.NoError(t, err)
	require.Equal(t, "apple", provider)
}

func TestStateExpiresAfterTTL(t *testing.T) {
	states := newTestStates()

	base := time.Now()
	states.now = func() time.Time { return base }

	state, err := states.Issue("google", "")
	require.NoError(t, err)

	// Just inside the deadline it still consumes
	states.now = func() time.Time { return base.Add(states.ttl - time.Second) }
	provider, err := states.Consume(state)
	require.NoError(t, err)
	require.Equal(t, "google", provider)

	// Just past it the state is dead even if the cache kept the entry
	states.now = func() time.Time { return base }
	state, err = states.Issue("google", "")
	require.NoError(t, err)
	states.now = func() time.Time { return base.Add(states.ttl + time.Second) }
	_, err = states.Consume(state)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestStateConcurrentConsumeHasOneWinner(t *testing.T) {
	states := newTestStates()

	state, err := states.Issue("google", "")
	require.NoError(t, err)

	const racers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			if _, err := states.Consume(state); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
}

func TestStateDistinctPerIssue(t *testing.T) {
	states := newTestStates()

	a, err := states.Issue("google", "")
	require.NoError(t, err)
	b, err := states.Issue("google", "")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
