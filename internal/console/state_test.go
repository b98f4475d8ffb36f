package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var allTriggers = []trigger{
	handshakeReceived, handshakeRejected, socketOpened, socketUnreachable, authAccepted,
	authRejected, tokenRefreshed, tokenExpired, closedNormally, connectionLost,
}

func TestTransitionHappyPath(t *testing.T) {
	state := StateRequesting
	for _, step := range []struct {
		t    trigger
		want State
	}{
		{handshakeReceived, StateConnecting},
		{socketOpened, StateAuthenticating},
		{authAccepted, StateStreaming},
		{tokenRefreshed, StateStreaming},
		{closedNormally, StateClosed},
	} {
		next, err := transition(state, step.t)
		require.NoError(t, err)
		assert.Equal(t, step.want, next)
		state = next
	}
}

func TestFailedReachableFromEveryLiveState(t *testing.T) {
	cases := map[State]trigger{
		StateRequesting:     handshakeRejected,
		StateConnecting:     socketUnreachable,
		StateAuthenticating: authRejected,
		StateStreaming:      tokenExpired,
	}
	for from, tr := range cases {
		next, err := transition(from, tr)
		require.NoError(t, err, from.String())
		assert.Equal(t, StateFailed, next, from.String())
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, from := range []State{StateClosed, StateFailed} {
		for _, tr := range allTriggers {
			next, err := transition(from, tr)
			assert.Error(t, err)
			assert.Equal(t, from, next)
		}
	}
}

func TestOutOfOrderTriggerRejected(t *testing.T) {
	next, err := transition(StateRequesting, authAccepted)
	assert.Error(t, err)
	assert.Equal(t, StateRequesting, next)
}

func TestReasonFor(t *testing.T) {
	assert.Equal(t, ReasonHandshakeRejected, reasonFor(StateRequesting, handshakeRejected))
	assert.Equal(t, ReasonConnectionLost, reasonFor(StateConnecting, socketUnreachable))
	assert.Equal(t, ReasonAuthFailed, reasonFor(StateAuthenticating, authRejected))
	assert.Equal(t, ReasonAuthFailed, reasonFor(StateAuthenticating, connectionLost))
	assert.Equal(t, ReasonConnectionLost, reasonFor(StateStreaming, connectionLost))
	assert.Equal(t, ReasonSessionExpired, reasonFor(StateStreaming, tokenExpired))
	assert.Equal(t, ReasonClosed, reasonFor(StateStreaming, closedNormally))
}

func TestTransitionsNeverLeaveTerminal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seq := rapid.SliceOf(rapid.SampledFrom(allTriggers)).Draw(t, "triggers")
		state := StateRequesting
		terminal := false
		for _, tr := range seq {
			next, err := transition(state, tr)
			if terminal && (err == nil || next != state) {
				t.Fatalf("left terminal state %s via trigger %d", state, tr)
			}
			if err != nil && next != state {
				t.Fatalf("rejected trigger changed state %s -> %s", state, next)
			}
			state = next
			terminal = state.Terminal()
		}
	})
}
