package console

import "fmt"

type State int

const (
	StateRequesting State = iota
	StateConnecting
	StateAuthenticating
	StateStreaming
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// Reason tells the caller why a session ended, so it can decide whether to retry.
type Reason string

const (
	ReasonClosed            Reason = "closed"
	ReasonHandshakeRejected Reason = "handshake_rejected"
	ReasonAuthFailed        Reason = "auth_failed"
	ReasonConnectionLost    Reason = "connection_lost"
	ReasonSessionExpired    Reason = "session_expired"
)

type trigger int

const (
	handshakeReceived trigger = iota
	handshakeRejected
	socketOpened
	socketUnreachable
	authAccepted
	authRejected
	tokenRefreshed
	tokenExpired
	closedNormally
	connectionLost
)

var transitions = map[State]map[trigger]State{
	StateRequesting: {
		handshakeReceived: StateConnecting,
		handshakeRejected: StateFailed,
		closedNormally:    StateClosed,
	},
	StateConnecting: {
		socketOpened:      StateAuthenticating,
		socketUnreachable: StateFailed,
		closedNormally:    StateClosed,
	},
	StateAuthenticating: {
		authAccepted:   StateStreaming,
		authRejected:   StateFailed,
		tokenExpired:   StateFailed,
		connectionLost: StateFailed,
		closedNormally: StateClosed,
	},
	StateStreaming: {
		authAccepted:   StateStreaming,
		tokenRefreshed: StateStreaming,
		tokenExpired:   StateFailed,
		connectionLost: StateClosed,
		closedNormally: StateClosed,
	},
}

// transition is the only place session state changes are decided.
func transition(from State, t trigger) (State, error) {
	next, ok := transitions[from][t]
	if !ok {
		return from, fmt.Errorf("console: trigger %d not valid in state %s", t, from)
	}
	return next, nil
}

// reasonFor names why a terminal transition out of from happened.
func reasonFor(from State, t trigger) Reason {
	switch t {
	case handshakeRejected:
		return ReasonHandshakeRejected
	case socketUnreachable:
		return ReasonConnectionLost
	case authRejected:
		return ReasonAuthFailed
	case tokenExpired:
		return ReasonSessionExpired
	case connectionLost:
		if from == StateAuthenticating {
			return ReasonAuthFailed
		}
		return ReasonConnectionLost
	}
	return ReasonClosed
}
