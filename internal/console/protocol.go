package console

import (
	"encoding/json"
	"fmt"
)

// Panel (Wings) websocket event names.
const (
	EventAuth          = "auth"
	EventAuthSuccess   = "auth success"
	EventSendLogs      = "send logs"
	EventSendCommand   = "send command"
	EventConsoleOutput = "console output"
	EventStatus        = "status"
	EventTokenExpiring = "token expiring"
	EventTokenExpired  = "token expired"
	EventJWTError      = "jwt error"
)

// Frame is one `{event, args}` message as read off a socket.
type Frame struct {
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Args  []any  `json:"args"`
}

func EncodeFrame(event string, args ...any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return json.Marshal(outboundFrame{Event: event, Args: args})
}

func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("frame has no event")
	}
	return f, nil
}

// StringArg returns args[i] when it is a JSON string.
func (f Frame) StringArg(i int) (string, bool) {
	if i >= len(f.Args) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(f.Args[i], &s); err != nil {
		return "", false
	}
	return s, true
}
