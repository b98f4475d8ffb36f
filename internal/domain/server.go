package domain

import "time"

type ServerState string

const (
	StateRunning  ServerState = "running"
	StateOffline  ServerState = "offline"
	StateStarting ServerState = "starting"
	StateStopping ServerState = "stopping"
	StateUnknown  ServerState = "unknown"
)

// ParseServerState maps a panel current_state value onto the known set.
func ParseServerState(s string) ServerState {
	switch ServerState(s) {
	case StateRunning, StateOffline, StateStarting, StateStopping:
		return ServerState(s)
	}
	return StateUnknown
}

type Signal string

const (
	SignalStart   Signal = "start"
	SignalStop    Signal = "stop"
	SignalRestart Signal = "restart"
	SignalKill    Signal = "kill"
)

func ParseSignal(s string) (Signal, error) {
	switch Signal(s) {
	case SignalStart, SignalStop, SignalRestart, SignalKill:
		return Signal(s), nil
	}
	return "", ErrInvalidSignal
}

type ServerSummary struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Node      string      `json:"node"`
	Status    string      `json:"status"`
	UUID      string      `json:"uuid"`
	IP        string      `json:"ip"`
	Port      int         `json:"port"`
	OwnerID   string      `json:"ownerId"`
	OwnerName string      `json:"ownerName,omitempty"`
	State     ServerState `json:"state"`
}

type ServerStatus struct {
	ID      string      `json:"id"`
	OwnerID string      `json:"ownerId"`
	State   ServerState `json:"state"`
}

type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func Succeeded(message string) ActionResult {
	return ActionResult{Success: true, Message: message}
}

func Failed(err error) ActionResult {
	return ActionResult{Success: false, Message: err.Error()}
}

// ConsoleHandshake is the short-lived socket location and token for one console connection.
type ConsoleHandshake struct {
	SocketURL string `json:"socket"`
	Token     string `json:"token"`
}

type Backup struct {
	UUID        string     `json:"uuid"`
	Name        string     `json:"name"`
	Bytes       int64      `json:"bytes"`
	Successful  bool       `json:"successful"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type FileEntry struct {
	Name       string    `json:"name"`
	Mode       string    `json:"mode"`
	Size       int64     `json:"size"`
	IsFile     bool      `json:"isFile"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
