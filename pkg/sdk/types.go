package sdk

import "time"

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	PanelURL string `json:"panelUrl"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Server struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Node      string `json:"node"`
	Status    string `json:"status"`
	UUID      string `json:"uuid"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	OwnerID   string `json:"ownerId"`
	OwnerName string `json:"ownerName"`
	State     string `json:"state"`
}

type ServerStatus struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	State   string `json:"state"`
}

type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Backup struct {
	UUID        string     `json:"uuid"`
	Name        string     `json:"name"`
	Bytes       int64      `json:"bytes"`
	Successful  bool       `json:"successful"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ConsoleEvent is one message on the console websocket.
type ConsoleEvent struct {
	Type    string `json:"type"`
	Line    string `json:"line,omitempty"`
	State   string `json:"state,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}
