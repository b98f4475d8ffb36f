package domain

import (
	"strings"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Password    string    `json:"-"`
	Role        string    `json:"role"`
	PanelURL    string    `json:"panelUrl"`
	PanelAPIKey string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u User) Tenant() TenantCredential {
	return TenantCredential{
		OwnerID:   u.ID,
		OwnerName: u.Username,
		BaseURL:   u.PanelURL,
		APIKey:    u.PanelAPIKey,
	}
}

// TenantCredential is the panel location and key owned by one user. It is
// passed by value into every upstream call and never mutated by the core.
type TenantCredential struct {
	OwnerID   string
	OwnerName string
	BaseURL   string
	APIKey    string
}

func (t TenantCredential) Active() bool {
	return strings.TrimSpace(t.BaseURL) != "" && strings.TrimSpace(t.APIKey) != ""
}

// Caller is the authenticated identity behind a request, as supplied by the
// session layer (JWT middleware, Discord bot).
type Caller struct {
	ID       string
	Username string
	Role     string
	IP       string
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type ActionLog struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	IP        string    `json:"ip"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Ban blocks logins from one IP. A nil ExpiresAt never expires.
type Ban struct {
	ID        uint       `json:"id"`
	IP        string     `json:"ip"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (b Ban) ActiveAt(t time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(t)
}
