package domain

import (
	"context"
	"time"
)

type UserRepository interface {
	CreateUser(user *User) error
	GetUserByUsername(username string) (*User, error)
	GetUserByID(id string) (*User, error)
	ListUsers() ([]User, error)
	DeleteUser(id string) error
	UpdatePassword(userID string, hashedPassword string) error
	UpdatePanelCredentials(userID string, panelURL string, apiKey string) error
}

// TenantRepository is the read side the core needs from the user store.
type TenantRepository interface {
	TenantByID(ctx context.Context, ownerID string) (*TenantCredential, error)
	ListTenants(ctx context.Context) ([]TenantCredential, error)
}

type ActionLogRepository interface {
	RecordAction(ctx context.Context, entry ActionLog) error
	ListActions(ctx context.Context, limit int) ([]ActionLog, error)
}

// BanRepository backs login throttling.
type BanRepository interface {
	ActiveBan(ctx context.Context, ip string, now time.Time) (*Ban, error)
	ListBans(ctx context.Context) ([]Ban, error)
	CreateBan(ctx context.Context, ban *Ban) error
	DeleteBan(ctx context.Context, id uint) error
	RecordFailedLogin(ctx context.Context, ip string, now time.Time) (int, error)
	ClearFailedLogins(ctx context.Context, ip string) error
}

type Repository interface {
	UserRepository
	TenantRepository
	ActionLogRepository
	BanRepository
}
