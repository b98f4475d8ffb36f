package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eggmanager/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type User struct {
	ID          string `gorm:"primaryKey"`
	Username    string `gorm:"uniqueIndex;not null"`
	Password    string `gorm:"not null"`
	Role        string `gorm:"not null;default:user"`
	PanelURL    string
	PanelAPIKey string
	CreatedAt   time.Time
}

type ActionLog struct {
	ID        uint `gorm:"primaryKey"`
	Username  string
	IP        string `gorm:"not null"`
	Action    string `gorm:"not null;index"`
	Details   string
	Timestamp time.Time `gorm:"index"`
}

type LoginAttempt struct {
	IP          string `gorm:"primaryKey"`
	Attempts    int
	LastAttempt time.Time
}

type BannedIP struct {
	ID        uint   `gorm:"primaryKey"`
	IP        string `gorm:"index;not null"`
	Reason    string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(path string, log *zap.Logger) (*GormStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	stdLog, err := zap.NewStdLogAt(log.Named("gorm"), zapcore.WarnLevel)
	if err != nil {
		return nil, err
	}
	newLogger := gormlogger.New(
		stdLog,
		gormlogger.Config{
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
			LogLevel:                  gormlogger.Error,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&User{}, &ActionLog{}, &LoginAttempt{}, &BannedIP{})
	if err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SeedAdmin creates the admin account unless a user with that name exists.
// The password must already be hashed.
func (s *GormStore) SeedAdmin(username, hashedPassword, panelURL, apiKey string) (bool, error) {
	existing, err := s.GetUserByUsername(username)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	admin := &domain.User{
		Username:    username,
		Password:    hashedPassword,
		Role:        domain.RoleAdmin,
		PanelURL:    panelURL,
		PanelAPIKey: apiKey,
	}
	if err := s.CreateUser(admin); err != nil {
		return false, err
	}
	return true, nil
}

func (s *GormStore) CreateUser(user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	gormUser := &User{
		ID:          user.ID,
		Username:    user.Username,
		Password:    user.Password,
		Role:        user.Role,
		PanelURL:    user.PanelURL,
		PanelAPIKey: user.PanelAPIKey,
		CreatedAt:   user.CreatedAt,
	}
	if err := s.db.Create(gormUser).Error; err != nil {
		return fmt.Errorf("error creating user %s: %w", user.Username, err)
	}
	return nil
}

func toDomainUser(u User) domain.User {
	return domain.User{
		ID:          u.ID,
		Username:    u.Username,
		Password:    u.Password,
		Role:        u.Role,
		PanelURL:    u.PanelURL,
		PanelAPIKey: u.PanelAPIKey,
		CreatedAt:   u.CreatedAt,
	}
}

func (s *GormStore) findUser(db *gorm.DB, query string, arg any) (*domain.User, error) {
	var gormUser User
	result := db.First(&gormUser, query, arg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying user: %w", result.Error)
	}
	user := toDomainUser(gormUser)
	return &user, nil
}

func (s *GormStore) GetUserByUsername(username string) (*domain.User, error) {
	return s.findUser(s.db, "username = ?", username)
}

func (s *GormStore) GetUserByID(id string) (*domain.User, error) {
	return s.findUser(s.db, "id = ?", id)
}

func (s *GormStore) ListUsers() ([]domain.User, error) {
	var gormUsers []User
	if err := s.db.Order("created_at, id").Find(&gormUsers).Error; err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(gormUsers))
	for _, gu := range gormUsers {
		users = append(users, toDomainUser(gu))
	}
	return users, nil
}

func (s *GormStore) DeleteUser(id string) error {
	return s.db.Delete(&User{}, "id = ?", id).Error
}

func (s *GormStore) UpdatePassword(userID string, hashedPassword string) error {
	return s.db.Model(&User{}).Where("id = ?", userID).Update("password", hashedPassword).Error
}

func (s *GormStore) UpdatePanelCredentials(userID string, panelURL string, apiKey string) error {
	updates := map[string]interface{}{
		"panel_url":     panelURL,
		"panel_api_key": apiKey,
	}
	return s.db.Model(&User{}).Where("id = ?", userID).Updates(updates).Error
}

func (s *GormStore) TenantByID(ctx context.Context, ownerID string) (*domain.TenantCredential, error) {
	user, err := s.findUser(s.db.WithContext(ctx), "id = ?", ownerID)
	if err != nil || user == nil {
		return nil, err
	}
	tenant := user.Tenant()
	return &tenant, nil
}

func (s *GormStore) ListTenants(ctx context.Context) ([]domain.TenantCredential, error) {
	var gormUsers []User
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&gormUsers).Error; err != nil {
		return nil, err
	}
	tenants := make([]domain.TenantCredential, 0, len(gormUsers))
	for _, gu := range gormUsers {
		tenants = append(tenants, toDomainUser(gu).Tenant())
	}
	return tenants, nil
}

func (s *GormStore) RecordAction(ctx context.Context, entry domain.ActionLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(&ActionLog{
		Username:  entry.Username,
		IP:        entry.IP,
		Action:    entry.Action,
		Details:   entry.Details,
		Timestamp: entry.Timestamp,
	}).Error
}

// ListActions returns the most recent entries first.
func (s *GormStore) ListActions(ctx context.Context, limit int) ([]domain.ActionLog, error) {
	var rows []ActionLog
	q := s.db.WithContext(ctx).Order("timestamp desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ActionLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ActionLog{
			ID:        r.ID,
			Username:  r.Username,
			IP:        r.IP,
			Action:    r.Action,
			Details:   r.Details,
			Timestamp: r.Timestamp,
		})
	}
	return out, nil
}

func toDomainBan(b BannedIP) domain.Ban {
	return domain.Ban{ID: b.ID, IP: b.IP, Reason: b.Reason, ExpiresAt: b.ExpiresAt, CreatedAt: b.CreatedAt}
}

func (s *GormStore) ActiveBan(ctx context.Context, ip string, now time.Time) (*domain.Ban, error) {
	var ban BannedIP
	result := s.db.WithContext(ctx).
		Where("ip = ? AND (expires_at IS NULL OR expires_at > ?)", ip, now).
		Order("id desc").
		First(&ban)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying bans: %w", result.Error)
	}
	out := toDomainBan(ban)
	return &out, nil
}

func (s *GormStore) ListBans(ctx context.Context) ([]domain.Ban, error) {
	var rows []BannedIP
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	bans := make([]domain.Ban, 0, len(rows))
	for _, r := range rows {
		bans = append(bans, toDomainBan(r))
	}
	return bans, nil
}

func (s *GormStore) CreateBan(ctx context.Context, ban *domain.Ban) error {
	row := &BannedIP{IP: ban.IP, Reason: ban.Reason, ExpiresAt: ban.ExpiresAt}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("error banning %s: %w", ban.IP, err)
	}
	ban.ID = row.ID
	ban.CreatedAt = row.CreatedAt
	return nil
}

func (s *GormStore) DeleteBan(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&BannedIP{}, id).Error
}

// RecordFailedLogin bumps the IP's counter and returns the new count.
func (s *GormStore) RecordFailedLogin(ctx context.Context, ip string, now time.Time) (int, error) {
	var attempts int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row LoginAttempt
		result := tx.First(&row, "ip = ?", ip)
		if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			row = LoginAttempt{IP: ip}
		}
		row.Attempts++
		row.LastAttempt = now
		attempts = row.Attempts
		return tx.Save(&row).Error
	})
	if err != nil {
		return 0, fmt.Errorf("error recording login attempt: %w", err)
	}
	return attempts, nil
}

func (s *GormStore) ClearFailedLogins(ctx context.Context, ip string) error {
	return s.db.WithContext(ctx).Delete(&LoginAttempt{}, "ip = ?", ip).Error
}
