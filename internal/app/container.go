// Package app wires the daemon's components together.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"eggmanager/internal/config"
	"eggmanager/internal/console"
	"eggmanager/internal/control"
	"eggmanager/internal/credentials"
	"eggmanager/internal/panel"
	"eggmanager/internal/status"
	"eggmanager/internal/storage"
	"eggmanager/internal/ws"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Container struct {
	Config  config.Config
	Log     *zap.Logger
	Store   *storage.GormStore
	Panel   *panel.Client
	Relay   *console.Relay
	Control *control.Service
	Bridge  *ws.Bridge
}

// PasswordCost is the bcrypt cost for every stored password.
var PasswordCost = bcrypt.DefaultCost

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func NewContainer(cfg config.Config, log *zap.Logger) (*Container, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	store, err := storage.NewGormStore(cfg.Database.Path, log)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if err := seedAdmin(store, cfg.Admin, log); err != nil {
		store.Close()
		return nil, err
	}

	panelClient := panel.NewClient(cfg.Panel.RequestTimeout, log)
	relay := console.NewRelay(panelClient, nil, ConsoleConfig(cfg.Console), log)
	aggregator := status.NewAggregator(panelClient, cfg.Panel.MaxInFlight, log)
	svc := control.NewService(
		credentials.NewResolver(store),
		panelClient,
		aggregator,
		relay,
		store,
		log,
	)

	return &Container{
		Config:  cfg,
		Log:     log,
		Store:   store,
		Panel:   panelClient,
		Relay:   relay,
		Control: svc,
		Bridge:  ws.NewBridge(log),
	}, nil
}

func ConsoleConfig(c config.ConsoleConfig) console.Config {
	return console.Config{
		HandshakeTimeout: c.HandshakeTimeout,
		HungNotice:       c.HungNotice,
		AuthTimeout:      c.AuthTimeout,
		DialAttempts:     c.DialAttempts,
		DialBackoff:      c.DialBackoff,
		LogBufferLines:   c.LogBufferLines,
	}
}

func seedAdmin(store *storage.GormStore, admin config.AdminConfig, log *zap.Logger) error {
	hashed, err := HashPassword(admin.Password)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}
	created, err := store.SeedAdmin(admin.Username, hashed, admin.PanelURL, admin.PanelAPIKey)
	if err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	if created {
		log.Info("admin user created", zap.String("username", admin.Username))
	}
	return nil
}

// Close ends every console session and releases the store.
func (c *Container) Close() error {
	c.Relay.Registry().CloseAll()
	return c.Store.Close()
}
