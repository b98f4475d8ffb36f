// Package config loads daemon settings from config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultConfigName   = "config"
	defaultDatabaseFile = "eggmanager.db"
	envPrefix           = "EGGMANAGER"
)

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrustProxy takes the client IP from X-Forwarded-For. Enable only behind
	// a reverse proxy that overwrites the header.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// MaxLoginAttempts failed logins from one IP trigger a ban of BanDuration.
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	BanDuration      time.Duration `mapstructure:"ban_duration"`
}

// AdminConfig seeds the first admin account when it does not exist yet.
type AdminConfig struct {
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	PanelURL    string `mapstructure:"panel_url"`
	PanelAPIKey string `mapstructure:"panel_api_key"`
}

type DiscordConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type PanelConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxInFlight    int           `mapstructure:"max_in_flight"`
}

type ConsoleConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	HungNotice       time.Duration `mapstructure:"hung_notice"`
	AuthTimeout      time.Duration `mapstructure:"auth_timeout"`
	DialAttempts     int           `mapstructure:"dial_attempts"`
	DialBackoff      time.Duration `mapstructure:"dial_backoff"`
	LogBufferLines   int           `mapstructure:"log_buffer_lines"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is json or console.
	Format string `mapstructure:"format"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Panel    PanelConfig    `mapstructure:"panel"`
	Console  ConsoleConfig  `mapstructure:"console"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Load reads configDir/config.yaml when present, applies EGGMANAGER_*
// overrides, fills in the JWT secret and validates the result.
func Load(configDir string) (Config, error) {
	v := viper.New()
	v.SetConfigName(defaultConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg, err := LoadFromViper(v)
	if err != nil {
		return Config{}, err
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = LoadOrGenerateSecret(configDir)
	}
	// a bare PORT value is a port, not an address
	if addr := strings.TrimSpace(cfg.Server.Addr); addr != "" && !strings.Contains(addr, ":") {
		cfg.Server.Addr = ":" + addr
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// bindLegacyEnv keeps the variable names older deployments already set.
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"server.addr":         "PORT",
		"admin.username":      "ADMIN_USERNAME",
		"admin.password":      "ADMIN_PASSWORD",
		"admin.panel_url":     "PTERO_PANEL_URL",
		"admin.panel_api_key": "PTERO_API_KEY",
		"discord.token":       "DISCORD_TOKEN",
	}
	for key, name := range legacy {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, name)
	}
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("database.path", filepath.Join(configDir, defaultDatabaseFile))

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.max_login_attempts", 3)
	v.SetDefault("auth.ban_duration", 24*time.Hour)

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "password123")
	v.SetDefault("admin.panel_url", "")
	v.SetDefault("admin.panel_api_key", "")

	v.SetDefault("discord.enabled", false)
	v.SetDefault("discord.token", "")

	v.SetDefault("panel.request_timeout", 15*time.Second)
	v.SetDefault("panel.max_in_flight", 8)

	v.SetDefault("console.handshake_timeout", 10*time.Second)
	v.SetDefault("console.hung_notice", 15*time.Second)
	v.SetDefault("console.auth_timeout", 10*time.Second)
	v.SetDefault("console.dial_attempts", 3)
	v.SetDefault("console.dial_backoff", 500*time.Millisecond)
	v.SetDefault("console.log_buffer_lines", 500)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate reports every violation at once.
func (c Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		add("server.addr must not be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout must be positive")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		add("database.path must not be empty")
	}
	if c.Auth.JWTSecret == "" {
		add("auth.jwt_secret must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		add("auth.token_ttl must be positive")
	}
	if c.Auth.MaxLoginAttempts < 1 {
		add("auth.max_login_attempts must be >= 1, got %d", c.Auth.MaxLoginAttempts)
	}
	if c.Auth.BanDuration <= 0 {
		add("auth.ban_duration must be positive")
	}
	if strings.TrimSpace(c.Admin.Username) == "" {
		add("admin.username must not be empty")
	}
	if len(c.Admin.Password) < 6 {
		add("admin.password must be at least 6 characters")
	}
	if c.Discord.Enabled && strings.TrimSpace(c.Discord.Token) == "" {
		add("discord.token is required when discord.enabled is set")
	}
	if c.Panel.RequestTimeout <= 0 {
		add("panel.request_timeout must be positive")
	}
	if c.Panel.MaxInFlight < 1 {
		add("panel.max_in_flight must be >= 1, got %d", c.Panel.MaxInFlight)
	}

	con := c.Console
	if con.HandshakeTimeout <= 0 || con.AuthTimeout <= 0 || con.DialBackoff <= 0 {
		add("console timeouts must be positive")
	}
	if con.HungNotice <= con.HandshakeTimeout {
		add("console.hung_notice (%s) must be longer than console.handshake_timeout (%s)", con.HungNotice, con.HandshakeTimeout)
	}
	if con.DialAttempts < 1 {
		add("console.dial_attempts must be >= 1, got %d", con.DialAttempts)
	}
	if con.LogBufferLines < 1 {
		add("console.log_buffer_lines must be >= 1, got %d", con.LogBufferLines)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		add("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		add("logging.format must be one of [json, console], got %q", c.Logging.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
