package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const (
	secretFileName = ".eggmanager_secret"
	secretEnv      = "EGGMANAGER_SECRET_KEY"
	devEnv         = "EGGMANAGER_DEV"
)

func IsDev() bool {
	return os.Getenv(devEnv) != ""
}

// Dir is the per-user config directory, kept apart for dev builds.
func Dir() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	appName := "eggmanager"
	if IsDev() {
		appName = "eggmanager-dev"
	}
	return filepath.Join(userConfigDir, appName), nil
}

// LoadOrGenerateSecret returns the JWT signing secret: the env override,
// else the persisted one, else a fresh 32-byte hex secret saved for next time.
func LoadOrGenerateSecret(configDir string) string {
	if secret := os.Getenv(secretEnv); secret != "" {
		return secret
	}

	secretPath := filepath.Join(configDir, secretFileName)
	if data, err := os.ReadFile(secretPath); err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret
		}
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Fatal: could not generate secret: %v", err)
	}
	secret := hex.EncodeToString(buf)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		log.Printf("Warning: could not create config dir for secret: %v", err)
		return secret
	}
	if err := os.WriteFile(secretPath, []byte(secret), 0600); err != nil {
		log.Printf("Warning: could not persist secret: %v", err)
	}
	return secret
}
