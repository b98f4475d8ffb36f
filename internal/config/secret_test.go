package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrGenerateSecret(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "eggmanager-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	secret1 := LoadOrGenerateSecret(tempDir)
	if secret1 == "" {
		t.Error("Expected generated secret, got empty string")
	}
	if len(secret1) != 64 {
		t.Errorf("Expected 64 char hex string, got length %d", len(secret1))
	}

	secretPath := filepath.Join(tempDir, ".eggmanager_secret")
	if _, err := os.Stat(secretPath); os.IsNotExist(err) {
		t.Error("Secret file was not created")
	}

	secret2 := LoadOrGenerateSecret(tempDir)
	if secret1 != secret2 {
		t.Errorf("Expected secret to persist. Got %s, want %s", secret2, secret1)
	}

	t.Setenv("EGGMANAGER_SECRET_KEY", "custom-env-secret")

	secret3 := LoadOrGenerateSecret(tempDir)
	if secret3 != "custom-env-secret" {
		t.Errorf("Expected env var secret. Got %s, want custom-env-secret", secret3)
	}
}

func TestDirSeparatesDevBuilds(t *testing.T) {
	t.Setenv("EGGMANAGER_DEV", "")
	prod, err := Dir()
	if err != nil {
		t.Skipf("no user config dir: %v", err)
	}
	t.Setenv("EGGMANAGER_DEV", "1")
	dev, err := Dir()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(prod) != "eggmanager" || filepath.Base(dev) != "eggmanager-dev" {
		t.Errorf("unexpected dirs %q and %q", prod, dev)
	}
}
