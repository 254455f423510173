package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BLUELINK_BASE_URL", "https://api.example.test")
	t.Setenv("BLUELINK_USERNAME", "driver@example.test")
	t.Setenv("BLUELINK_PASSWORD", "secret")
	t.Setenv("BRIDGE_CONFIG", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MQTT.BaseTopic != "bluelink" || cfg.MQTT.QoS != 1 {
		t.Fatalf("unexpected mqtt defaults: %+v", cfg.MQTT)
	}
	if cfg.Bridge.PollInterval != 5*time.Second {
		t.Fatalf("unexpected poll interval: %v", cfg.Bridge.PollInterval)
	}
	if cfg.Bluelink.AuthPatterns != nil {
		t.Fatalf("expected no extra auth patterns, got %v", cfg.Bluelink.AuthPatterns)
	}
}

func TestLoadAuthPatternsFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BLUELINK_AUTH_PATTERNS", "session invalid, token revoked ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"session invalid", "token revoked"}
	if len(cfg.Bluelink.AuthPatterns) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Bluelink.AuthPatterns)
	}
	for i, pattern := range want {
		if cfg.Bluelink.AuthPatterns[i] != pattern {
			t.Fatalf("expected %v, got %v", want, cfg.Bluelink.AuthPatterns)
		}
	}
}

func TestLoadFileWinsOverEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MQTT_BASE_TOPIC", "env-topic")

	path := filepath.Join(t.TempDir(), "bridge.yaml")
	data := []byte("mqtt:\n  base_topic: file-topic\nbluelink:\n  auth_error_patterns:\n    - from file\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BRIDGE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MQTT.BaseTopic != "file-topic" {
		t.Fatalf("expected file value, got %q", cfg.MQTT.BaseTopic)
	}
	if len(cfg.Bluelink.AuthPatterns) != 1 || cfg.Bluelink.AuthPatterns[0] != "from file" {
		t.Fatalf("unexpected auth patterns: %v", cfg.Bluelink.AuthPatterns)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("BLUELINK_BASE_URL", "")
	t.Setenv("BLUELINK_USERNAME", "")
	t.Setenv("BLUELINK_PASSWORD", "")
	t.Setenv("BRIDGE_CONFIG", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing base url")
	}

	t.Setenv("BLUELINK_BASE_URL", "https://api.example.test")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}
