package config

import (
	"os"
	"path/filepath"
	"testing"
)

// validSecurity fills the fields Validate refuses to run without.
func validSecurity() SecurityConfig {
	return SecurityConfig{
		JWT:   JWTConfig{Secret: "test-secret-key-at-least-32-chars!"},
		Admin: AdminConfig{Username: "admin", PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
	}
}

// validConfig is the smallest configuration Validate accepts. Test
// cases mutate one field each to prove that field is checked.
func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "/data/ctlremap.db"},
		MQTT:     MQTTConfig{QoS: 1},
		API:      APIConfig{Port: 8080},
		Security: validSecurity(),
	}
}

// writeConfigFile drops YAML content into a temp file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfigFile(t, `
provider:
  name: "studio-card"
  seed: "/etc/ctlremap/card.yaml"
rules:
  path: "/etc/ctlremap/rules.yaml"
  watch: true
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
  admin:
    username: "admin"
    password_hash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider.Name != "studio-card" {
		t.Errorf("Provider.Name = %q, want %q", cfg.Provider.Name, "studio-card")
	}
	if cfg.Rules.Path != "/etc/ctlremap/rules.yaml" {
		t.Errorf("Rules.Path = %q, want %q", cfg.Rules.Path, "/etc/ctlremap/rules.yaml")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Sections the file omitted keep their defaults.
	if cfg.WebSocket.PingInterval != 30 {
		t.Errorf("WebSocket.PingInterval = %d, want default 30", cfg.WebSocket.PingInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "invalid: [yaml: content")

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	// Empty database.path and no security section.
	path := writeConfigFile(t, `
database:
  path: ""
api:
  port: 8080
`)

	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"negative history retention", func(c *Config) { c.History.RetentionDays = -1 }, true},
		{"watch without rules path", func(c *Config) { c.Rules.Watch = true }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"mqtt enabled without base topic", func(c *Config) { c.MQTT.Enabled = true }, true},
		{"port zero", func(c *Config) { c.API.Port = 0 }, true},
		{"port out of range", func(c *Config) { c.API.Port = 70000 }, true},
		{"missing JWT secret", func(c *Config) { c.Security.JWT.Secret = "" }, true},
		{"JWT secret too short", func(c *Config) { c.Security.JWT.Secret = "short" }, true},
		{"missing admin password hash", func(c *Config) { c.Security.Admin.PasswordHash = "" }, true},
		{"missing admin username", func(c *Config) { c.Security.Admin.Username = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"CTLREMAP_SEED_PATH":           "/custom/card.yaml",
		"CTLREMAP_RULES_PATH":          "/custom/rules.yaml",
		"CTLREMAP_DATABASE_PATH":       "/custom/path.db",
		"CTLREMAP_MQTT_HOST":           "mqtt.example.com",
		"CTLREMAP_MQTT_USERNAME":       "testuser",
		"CTLREMAP_MQTT_PASSWORD":       "testpass",
		"CTLREMAP_API_HOST":            "192.168.1.1",
		"CTLREMAP_INFLUXDB_TOKEN":      "secret-token",
		"CTLREMAP_JWT_SECRET":          "jwt-secret",
		"CTLREMAP_ADMIN_PASSWORD_HASH": "hash-from-env",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	got := map[string]string{
		"CTLREMAP_SEED_PATH":           cfg.Provider.Seed,
		"CTLREMAP_RULES_PATH":          cfg.Rules.Path,
		"CTLREMAP_DATABASE_PATH":       cfg.Database.Path,
		"CTLREMAP_MQTT_HOST":           cfg.MQTT.Broker.Host,
		"CTLREMAP_MQTT_USERNAME":       cfg.MQTT.Auth.Username,
		"CTLREMAP_MQTT_PASSWORD":       cfg.MQTT.Auth.Password,
		"CTLREMAP_API_HOST":            cfg.API.Host,
		"CTLREMAP_INFLUXDB_TOKEN":      cfg.InfluxDB.Token,
		"CTLREMAP_JWT_SECRET":          cfg.Security.JWT.Secret,
		"CTLREMAP_ADMIN_PASSWORD_HASH": cfg.Security.Admin.PasswordHash,
	}
	for k, want := range env {
		if got[k] != want {
			t.Errorf("%s: applied value = %q, want %q", k, got[k], want)
		}
	}
}

func TestApplyEnvOverrides_UnsetLeavesFileValue(t *testing.T) {
	// An empty variable counts as unset.
	t.Setenv("CTLREMAP_DATABASE_PATH", "")

	cfg := defaultConfig()
	cfg.Database.Path = "/from/file.db"

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/from/file.db" {
		t.Errorf("Database.Path = %q, want file value kept", cfg.Database.Path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Provider.Name == "" {
		t.Error("defaultConfig should have non-empty Provider.Name")
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if !cfg.History.Enabled {
		t.Error("defaultConfig should enable history")
	}
}
