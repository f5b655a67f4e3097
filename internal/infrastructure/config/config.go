package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is everything ctlremapd reads at startup, one YAML file with a
// section per subsystem. Secrets can ride environment variables instead
// of the file; see applyEnvOverrides.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Rules     RulesConfig     `yaml:"rules"`
	Database  DatabaseConfig  `yaml:"database"`
	History   HistoryConfig   `yaml:"history"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ProviderConfig describes the child control provider the daemon fronts.
type ProviderConfig struct {
	// Name labels the card on status surfaces (API, MQTT).
	Name string `yaml:"name"`

	// Seed is an optional YAML file of element definitions loaded at
	// startup. Empty means the card starts with no elements.
	Seed string `yaml:"seed"`
}

// RulesConfig locates the remap rules file.
type RulesConfig struct {
	// Path to the rules YAML. Empty disables remapping; the daemon then
	// exposes the child namespace untouched.
	Path string `yaml:"path"`

	// Watch reloads the rules file when it changes on disk.
	Watch bool `yaml:"watch"`
}

// DatabaseConfig is the SQLite history store. BusyTimeout is in
// seconds.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig controls the control-change history log.
type HistoryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// MQTTConfig is the broker mirror. BaseTopic roots the daemon's topic
// tree; QoS applies to every publish.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	BaseTopic string              `yaml:"base_topic"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig says where the broker lives and who this client is.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig is the broker credential. Prefer the environment
// variables over putting the password in the file.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig shapes the backoff after a lost broker link.
// Delays are in seconds; MaxAttempts zero retries forever.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig is the HTTP listener.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig points at the certificate pair for HTTPS.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds the HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig shapes the cross-origin headers for the web UI. Empty
// lists fall back to permissive defaults suited to LAN deployments.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig tunes the event stream endpoint. Intervals are in
// seconds; MaxMessageSize is in bytes.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig is the optional telemetry sink. FlushInterval is in
// seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects level, format, and destination for slog output.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig applies when logging.output is "file". Sizes are in
// megabytes, MaxAge in days.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// SecurityConfig guards the mutating API surface.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	Admin     AdminConfig     `yaml:"admin"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig signs issued tokens. TTLs are in minutes.
type JWTConfig struct {
	Secret          string `yaml:"secret"`
	AccessTokenTTL  int    `yaml:"access_token_ttl"`
	RefreshTokenTTL int    `yaml:"refresh_token_ttl"`
}

// AdminConfig holds the single administrative credential. The daemon has no
// user store; one configured login guards the mutating API surface.
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// RateLimitConfig throttles login attempts.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// Load reads the YAML file at path over the built-in defaults, applies
// environment overrides on top, and validates the result. The
// precedence is fixed: defaults, then file, then environment.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig is the baseline a bare config file inherits. Everything
// here must make sense on a development machine with no broker and no
// InfluxDB.
func defaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name: "default",
		},
		Rules: RulesConfig{
			Path:  "./config/rules.yaml",
			Watch: true,
		},
		Database: DatabaseConfig{
			Path:        "./data/ctlremap.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ctlremap",
			},
			QoS:       1,
			BaseTopic: "ctlremap",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL:  15,
				RefreshTokenTTL: 1440,
			},
			Admin: AdminConfig{
				Username: "admin",
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 100,
			},
		},
	}
}

// applyEnvOverrides lets deployment-specific values and secrets come
// from the environment instead of the file. Every override is a plain
// string; a set variable always wins over the file.
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"CTLREMAP_SEED_PATH":           &cfg.Provider.Seed,
		"CTLREMAP_RULES_PATH":          &cfg.Rules.Path,
		"CTLREMAP_DATABASE_PATH":       &cfg.Database.Path,
		"CTLREMAP_MQTT_HOST":           &cfg.MQTT.Broker.Host,
		"CTLREMAP_MQTT_USERNAME":       &cfg.MQTT.Auth.Username,
		"CTLREMAP_MQTT_PASSWORD":       &cfg.MQTT.Auth.Password,
		"CTLREMAP_API_HOST":            &cfg.API.Host,
		"CTLREMAP_INFLUXDB_TOKEN":      &cfg.InfluxDB.Token,
		"CTLREMAP_JWT_SECRET":          &cfg.Security.JWT.Secret,
		"CTLREMAP_ADMIN_PASSWORD_HASH": &cfg.Security.Admin.PasswordHash,
	}

	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

// Validate collects every problem with the configuration into one
// error, so operators fix a bad file in one round rather than
// one restart per mistake.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.History.RetentionDays < 0 {
		errs = append(errs, "history.retention_days must not be negative")
	}

	if c.Rules.Watch && c.Rules.Path == "" {
		errs = append(errs, "rules.watch requires rules.path")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.BaseTopic == "" {
		errs = append(errs, "mqtt.base_topic is required when mqtt is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The API can change mixer routing and mute states on a live system;
	// an empty or guessable JWT secret would let anyone forge a token
	// and do that.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set CTLREMAP_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.Security.Admin.Username == "" {
		errs = append(errs, "security.admin.username is required")
	}
	if c.Security.Admin.PasswordHash == "" {
		errs = append(errs, "security.admin.password_hash is required (set CTLREMAP_ADMIN_PASSWORD_HASH environment variable)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
