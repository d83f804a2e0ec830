package domain

import "time"

// Config holds the complete Cormorant configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines which backends are used
	Tier Tier `json:"tier"`

	// Component configurations
	Cache    CacheConfig    `json:"cache"`
	EventBus EventBusConfig `json:"eventBus"`
	Model    ModelConfig    `json:"model"`
	Rules    RulesConfig    `json:"rules"`
	Notifier NotifierConfig `json:"notifier"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ModelConfig locates the trained-model artifact bundle. A missing or broken
// bundle is not fatal: the service degrades to rule-based scoring.
type ModelConfig struct {
	// Dir is the artifact directory holding model.json, scaler.json and
	// feature_names.json. Empty disables the learned-model path.
	Dir string `json:"dir"`
}

// RulesConfig locates operator-defined supplemental rules.
type RulesConfig struct {
	// File is an optional JSON file of CEL rule configs loaded at startup
	// and on POST /rules/reload.
	File string `json:"file"`
}

// NotifierConfig holds alert email settings. Disabled when SMTPHost is empty.
type NotifierConfig struct {
	SMTPHost string `json:"smtpHost"`
	SMTPPort int    `json:"smtpPort"`
	Username string `json:"username"`
	Password string `json:"-"`
	From     string `json:"from"`
	// OwnerEmail receives alert notifications when the flagged booking
	// carries no owner contact of its own.
	OwnerEmail string `json:"ownerEmail"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs self-contained: LRU cache + channel bus.
	TierCommunity Tier = "community"

	// TierPro runs with Redis + NATS for multi-node deployments.
	TierPro Tier = "pro"
)

// DefaultConfig returns a Community tier configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5001,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Model: ModelConfig{
			Dir: "./model",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "cormorant",
		},
	}
}

// ProConfig returns a Pro tier configuration backed by Redis and NATS.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
