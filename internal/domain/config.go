package domain

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines which backends are wired in
	Tier Tier `json:"tier"`

	// Component configurations
	Store    StoreConfig    `json:"store"`
	Velocity VelocityConfig `json:"velocity"`
	EventBus EventBusConfig `json:"eventBus"`
	Archive  ArchiveConfig  `json:"archive"`

	// CustomRules are expression rules compiled and registered into the
	// engine at startup, after the builtins.
	CustomRules []CustomRuleConfig `json:"customRules"`

	// SeedSampleData loads a deterministic set of sample transactions at
	// startup, for dashboards and local development.
	SeedSampleData bool `json:"seedSampleData"`

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

// StoreConfig holds settings for the in-memory stores.
type StoreConfig struct {
	// TransactionCapacity bounds the transaction store; insertion beyond
	// it evicts the oldest entries.
	TransactionCapacity int `json:"transactionCapacity"`
}

// VelocityConfig selects the velocity counter backend.
type VelocityConfig struct {
	// Backend is "memory" or "redis".
	Backend string `json:"backend"`

	// WindowSecs is the sliding window for velocity counts.
	WindowSecs int `json:"windowSecs"`

	// Redis settings
	RedisAddr     string `json:"redisAddr"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redisDb"`
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats".
	Type string `json:"type"`

	// Channel settings
	ChannelBufferSize int `json:"channelBufferSize"`

	// NATS settings
	NATSUrl           string `json:"natsUrl"`
	NATSToken         string `json:"-"`
	NATSMaxReconnects int    `json:"natsMaxReconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait"` // seconds
}

// CustomRuleConfig defines one expression rule. The expression evaluates
// over transaction fields and must return a boolean; firing contributes
// the given score and reason. The threshold is exposed to the expression
// as the "threshold" variable.
type CustomRuleConfig struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Score      int    `json:"score"`
	Reason     string `json:"reason"`
	Threshold  int    `json:"threshold"`
	Disabled   bool   `json:"disabled"`
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
	// TierCommunity runs single-process: memory counters, channel bus,
	// SQLite archive.
	TierCommunity Tier = "community"

	// TierPro runs distributed: Redis counters, NATS bus, PostgreSQL
	// archive.
	TierPro Tier = "pro"
)

// DefaultTransactionCapacity bounds the transaction store.
const DefaultTransactionCapacity = 10000

// DefaultConfig returns a Community tier configuration. All screening
// state is held in memory for the lifetime of the process; only the
// optional archive survives a restart.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Store: StoreConfig{
			TransactionCapacity: DefaultTransactionCapacity,
		},
		Velocity: VelocityConfig{
			Backend:    "memory",
			WindowSecs: 60,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Archive: ArchiveConfig{
			Enabled:    false,
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a Pro tier configuration with the distributed
// backends enabled.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Velocity = VelocityConfig{
		Backend:    "redis",
		WindowSecs: 60,
		RedisAddr:  "localhost:6379",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Archive = ArchiveConfig{
		Enabled:      true,
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Tracing.Enabled = true
	return cfg
}
