// Package config provides hierarchical configuration loading for solrelay.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the relay.
type Config struct {
	Server   Server   `yaml:"server"`
	Upstream Upstream `yaml:"upstream"`
	Bus      Bus      `yaml:"bus"`
	Client   Client   `yaml:"client"`
	Dedup    Dedup    `yaml:"dedup"`
	NATS     NATS     `yaml:"nats"`
	OTEL     OTEL     `yaml:"otel"`
	Logging  Logging  `yaml:"logging"`
}

// Server holds the downstream WebSocket server configuration.
type Server struct {
	Port string `yaml:"port"`
	Path string `yaml:"path"` // extra upgrade route besides "/" and "/ws"
}

// Upstream holds the Solana RPC subscription configuration.
type Upstream struct {
	URL               string        `yaml:"url"`
	ProgramID         string        `yaml:"program_id"`
	Commitment        string        `yaml:"commitment"`
	Decoder           string        `yaml:"decoder"`             // "pump" | "fixture"
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`     // flat retry interval (default: 5s)
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"` // > reconnect_delay enables exponential backoff
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	WaitForAck        bool          `yaml:"wait_for_ack"`
	AckTimeout        time.Duration `yaml:"ack_timeout"`
}

// Bus holds event bus configuration.
type Bus struct {
	Capacity int `yaml:"capacity"`
}

// Client holds per-connection settings for downstream clients.
type Client struct {
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Dedup holds the transaction signature dedup window configuration.
type Dedup struct {
	Enabled      bool          `yaml:"enabled"`
	TTL          time.Duration `yaml:"ttl"`
	MaxCostBytes int64         `yaml:"max_cost_bytes"`
	NATSBucket   string        `yaml:"nats_bucket"` // shared L2 window in NATS KV; needs nats.url
}

// NATS holds the optional event mirror configuration. An empty URL disables it.
type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Stream  string `yaml:"stream"` // JetStream stream name; empty publishes on core NATS
}

// OTEL holds OpenTelemetry exporter configuration. An empty endpoint disables export.
type OTEL struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Defaults returns a Config with the documented default values.
func Defaults() Config {
	return Config{
		Server: Server{
			Port: "9000",
			Path: "/",
		},
		Upstream: Upstream{
			URL:            "wss://api.mainnet-beta.solana.com",
			ProgramID:      "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
			Commitment:     "finalized",
			Decoder:        "pump",
			ReconnectDelay: 5 * time.Second,
			DialTimeout:    10 * time.Second,
			AckTimeout:     10 * time.Second,
		},
		Bus: Bus{
			Capacity: 100,
		},
		Client: Client{
			WriteTimeout: 10 * time.Second,
		},
		Dedup: Dedup{
			Enabled:      true,
			TTL:          10 * time.Minute,
			MaxCostBytes: 8 << 20,
		},
		NATS: NATS{
			Subject: "solrelay.events",
		},
		OTEL: OTEL{
			ServiceName: "solrelay",
			Insecure:    true,
		},
		Logging: Logging{
			Level:   "info",
			Service: "solrelay",
		},
	}
}
