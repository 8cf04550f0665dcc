package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "solrelay.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML path may be overridden with RELAY_CONFIG; a missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if v := os.Getenv("RELAY_CONFIG"); v != "" {
		path = v
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Path, "RELAY_WS_PATH")

	// Upstream
	setString(&cfg.Upstream.URL, "RPC_WS")
	setString(&cfg.Upstream.ProgramID, "PROGRAM_ID")
	setString(&cfg.Upstream.Commitment, "RELAY_COMMITMENT")
	setString(&cfg.Upstream.Decoder, "RELAY_DECODER")
	setDuration(&cfg.Upstream.ReconnectDelay, "RELAY_RECONNECT_DELAY")
	setDuration(&cfg.Upstream.MaxReconnectDelay, "RELAY_MAX_RECONNECT_DELAY")
	setDuration(&cfg.Upstream.DialTimeout, "RELAY_DIAL_TIMEOUT")
	setBool(&cfg.Upstream.WaitForAck, "RELAY_WAIT_FOR_ACK")
	setDuration(&cfg.Upstream.AckTimeout, "RELAY_ACK_TIMEOUT")

	setInt(&cfg.Bus.Capacity, "RELAY_BUS_CAPACITY")
	setDuration(&cfg.Client.WriteTimeout, "RELAY_CLIENT_WRITE_TIMEOUT")

	// Dedup
	setBool(&cfg.Dedup.Enabled, "RELAY_DEDUP_ENABLED")
	setDuration(&cfg.Dedup.TTL, "RELAY_DEDUP_TTL")
	setInt64(&cfg.Dedup.MaxCostBytes, "RELAY_DEDUP_MAX_COST_BYTES")
	setString(&cfg.Dedup.NATSBucket, "RELAY_DEDUP_NATS_BUCKET")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Subject, "RELAY_NATS_SUBJECT")
	setString(&cfg.NATS.Stream, "RELAY_NATS_STREAM")

	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "RELAY_OTEL_SERVICE")
	setBool(&cfg.OTEL.Insecure, "RELAY_OTEL_INSECURE")

	setString(&cfg.Logging.Level, "RELAY_LOG_LEVEL")
	setString(&cfg.Logging.Service, "RELAY_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "RELAY_LOG_ASYNC")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if n, err := strconv.Atoi(cfg.Server.Port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("server.port %q is not a valid port", cfg.Server.Port)
	}
	if cfg.Upstream.URL == "" {
		return errors.New("upstream.url is required")
	}
	if cfg.Upstream.ProgramID == "" {
		return errors.New("upstream.program_id is required")
	}
	switch cfg.Upstream.Decoder {
	case "pump", "fixture":
	default:
		return fmt.Errorf("upstream.decoder %q must be pump or fixture", cfg.Upstream.Decoder)
	}
	if cfg.Upstream.ReconnectDelay <= 0 {
		return errors.New("upstream.reconnect_delay must be > 0")
	}
	if cfg.Bus.Capacity < 1 {
		return errors.New("bus.capacity must be >= 1")
	}
	if cfg.NATS.URL != "" && cfg.NATS.Subject == "" {
		return errors.New("nats.subject is required when nats.url is set")
	}
	if cfg.Dedup.NATSBucket != "" && cfg.NATS.URL == "" {
		return errors.New("dedup.nats_bucket requires nats.url")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
