package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "9000" {
		t.Errorf("expected port 9000, got %s", cfg.Server.Port)
	}
	if cfg.Bus.Capacity != 100 {
		t.Errorf("expected bus capacity 100, got %d", cfg.Bus.Capacity)
	}
	if cfg.Upstream.ReconnectDelay != 5*time.Second {
		t.Errorf("expected reconnect delay 5s, got %v", cfg.Upstream.ReconnectDelay)
	}
	if cfg.Upstream.ProgramID != "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P" {
		t.Errorf("unexpected default program id %q", cfg.Upstream.ProgramID)
	}
	if cfg.Upstream.Commitment != "finalized" {
		t.Errorf("expected commitment finalized, got %q", cfg.Upstream.Commitment)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
upstream:
  url: "ws://localhost:8900"
  commitment: "confirmed"
  reconnect_delay: 2s
bus:
  capacity: 256
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Upstream.URL != "ws://localhost:8900" {
		t.Errorf("expected upstream url override, got %s", cfg.Upstream.URL)
	}
	if cfg.Upstream.Commitment != "confirmed" {
		t.Errorf("expected commitment confirmed, got %s", cfg.Upstream.Commitment)
	}
	if cfg.Upstream.ReconnectDelay != 2*time.Second {
		t.Errorf("expected reconnect delay 2s, got %v", cfg.Upstream.ReconnectDelay)
	}
	if cfg.Bus.Capacity != 256 {
		t.Errorf("expected capacity 256, got %d", cfg.Bus.Capacity)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.Upstream.ProgramID != "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P" {
		t.Errorf("expected default program id, got %s", cfg.Upstream.ProgramID)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err == nil {
		t.Error("expected parse error for malformed YAML")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("RPC_WS", "ws://rpc.local:8900")
	t.Setenv("PROGRAM_ID", "Prog111")
	t.Setenv("RELAY_RECONNECT_DELAY", "250ms")
	t.Setenv("RELAY_BUS_CAPACITY", "32")
	t.Setenv("RELAY_WAIT_FOR_ACK", "true")
	t.Setenv("RELAY_LOG_LEVEL", "warn")
	t.Setenv("NATS_URL", "nats://nats:4222")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Upstream.URL != "ws://rpc.local:8900" {
		t.Errorf("expected RPC_WS override, got %s", cfg.Upstream.URL)
	}
	if cfg.Upstream.ProgramID != "Prog111" {
		t.Errorf("expected PROGRAM_ID override, got %s", cfg.Upstream.ProgramID)
	}
	if cfg.Upstream.ReconnectDelay != 250*time.Millisecond {
		t.Errorf("expected reconnect delay 250ms, got %v", cfg.Upstream.ReconnectDelay)
	}
	if cfg.Bus.Capacity != 32 {
		t.Errorf("expected capacity 32, got %d", cfg.Bus.Capacity)
	}
	if !cfg.Upstream.WaitForAck {
		t.Error("expected wait_for_ack true")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.NATS.URL != "nats://nats:4222" {
		t.Errorf("expected NATS_URL override, got %s", cfg.NATS.URL)
	}
}

func TestEnvOverrideIgnoresUnparsable(t *testing.T) {
	cfg := Defaults()

	t.Setenv("RELAY_BUS_CAPACITY", "lots")
	t.Setenv("RELAY_RECONNECT_DELAY", "soon")

	loadEnv(&cfg)

	if cfg.Bus.Capacity != 100 {
		t.Errorf("expected default capacity to survive bad env, got %d", cfg.Bus.Capacity)
	}
	if cfg.Upstream.ReconnectDelay != 5*time.Second {
		t.Errorf("expected default delay to survive bad env, got %v", cfg.Upstream.ReconnectDelay)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "non-numeric port",
			modify: func(c *Config) { c.Server.Port = "http" },
			errMsg: `server.port "http" is not a valid port`,
		},
		{
			name:   "empty upstream url",
			modify: func(c *Config) { c.Upstream.URL = "" },
			errMsg: "upstream.url is required",
		},
		{
			name:   "empty program id",
			modify: func(c *Config) { c.Upstream.ProgramID = "" },
			errMsg: "upstream.program_id is required",
		},
		{
			name:   "unknown decoder",
			modify: func(c *Config) { c.Upstream.Decoder = "magic" },
			errMsg: `upstream.decoder "magic" must be pump or fixture`,
		},
		{
			name:   "zero reconnect delay",
			modify: func(c *Config) { c.Upstream.ReconnectDelay = 0 },
			errMsg: "upstream.reconnect_delay must be > 0",
		},
		{
			name:   "zero bus capacity",
			modify: func(c *Config) { c.Bus.Capacity = 0 },
			errMsg: "bus.capacity must be >= 1",
		},
		{
			name: "nats without subject",
			modify: func(c *Config) {
				c.NATS.URL = "nats://localhost:4222"
				c.NATS.Subject = ""
			},
			errMsg: "nats.subject is required when nats.url is set",
		},
		{
			name:   "shared dedup without nats",
			modify: func(c *Config) { c.Dedup.NATSBucket = "SOLRELAY_DEDUP" },
			errMsg: "dedup.nats_bucket requires nats.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}
