package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			SendBuffer:     256,
			AllowedOrigins: []string{"*"},
			BroadcastScope: ScopeAll,
			RateLimit:      RateLimitConfig{Burst: 20, RefillInterval: time.Second},
		},
		Rooms: RoomsConfig{
			IdleTTL:         0,
			CleanupInterval: time.Hour,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// clearEnv makes sure the host environment cannot leak into Load.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "")
	t.Setenv("POKER_SERVER_PORT", "")
	t.Setenv("NGROK_AUTHTOKEN", "")
	t.Setenv("NGROK_AUTH_TOKEN", "")
}

func TestValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(100<<20), cfg.WebSocket.MaxMessageSize)
	assert.Equal(t, []string{"*"}, cfg.WebSocket.AllowedOrigins)
	assert.Equal(t, ScopeAll, cfg.WebSocket.BroadcastScope)
	assert.Zero(t, cfg.WebSocket.RateLimit.Burst, "no message is rate limited by default")
	assert.Equal(t, time.Second, cfg.WebSocket.RateLimit.RefillInterval)
	assert.Zero(t, cfg.Rooms.IdleTTL, "rooms live for the process lifetime by default")
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Tunnel.Enabled)
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "poker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9090
websocket:
  broadcast_scope: room
  allowed_origins:
    - https://poker.example.com
rooms:
  idle_ttl: 24h
  cleanup_interval: 10m
logging:
  level: debug
  format: console
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, ScopeRoom, cfg.WebSocket.BroadcastScope)
	assert.Equal(t, []string{"https://poker.example.com"}, cfg.WebSocket.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.Rooms.IdleTTL)
	assert.Equal(t, 10*time.Minute, cfg.Rooms.CleanupInterval)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 256, cfg.WebSocket.SendBuffer, "unset keys keep defaults")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("POKER_SERVER_PORT", "7000")
	t.Setenv("POKER_LOGGING_LEVEL", "warn")
	t.Setenv("POKER_WEBSOCKET_BROADCAST_SCOPE", "room")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, ScopeRoom, cfg.WebSocket.BroadcastScope)
}

func TestLoad_PortWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("POKER_SERVER_PORT", "7000")
	t.Setenv("PORT", "5005")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5005, cfg.Server.Port)
}

func TestLoad_NgrokToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("POKER_TUNNEL_ENABLED", "true")
	t.Setenv("NGROK_AUTHTOKEN", "from-ngrok-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Tunnel.Enabled)
	assert.Equal(t, "from-ngrok-env", cfg.Tunnel.AuthToken)
}

func TestLoad_BadPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")

	_, err := Load("")
	assert.ErrorContains(t, err, "PORT")
}

func TestLoad_InvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/poker.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("POKER_WEBSOCKET_BROADCAST_SCOPE", "galaxy")

	_, err := Load("")
	assert.ErrorContains(t, err, "broadcast_scope")
}

func TestLoadFromViper_Nil(t *testing.T) {
	_, err := LoadFromViper(nil)
	assert.Error(t, err)
}

func TestLoadFromViper_Overrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("tunnel.enabled", true)
	v.Set("tunnel.authtoken", "tok")
	v.Set("tunnel.domain", "poker.ngrok.app")

	cfg, err := LoadFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, TunnelConfig{Enabled: true, AuthToken: "tok", Domain: "poker.ngrok.app"}, cfg.Tunnel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 65536 }, "server.port"},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }, "timeouts"},
		{"no shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown_timeout"},
		{"zero message size", func(c *Config) { c.WebSocket.MaxMessageSize = 0 }, "max_message_size"},
		{"zero send buffer", func(c *Config) { c.WebSocket.SendBuffer = 0 }, "send_buffer"},
		{"bad scope", func(c *Config) { c.WebSocket.BroadcastScope = "everyone" }, "broadcast_scope"},
		{"negative burst", func(c *Config) { c.WebSocket.RateLimit.Burst = -1 }, "burst"},
		{"burst without refill", func(c *Config) { c.WebSocket.RateLimit.RefillInterval = 0 }, "refill_interval"},
		{"negative ttl", func(c *Config) { c.Rooms.IdleTTL = -time.Minute }, "idle_ttl"},
		{"ttl without interval", func(c *Config) {
			c.Rooms.IdleTTL = time.Hour
			c.Rooms.CleanupInterval = 0
		}, "cleanup_interval"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"tunnel without token", func(c *Config) { c.Tunnel.Enabled = true }, "tunnel.authtoken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidate_ReportsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestValidate_RateLimitDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.WebSocket.RateLimit = RateLimitConfig{}
	assert.NoError(t, cfg.Validate())
}

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if err := cfg.Validate(); err == nil {
			t.Fatalf("invalid port %d accepted", port)
		}
	})
}
