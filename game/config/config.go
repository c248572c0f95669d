package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Broadcast scopes for room updates.
const (
	// ScopeAll sends every room's updates to every open connection.
	ScopeAll = "all"
	// ScopeRoom sends a room's updates only to connections that created or joined it.
	ScopeRoom = "room"
)

// DefaultMaxMessageSize is the largest inbound frame accepted unless
// websocket.max_message_size says otherwise (100 MiB).
const DefaultMaxMessageSize = 100 << 20

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RateLimitConfig bounds inbound messages per connection. A zero Burst, the
// default, turns limiting off.
type RateLimitConfig struct {
	// Burst is the number of messages accepted back to back.
	Burst int `mapstructure:"burst"`
	// RefillInterval is the time it takes to earn back a full burst.
	RefillInterval time.Duration `mapstructure:"refill_interval"`
}

// WebSocketConfig holds connection and fan-out settings.
type WebSocketConfig struct {
	MaxMessageSize int64           `mapstructure:"max_message_size"`
	SendBuffer     int             `mapstructure:"send_buffer"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	BroadcastScope string          `mapstructure:"broadcast_scope"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RoomsConfig controls idle-room eviction. A zero IdleTTL keeps rooms for the
// life of the process.
type RoomsConfig struct {
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// TunnelConfig enables an ngrok tunnel in front of the HTTP server.
type TunnelConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AuthToken string `mapstructure:"authtoken"`
	Domain    string `mapstructure:"domain"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Rooms     RoomsConfig     `mapstructure:"rooms"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tunnel    TunnelConfig    `mapstructure:"tunnel"`
}

// Validate checks all configuration invariants and reports every violation at once.
func (c Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout < 0 {
		errs = append(errs, "server timeouts must not be negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout must be positive")
	}

	if c.WebSocket.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Sprintf("websocket.max_message_size must be positive, got %d", c.WebSocket.MaxMessageSize))
	}
	if c.WebSocket.SendBuffer <= 0 {
		errs = append(errs, fmt.Sprintf("websocket.send_buffer must be positive, got %d", c.WebSocket.SendBuffer))
	}
	if c.WebSocket.BroadcastScope != ScopeAll && c.WebSocket.BroadcastScope != ScopeRoom {
		errs = append(errs, fmt.Sprintf("websocket.broadcast_scope must be one of [all, room], got %q", c.WebSocket.BroadcastScope))
	}
	if c.WebSocket.RateLimit.Burst < 0 {
		errs = append(errs, "websocket.rate_limit.burst must not be negative")
	}
	if c.WebSocket.RateLimit.Burst > 0 && c.WebSocket.RateLimit.RefillInterval <= 0 {
		errs = append(errs, "websocket.rate_limit.refill_interval must be positive when burst is set")
	}

	if c.Rooms.IdleTTL < 0 {
		errs = append(errs, "rooms.idle_ttl must not be negative")
	}
	if c.Rooms.IdleTTL > 0 && c.Rooms.CleanupInterval <= 0 {
		errs = append(errs, "rooms.cleanup_interval must be positive when idle_ttl is set")
	}

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Tunnel.Enabled && c.Tunnel.AuthToken == "" {
		errs = append(errs, "tunnel.authtoken is required when tunnel.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from path (optional), applies POKER_* environment
// overrides, the PORT variable and NGROK_AUTHTOKEN, and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix("POKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	// PORT is what hosting platforms set; it wins over the file.
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("parsing PORT %q: %w", port, err)
		}
		v.Set("server.port", p)
	}

	// ngrok's own variable names are accepted for the tunnel token.
	if v.GetString("tunnel.authtoken") == "" {
		for _, name := range []string{"NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"} {
			if tok := os.Getenv(name); tok != "" {
				v.Set("tunnel.authtoken", tok)
				break
			}
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
func LoadFromViper(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, errors.New("nil viper instance")
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := LoadFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("websocket.max_message_size", DefaultMaxMessageSize)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.allowed_origins", []string{"*"})
	v.SetDefault("websocket.broadcast_scope", ScopeAll)
	v.SetDefault("websocket.rate_limit.burst", 0)
	v.SetDefault("websocket.rate_limit.refill_interval", "1s")

	v.SetDefault("rooms.idle_ttl", "0s")
	v.SetDefault("rooms.cleanup_interval", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tunnel.enabled", false)
	v.SetDefault("tunnel.authtoken", "")
	v.SetDefault("tunnel.domain", "")
}
