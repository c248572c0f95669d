// Package config loads the server configuration.
//
// Configuration comes from three layers, later layers winning:
//   - built-in defaults (see Default)
//   - an optional YAML, TOML or JSON file passed to Load
//   - environment variables prefixed with POKER_, with dots in key names
//     replaced by underscores (POKER_WEBSOCKET_BROADCAST_SCOPE=room)
//
// The bare PORT variable is honoured last so the server can run unchanged on
// hosting platforms that assign the listen port.
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv("POKER_CONFIG"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv := &http.Server{Addr: cfg.Server.Addr()}
//
// Validation:
//
// Load and LoadFromViper call Validate, which collects every violation into a
// single error instead of stopping at the first one.
package config
