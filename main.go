// Command scrumpoker runs the planning poker server.
//
// It supports three commands:
//  1. "serve" (default) – runs the HTTP server exposing the WebSocket room protocol,
//     read-only REST views, health and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server over an in-process room store
//  3. "version" – prints the version
//
// Configuration comes from an optional file (--config / POKER_CONFIG), POKER_*
// environment variables and PORT. A .env file in the working directory is
// loaded first when present.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/scrumpoker/api"
	"github.com/wricardo/scrumpoker/game/config"
	"github.com/wricardo/scrumpoker/game/protocol"
	"github.com/wricardo/scrumpoker/game/room"
	"github.com/wricardo/scrumpoker/game/service"
	"github.com/wricardo/scrumpoker/observability"
	"github.com/wricardo/scrumpoker/transport/mcp"
	"github.com/wricardo/scrumpoker/transport/websocket"
	"github.com/wricardo/scrumpoker/tunnel"
)

const (
	// Version is the application version
	Version = "1.0.0"
	// AppName is the application name
	AppName = "Scrum Poker Server"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "scrumpoker",
		Usage:   "real-time planning poker server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML, TOML or JSON config file",
				Sources: cli.EnvVars("POKER_CONFIG"),
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and WebSocket server (default)",
				Action: serveAction,
			},
			{
				Name:   "mcp",
				Usage:  "run an MCP server on stdin/stdout",
				Action: mcpAction,
			},
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(_ context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintf(cmd.Root().Writer, "%s v%s\n", AppName, Version)
					return err
				},
			},
		},
	}
}

// loadRuntime loads configuration and builds the logger.
func loadRuntime(cmd *cli.Command) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

// components is the wired object graph shared by both run modes.
type components struct {
	hub      *websocket.Hub
	rooms    *service.RoomService
	protocol *protocol.Handler
	mcp      *mcp.Server
	api      *api.Server
}

func buildComponents(cfg config.Config, logger *zap.Logger) *components {
	hub := websocket.NewHub(cfg.WebSocket, logger.Named("websocket"))
	rooms := service.NewRoomService(room.NewStore(), hub, logger.Named("rooms"))
	handler := protocol.NewHandler(rooms, logger.Named("protocol"))
	mcpServer := mcp.NewServer(rooms, Version, logger.Named("mcp"))

	return &components{
		hub:      hub,
		rooms:    rooms,
		protocol: handler,
		mcp:      mcpServer,
		api:      api.NewServer(rooms, hub, handler, mcpServer.HandleHTTP, logger.Named("api")),
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return runHTTPServer(ctx, cfg, logger)
}

// runHTTPServer serves until ctx is cancelled, then shuts down gracefully.
func runHTTPServer(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	c := buildComponents(cfg, logger)
	go c.hub.Run()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.rooms.RunIdleEviction(ctx, cfg.Rooms.CleanupInterval, cfg.Rooms.IdleTTL)
	}()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      c.api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("app", AppName),
			zap.String("version", Version),
			zap.String("addr", httpServer.Addr),
			zap.String("broadcast_scope", cfg.WebSocket.BroadcastScope),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	if cfg.Tunnel.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tunnel.Serve(ctx, cfg.Tunnel, c.api, logger.Named("tunnel")); err != nil {
				logger.Warn("ngrok tunnel stopped", zap.Error(err))
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	if err := c.hub.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket hub shutdown", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
	return runErr
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	c := buildComponents(cfg, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.rooms.RunIdleEviction(ctx, cfg.Rooms.CleanupInterval, cfg.Rooms.IdleTTL)

	logger.Info("MCP stdio server ready", zap.String("version", Version))
	if err := c.mcp.ServeStdio(); err != nil {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}
