// Package tunnel exposes the HTTP server through an ngrok endpoint.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/scrumpoker/game/config"
)

// ErrNoAuthToken is returned when a tunnel is requested without credentials.
var ErrNoAuthToken = errors.New("ngrok auth token is required")

// endpoint builds the HTTP endpoint, pinned to cfg.Domain when set.
func endpoint(cfg config.TunnelConfig) ngrokConfig.Tunnel {
	if cfg.Domain != "" {
		return ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
	}
	return ngrokConfig.HTTPEndpoint()
}

// Serve opens the tunnel and serves handler through it until ctx is done or
// the tunnel fails. The public URL is logged once the tunnel is up.
func Serve(ctx context.Context, cfg config.TunnelConfig, handler http.Handler, logger *zap.Logger) error {
	if cfg.AuthToken == "" {
		return ErrNoAuthToken
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tun, err := ngrok.Listen(ctx, endpoint(cfg), ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		return fmt.Errorf("starting ngrok tunnel: %w", err)
	}

	url := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", url),
		zap.String("websocket", url+"/ws"),
		zap.String("mcp", url+"/mcp"),
	)

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		if err := srv.Close(); err != nil {
			logger.Warn("closing ngrok server", zap.Error(err))
		}
	}()

	// Serve closes the tunnel listener on return.
	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving through ngrok: %w", err)
	}
	logger.Info("ngrok tunnel closed")
	return nil
}
