package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/bark/internal/wire"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger and analytics over HTTP",
	Long: `Serve the ledger and analytics over HTTP.

The API lives under /api/v1; Prometheus metrics under /metrics. Writes take
the acting user from the X-Actor-ID header.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := wire.Config()
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.HTTP.Addr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           wire.HTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return runServer(srv, cfg.HTTP.ShutdownTimeout)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default BARK_HTTP_ADDR or :8080)")
}

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	return serveCmd
}

// runServer blocks until the server fails or a SIGINT/SIGTERM arrives,
// then drains in-flight requests for up to grace.
func runServer(srv *http.Server, grace time.Duration) error {
	logger := wire.Logger()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
