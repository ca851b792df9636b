package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dfops/internal/engine"
	"github.com/KaramelBytes/dfops/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operations over HTTP",
	Long: `Serve the operations over HTTP. JSON requests name files relative to
data_dir; multipart requests upload the files with the request.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		e, err := newEngine(engine.DirResolver{Root: c.DataDir})
		if err != nil {
			return err
		}
		defer e.Close()

		addr := c.ServerAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		srv := server.New(e, server.Options{
			RequestTimeout: time.Duration(c.RequestTimeoutSec) * time.Second,
			MaxUploadBytes: int64(c.MaxUploadMB) << 20,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(addr) }()
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Serving on %s (data dir: %s)\n", addr, c.DataDir)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serve: %w", err)
		case <-ctx.Done():
		}
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server_addr)")
}
