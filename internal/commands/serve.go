package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fintrack-dev/fintrack/internal/api"
	"github.com/fintrack-dev/fintrack/internal/config"
	"github.com/fintrack-dev/fintrack/internal/logging"
)

func newServeCommand() *cobra.Command {
	var cfgPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the import API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(cfgPath)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, absPath, addr)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", config.FileName, "path to "+config.FileName)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runServe(ctx context.Context, cfgPath, addr string) error {
	root := filepath.Dir(cfgPath)

	// A .env next to the config may carry DATABASE_URL.
	envErr := godotenv.Load(filepath.Join(root, ".env"))

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn().Err(envErr).Msg("loading .env")
	}
	ctx = logging.WithContext(ctx, logger)

	a, err := newApp(ctx, root, cfg, logger, appOptions{ttl: cfg.Staging.TTL, commitLog: true})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewServer(a.service, api.Options{
			Presets:        a.presets,
			Logger:         logger,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
