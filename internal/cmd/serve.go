package cmd

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
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisetex/internal/engine"
	"github.com/MeKo-Tech/noisetex/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live texture editing API",
	Long: `Serve holds one texture engine in memory and exposes it over a JSON API.
Every change regenerates the texture before the response is sent; the current
image is always available at /texture.png.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("export-dir", ".", "Directory that receives exported textures")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for /texture.png")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight requests on shutdown")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.export_dir", "export-dir")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.shutdown_timeout", "shutdown-timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	exportDir := viper.GetString("serve.export_dir")
	cacheControl := viper.GetString("serve.cache_control")
	shutdownTimeout := viper.GetDuration("serve.shutdown_timeout")

	cfg, err := engineConfigFromViper(viper.GetViper(), "serve")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng, err := engine.NewContext(ctx, cfg, engine.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to start texture engine: %w", err)
	}

	api := server.New(eng, server.Config{
		ExportDir:    exportDir,
		CacheControl: cacheControl,
	}, logger)

	srv := &http.Server{Addr: addr, Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}

	logger.Info("Texture server listening",
		"addr", addr,
		"export_dir", exportDir,
		"preset", viper.GetString("preset"),
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"backend", eng.Backend(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Received interrupt signal, shutting down...")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
