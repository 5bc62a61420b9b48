package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticstitch/internal/server"
)

// Version is reported by the health endpoint.
var Version = "dev"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the grid API and downloaded tiles over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "Timeout per request")
	serveCmd.Flags().Int("max-tiles", 10000, "Maximum primary tiles of a requested grid (0 disables the limit)")
	serveCmd.Flags().Bool("serve-tiles", false, "Serve stored tiles under /api/v1/tiles/{name}")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for served tiles")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.timeout", "timeout")
	mustBind("serve.max_tiles", "max-tiles")
	mustBind("serve.serve_tiles", "serve-tiles")
	mustBind("serve.cache_control", "cache-control")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	addr := viper.GetString("serve.addr")
	cfg := server.Config{
		Version:        Version,
		MaxTiles:       viper.GetInt("serve.max_tiles"),
		RequestTimeout: viper.GetDuration("serve.timeout"),
		CacheControl:   viper.GetString("serve.cache_control"),
	}

	if viper.GetBool("serve.serve_tiles") {
		st, err := openStore(projectDir())
		if err != nil {
			return err
		}
		defer st.Close()
		cfg.Store = st
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           withCORS(server.New(cfg, logger).Router()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("API server listening",
		"addr", addr,
		"max_tiles", cfg.MaxTiles,
		"serve_tiles", cfg.Store != nil,
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
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
