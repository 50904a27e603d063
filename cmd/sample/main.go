// Command sample serves the tutorial endpoints on top of package bind.
//
// Run:
//
//	go run ./cmd/sample
//
// Configuration comes from the environment (or a .env file):
//
//	SAMPLE_ADDR              listen address (default :8080)
//	SAMPLE_LOG_LEVEL         debug, info, warn or error (default info)
//	SAMPLE_LOG_FORMAT        text or json (default text)
//	SAMPLE_RATE_LIMIT        requests per second per client (default 10)
//	SAMPLE_RATE_BURST        burst size (default 20)
//	SAMPLE_MAX_BODY_BYTES    request body limit (default 1 MiB)
//	SAMPLE_MAX_VALUE_LENGTH  characters of a bad value echoed in errors (default 64)
//	SAMPLE_SHUTDOWN_TIMEOUT  graceful shutdown timeout (default 5s)
//
// Then explore:
//
//	GET  /                                  greeting
//	GET  /users/me                          fixed route, declared before /users/{user_id}
//	GET  /users/{user_id}                   int path parameter
//	GET  /models/{model_name}               enum path parameter
//	GET  /items?skip=0&limit=10             paginated fake item list
//	GET  /item/{item_id}?q=&short=false     optional query parameters
//	GET  /users/{user_id}/items/{item_id}   two path parameters
//	POST /items/{item_id}                   JSON or YAML body
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if err := run(); err != nil {
		slog.Error("sample failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	s, err := loadSchemas()
	if err != nil {
		return err
	}

	a := &app{
		schemas: s,
		items:   newItemStore("Foo", "Bar", "Baz"),
		logger:  logger,
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newLogger(cfg config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
