package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/document-validator/internal/adapters/mcp"
	"github.com/kirillkom/document-validator/internal/bootstrap"
	"github.com/kirillkom/document-validator/internal/config"
	"github.com/kirillkom/document-validator/internal/observability/logging"
)

// Serves the validation tools over stdio, or over streamable HTTP when
// MCP_HTTP_ADDR is set. Logs go to stderr so stdio framing stays clean.
func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}

	if cfg.MCPHTTPAddr == "" {
		logger.Info("mcp_stdio_started")
		if err := server.ServeStdio(app.MCPServer); err != nil {
			log.Fatalf("mcp stdio error: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.MCPHTTPAddr,
		Handler:           mcpadapter.NewHTTPHandler(app.MCPServer),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("mcp_http_listening", "addr", cfg.MCPHTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("mcp http error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.APIShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("mcp_shutdown_failed", "error", err)
	}
}
