package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/transport"
)

// =============================================================================
// Session Handlers
// =============================================================================

// runSession implements the run command.
func runSession(ctx context.Context, in io.Reader, out io.Writer, configPath, sessionID string, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, os.Stderr, nil)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(os.Stderr, "agentcore: type a message and press Enter; Ctrl-D ends the session")
	}
	err = serveStream(ctx, a, in, out, sessionID)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveStream runs one session reading JSON lines from in and writing
// frames to out.
func serveStream(ctx context.Context, a *app, in io.Reader, out io.Writer, sessionID string) error {
	s, err := a.newSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return a.serve(ctx, s, transport.NewStreamSink(in, out))
}

// runServe implements the serve command.
func runServe(ctx context.Context, configPath, listen string, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if listen != "" {
		cfg.Transport.Listen = listen
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, os.Stderr, nil)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	server := &http.Server{
		Addr:              cfg.Transport.Listen,
		Handler:           newHTTPHandler(a),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	a.logger.Info("agentcore started",
		"version", version,
		"addr", cfg.Transport.Listen,
		"websocket_path", cfg.Transport.WebSocketPath,
		"llm_provider", cfg.LLM.DefaultProvider,
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	a.logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	a.logger.Info("agentcore stopped gracefully")
	return nil
}

// newHTTPHandler routes the WebSocket endpoint, metrics and health checks.
func newHTTPHandler(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Transport.WebSocketPath, transport.NewHandler(
		func(ctx context.Context, sink *transport.WebSocketSink, r *http.Request) error {
			s, err := a.newSession(ctx, r.URL.Query().Get("session"))
			if err != nil {
				return err
			}
			return a.serve(ctx, s, sink)
		},
		a.logger,
	))
	if a.registry != nil {
		mux.Handle(a.cfg.Observability.Metrics.Path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(a.logger.Handler(), slog.LevelError),
		}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

// =============================================================================
// Config Handlers
// =============================================================================

func runConfigValidate(out io.Writer, configPath string) error {
	path := resolveConfigPath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: ok\n", path)
	fmt.Fprintf(out, "  provider:  %s\n", cfg.LLM.DefaultProvider)
	fmt.Fprintf(out, "  workspace: %s\n", cfg.Tools.Workspace)
	fmt.Fprintf(out, "  sessions:  %s\n", cfg.Sessions.Store)
	return nil
}

func runConfigSchema(out io.Writer) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	if _, err := out.Write(schema); err != nil {
		return err
	}
	_, err = io.WriteString(out, "\n")
	return err
}

// =============================================================================
// Tools Handlers
// =============================================================================

func runToolsList(out io.Writer, configPath string, asJSON bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	registry, _, err := buildToolRegistry(cfg, nil)
	if err != nil {
		return err
	}
	descriptors := registry.Descriptors()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(descriptors)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, d := range descriptors {
		summary, _, _ := strings.Cut(d.Description, "\n")
		fmt.Fprintf(w, "%s\t%s\n", d.Name, summary)
	}
	return w.Flush()
}

func runVersion(out io.Writer) error {
	_, err := fmt.Fprintf(out, "agentcore %s (commit: %s, built: %s)\n", version, commit, date)
	return err
}
