// Package main provides the CLI entry point for agentcore.
//
// agentcore runs a tool-using agent loop against a hosted model endpoint.
// Sessions speak JSON lines on stdin/stdout or WebSocket frames.
//
// # Basic Usage
//
// Chat on the terminal:
//
//	agentcore run --config agentcore.yaml
//
// Serve sessions over WebSocket with Prometheus metrics:
//
//	agentcore serve --config agentcore.yaml
//
// # Environment Variables
//
//   - AGENTCORE_CONFIG: Path to configuration file (default: agentcore.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key when none is configured
//   - OPENAI_API_KEY: OpenAI API key when none is configured
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentcore/internal/config"
)

// Build information - populated by ldflags during build.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "agentcore.yaml"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentcore",
		Short: "agentcore - tool-using agent runtime",
		Long: `agentcore drives a model through a tool loop: it sends the conversation,
executes the tools the model asks for, and feeds the results back until
the model answers or a tool finishes the task.

Supported LLM providers: Anthropic (Claude), OpenAI (GPT)
Built-in tools: workspace files, finish_task, ask_user, notify_user, session_usage`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildServeCmd(),
		buildConfigCmd(),
		buildToolsCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

// resolveConfigPath applies AGENTCORE_CONFIG when no path was given.
func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) != "" {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("AGENTCORE_CONFIG")); env != "" {
		return env
	}
	return defaultConfigPath
}

// loadConfig loads path. A missing default config file yields the
// built-in defaults so agentcore runs with only an API key in the
// environment.
func loadConfig(path string) (*config.Config, error) {
	resolved := resolveConfigPath(path)
	cfg, err := config.Load(resolved)
	if err == nil {
		return cfg, nil
	}
	if resolved == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		return cfg, cfg.Validate()
	}
	return nil, err
}
