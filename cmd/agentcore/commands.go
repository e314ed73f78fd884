package main

import (
	"github.com/spf13/cobra"
)

// =============================================================================
// Session Commands
// =============================================================================

// buildRunCmd creates the "run" command that chats over stdin/stdout.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		sessionID  string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one session over stdin/stdout",
		Long: `Run one agent session on the terminal.

Each input line is a user message, either plain text or a JSON object
{"type":"message","content":"..."}. Every session event is written to
stdout as one JSON frame per line. The session ends at end of input.

With --session the history is loaded from, and saved to, the configured
session store.`,
		Example: `  # Chat with the default config
  agentcore run

  # Resume a stored conversation
  agentcore run --session support-42

  # Scripted input
  echo "list the workspace files" | agentcore run -c agentcore.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), configPath, sessionID, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML or JSON5 configuration file")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session ID to resume (default: new session)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")
	return cmd
}

// buildServeCmd creates the "serve" command that accepts WebSocket sessions.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sessions over WebSocket",
		Long: `Start the HTTP server.

The server will:
1. Load configuration from the specified file (or agentcore.yaml)
2. Open the session store
3. Accept WebSocket sessions on transport.websocket_path
4. Expose Prometheus metrics on observability.metrics.path

Pass ?session=<id> on the WebSocket URL to resume a stored session.
Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  agentcore serve

  # Override the listen address
  agentcore serve --listen 0.0.0.0:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, listen, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML or JSON5 configuration file")
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides transport.listen)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")
	return cmd
}

// =============================================================================
// Config Commands
// =============================================================================

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(buildConfigValidateCmd(), buildConfigSchemaCmd())
	return cmd
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd.OutOrStdout(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML or JSON5 configuration file")
	return cmd
}

func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSchema(cmd.OutOrStdout())
		},
	}
}

// =============================================================================
// Tools Commands
// =============================================================================

// buildToolsCmd creates the "tools" command group.
func buildToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool registry",
	}
	cmd.AddCommand(buildToolsListCmd())
	return cmd
}

func buildToolsListCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tools offered to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsList(cmd.OutOrStdout(), configPath, asJSON)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML or JSON5 configuration file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print full descriptors as JSON")
	return cmd
}

// buildVersionCmd creates the "version" command.
func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd.OutOrStdout())
		},
	}
}
