// Package config loads the agentcore configuration from YAML or JSON5
// files with $include merging and ${ENV} expansion.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/haasonsaas/agentcore/internal/history"
	"github.com/haasonsaas/agentcore/internal/providers"
	"github.com/haasonsaas/agentcore/internal/retry"
	"github.com/haasonsaas/agentcore/internal/sessions"
)

// Config is the main configuration structure for agentcore.
type Config struct {
	Version       int                 `yaml:"version"`
	LLM           LLMConfig           `yaml:"llm"`
	Agent         AgentConfig         `yaml:"agent"`
	Tools         ToolsConfig         `yaml:"tools"`
	History       history.Config      `yaml:"history"`
	Retry         retry.Config        `yaml:"retry"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Transport     TransportConfig     `yaml:"transport"`
}

type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider" jsonschema:"enum=anthropic,enum=openai"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`

	// SummaryProvider names the provider used for history compression.
	// Empty means DefaultProvider.
	SummaryProvider string `yaml:"summary_provider"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
	MaxTokens    int    `yaml:"max_tokens"`
}

type AgentConfig struct {
	SystemPrompt  string `yaml:"system_prompt"`
	MaxIterations int    `yaml:"max_iterations"`

	// InstructionFiles are workspace files appended to the system prompt.
	InstructionFiles []string `yaml:"instruction_files"`
}

type ToolsConfig struct {
	// Workspace is the directory file tools may touch.
	Workspace      string        `yaml:"workspace"`
	Files          FileToolsConfig `yaml:"files"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// WatchWorkspace publishes file events for changes made outside the tools.
	WatchWorkspace bool `yaml:"watch_workspace"`
}

type FileToolsConfig struct {
	Enabled      bool `yaml:"enabled"`
	MaxReadBytes int  `yaml:"max_read_bytes"`
}

type LoggingConfig struct {
	Level          string   `yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format         string   `yaml:"format" jsonschema:"enum=json,enum=text"`
	AddSource      bool     `yaml:"add_source"`
	RedactPatterns []string `yaml:"redact_patterns"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled        bool              `yaml:"enabled"`
	Endpoint       string            `yaml:"endpoint"`
	ServiceName    string            `yaml:"service_name"`
	ServiceVersion string            `yaml:"service_version"`
	Environment    string            `yaml:"environment"`
	SamplingRate   float64           `yaml:"sampling_rate"`
	Insecure       bool              `yaml:"insecure"`
	Attributes     map[string]string `yaml:"attributes"`
}

// SessionsConfig selects where session snapshots are kept.
type SessionsConfig struct {
	// Store is "memory" or "sql".
	Store string             `yaml:"store" jsonschema:"enum=memory,enum=sql"`
	SQL   sessions.SQLConfig `yaml:"sql"`
}

type TransportConfig struct {
	Listen        string `yaml:"listen"`
	WebSocketPath string `yaml:"websocket_path"`
}

// Default returns the configuration used for unset fields.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		LLM: LLMConfig{
			DefaultProvider: "anthropic",
		},
		Agent: AgentConfig{
			MaxIterations: 10,
		},
		Tools: ToolsConfig{
			Workspace:      ".",
			Files:          FileToolsConfig{Enabled: true},
			DefaultTimeout: 30 * time.Second,
		},
		History: history.DefaultConfig(),
		Retry:   retry.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		},
		Sessions: SessionsConfig{
			Store: "memory",
			SQL:   sessions.DefaultSQLConfig(),
		},
		Transport: TransportConfig{
			Listen:        "127.0.0.1:8080",
			WebSocketPath: "/ws",
		},
	}
}

// Load reads, merges and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigValidationError lists every problem found in a configuration.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "invalid config:\n  - " + strings.Join(e.Issues, "\n  - ")
}

var knownProviders = map[string]bool{"anthropic": true, "openai": true}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var issues []string
	if err := ValidateVersion(c.Version); err != nil {
		issues = append(issues, err.Error())
	}

	if !knownProviders[c.LLM.DefaultProvider] {
		issues = append(issues, fmt.Sprintf("llm.default_provider %q is not supported", c.LLM.DefaultProvider))
	}
	if len(c.LLM.Providers) > 0 {
		if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
			issues = append(issues, fmt.Sprintf("llm.default_provider %q has no entry in llm.providers", c.LLM.DefaultProvider))
		}
	}
	for name := range c.LLM.Providers {
		if !knownProviders[name] {
			issues = append(issues, fmt.Sprintf("llm.providers.%s is not a supported provider", name))
		}
	}
	if c.LLM.SummaryProvider != "" && !knownProviders[c.LLM.SummaryProvider] {
		issues = append(issues, fmt.Sprintf("llm.summary_provider %q is not supported", c.LLM.SummaryProvider))
	}

	if c.Agent.MaxIterations <= 0 {
		issues = append(issues, "agent.max_iterations must be positive")
	}
	if strings.TrimSpace(c.Tools.Workspace) == "" {
		issues = append(issues, "tools.workspace is required")
	}
	if c.Tools.DefaultTimeout < 0 {
		issues = append(issues, "tools.default_timeout must not be negative")
	}
	if err := c.History.Validate(); err != nil {
		issues = append(issues, "history: "+err.Error())
	}
	if c.Retry.MaxAttempts < 1 {
		issues = append(issues, "retry.max_attempts must be at least 1")
	}
	if c.Retry.Base != 0 && c.Retry.Base < 1 {
		issues = append(issues, "retry.base must be at least 1")
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0 {
		issues = append(issues, "retry delays must not be negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		issues = append(issues, fmt.Sprintf("logging.format %q must be json or text", c.Logging.Format))
	}
	if c.Observability.Tracing.Enabled && c.Observability.Tracing.Endpoint == "" {
		issues = append(issues, "observability.tracing.endpoint is required when tracing is enabled")
	}

	switch c.Sessions.Store {
	case "memory":
	case "sql":
		switch c.Sessions.SQL.Driver {
		case sessions.DialectSQLite, sessions.DialectPostgres:
		default:
			issues = append(issues, fmt.Sprintf("sessions.sql.driver %q must be sqlite or postgres", c.Sessions.SQL.Driver))
		}
		if c.Sessions.SQL.DSN == "" {
			issues = append(issues, "sessions.sql.dsn is required")
		}
	default:
		issues = append(issues, fmt.Sprintf("sessions.store %q must be memory or sql", c.Sessions.Store))
	}

	if !strings.HasPrefix(c.Transport.WebSocketPath, "/") {
		issues = append(issues, "transport.websocket_path must start with /")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

// Provider returns the provider settings for name, falling back to the
// conventional API key environment variable when none is configured.
func (c *Config) Provider(name string) providers.Config {
	if name == "" {
		name = c.LLM.DefaultProvider
	}
	entry := c.LLM.Providers[name]
	cfg := providers.Config{
		Provider:  name,
		APIKey:    entry.APIKey,
		BaseURL:   entry.BaseURL,
		Model:     entry.DefaultModel,
		MaxTokens: entry.MaxTokens,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(strings.ToUpper(name) + "_API_KEY")
	}
	return cfg
}

// SummaryProvider returns the provider settings used for summaries.
func (c *Config) SummaryProvider() providers.Config {
	return c.Provider(c.LLM.SummaryProvider)
}
