package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/events"
	"github.com/haasonsaas/agentcore/internal/history"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/providers"
	"github.com/haasonsaas/agentcore/internal/retry"
	"github.com/haasonsaas/agentcore/internal/sessions"
	"github.com/haasonsaas/agentcore/internal/summarize"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/internal/tools/files"
	"github.com/haasonsaas/agentcore/internal/tools/system"
	"github.com/haasonsaas/agentcore/internal/workspace"
)

const defaultSystemPrompt = `You are a capable assistant working inside a project workspace.
Use the file tools to inspect and change files. Call finish_task when the
request is done and ask_user when you need more information.`

// app holds the components shared by every session of one process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	bus      *events.Bus
	guard    *workspace.Guard
	engine   *tools.Engine
	store    sessions.Store
	runner   *agent.Runner
	prompt   string

	summarizer history.Summarizer
	closers    []func(context.Context) error
}

// newApp wires the runtime from cfg. A nil model is built from the
// configured provider.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer, model agent.Model) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	a.logger = observability.NewLogger(observability.LogConfig{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		Output:         logOut,
		AddSource:      cfg.Logging.AddSource,
		RedactPatterns: cfg.Logging.RedactPatterns,
	})

	if cfg.Observability.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = observability.NewMetrics(a.registry)
	}

	traceCfg := observability.TraceConfig{ServiceName: "agentcore", ServiceVersion: version}
	if t := cfg.Observability.Tracing; t.Enabled {
		traceCfg = observability.TraceConfig{
			ServiceName:    t.ServiceName,
			ServiceVersion: t.ServiceVersion,
			Environment:    t.Environment,
			Endpoint:       t.Endpoint,
			SamplingRate:   t.SamplingRate,
			Attributes:     t.Attributes,
			Insecure:       t.Insecure,
		}
		if traceCfg.ServiceVersion == "" {
			traceCfg.ServiceVersion = version
		}
	}
	tracer, shutdown := observability.NewTracer(traceCfg)
	a.tracer = tracer
	a.closers = append(a.closers, shutdown)

	a.bus = events.NewBus(a.logger, events.WithMetrics(a.metrics))
	agent.RegisterLogListener(a.bus, a.logger)
	agent.RegisterMetricsListener(a.bus, a.metrics)

	registry, guard, err := buildToolRegistry(cfg, a.bus)
	if err != nil {
		return nil, err
	}
	a.guard = guard
	a.engine = tools.NewEngine(registry, a.bus,
		tools.WithLogger(a.logger),
		tools.WithMetrics(a.metrics),
		tools.WithTracer(a.tracer),
		tools.WithDefaultTimeout(cfg.Tools.DefaultTimeout),
	)

	if model == nil {
		provider, err := providers.NewFromConfig(cfg.Provider(""))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize provider: %w", err)
		}
		model = provider
	}
	a.summarizer, err = buildSummarizer(cfg, model)
	if err != nil {
		return nil, err
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	base := cfg.Agent.SystemPrompt
	if base == "" {
		base = defaultSystemPrompt
	}
	instructions, err := workspace.LoadInstructions(guard, cfg.Agent.InstructionFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace instructions: %w", err)
	}
	a.prompt = instructions.SystemPrompt(base)

	a.runner = agent.NewRunner(model, a.engine, a.bus,
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithRetry(retry.New(cfg.Retry)),
		agent.WithSnapshots(a.store),
		agent.WithLogger(a.logger),
		agent.WithTracer(a.tracer),
		agent.WithModelName(cfg.Provider("").Model),
	)
	return a, nil
}

// buildToolRegistry registers the system tools and, when enabled, the
// workspace file tools.
func buildToolRegistry(cfg *config.Config, bus *events.Bus) (*tools.Registry, *workspace.Guard, error) {
	registry := tools.NewRegistry()
	if err := system.Register(registry); err != nil {
		return nil, nil, fmt.Errorf("failed to register system tools: %w", err)
	}

	guard, err := workspace.NewGuard(cfg.Tools.Workspace)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	if cfg.Tools.Files.Enabled {
		err := files.Register(registry, files.Config{
			Sandbox:      guard,
			Emitter:      files.BusEmitter{Bus: bus},
			MaxReadBytes: cfg.Tools.Files.MaxReadBytes,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to register file tools: %w", err)
		}
	}
	return registry, guard, nil
}

// buildSummarizer uses the summary provider when one is configured and
// the session model otherwise.
func buildSummarizer(cfg *config.Config, model agent.Model) (history.Summarizer, error) {
	name := cfg.LLM.SummaryProvider
	if name == "" || name == cfg.LLM.DefaultProvider {
		return summarize.New(model, summarize.WithRetry(retry.New(cfg.Retry))), nil
	}
	provider, err := providers.NewFromConfig(cfg.SummaryProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize summary provider: %w", err)
	}
	return summarize.New(provider, summarize.WithRetry(retry.New(cfg.Retry))), nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Sessions.Store {
	case "sql":
		store, err := sessions.OpenSQL(ctx, a.cfg.Sessions.SQL)
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
	default:
		a.store = sessions.NewMemoryStore()
	}
	return nil
}

// newSession creates a session whose history publishes on the shared bus.
// A stored snapshot for id is restored first.
func (a *app) newSession(ctx context.Context, id string) (*agent.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	hist, err := history.NewManager(a.cfg.History, a.summarizer,
		history.WithEvents(a.bus, id),
		history.WithLogger(a.logger),
		history.WithMetrics(a.metrics),
		history.WithTracer(a.tracer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create history: %w", err)
	}

	resumed, err := sessions.Resume(ctx, a.store, id, hist)
	if err != nil {
		return nil, err
	}
	if resumed {
		a.logger.InfoContext(observability.AddSessionID(ctx, id), "session resumed", "messages", hist.Len())
	}
	return agent.NewSession(id, hist, a.prompt), nil
}

// serve runs s against sink, watching the workspace for the session when
// configured.
func (a *app) serve(ctx context.Context, s *agent.Session, sink agent.Sink) error {
	if a.cfg.Tools.WatchWorkspace {
		watcher := workspace.NewWatcher(a.guard, a.bus, s.ID, a.logger)
		if err := watcher.Start(ctx); err != nil {
			a.logger.WarnContext(ctx, "workspace watcher unavailable", "error", err)
		} else {
			defer watcher.Close()
		}
	}
	return a.runner.Serve(ctx, s, sink)
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
