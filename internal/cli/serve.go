package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/tanya/internal/config"
	"github.com/harun/tanya/internal/logger"
	"github.com/harun/tanya/internal/maintenance"
	"github.com/harun/tanya/internal/observability"
	"github.com/harun/tanya/internal/server"
	"github.com/harun/tanya/internal/tracing"
	"github.com/harun/tanya/pkg/agentexec"
	"github.com/harun/tanya/pkg/archive"
	"github.com/harun/tanya/pkg/intent"
	"github.com/harun/tanya/pkg/llm"
	"github.com/harun/tanya/pkg/memory"
	"github.com/harun/tanya/pkg/orchestrator"
	"github.com/harun/tanya/pkg/resilience"
	"github.com/harun/tanya/pkg/runtime"
	"github.com/harun/tanya/pkg/toolclient"
	"github.com/harun/tanya/pkg/trace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversation engine",
	Long: `Run the conversation engine in the foreground.
The engine serves the session API over HTTP until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()
	log := lg.GetZerolog()

	if err := tracing.InitOpenTelemetry("tanya", version); err != nil {
		log.Warn().Err(err).Msg("OpenTelemetry init failed, spans disabled")
	}

	if cfg.DataDir != "" {
		if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
			log.Warn().Err(err).Msg("Audit log unavailable, falling back to stderr")
		}
	}

	rt, engine, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}
	defer engine.close()

	srv, err := server.New(server.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Runtime: rt,
		Logger:  log.With().Str("component", "server").Logger(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	var sweeper *maintenance.Sweeper
	if cfg.Maintenance.Enabled {
		sweeper, err = maintenance.New(maintenance.Config{
			Schedule: cfg.Maintenance.Schedule,
			Limiter:  engine.limiter,
			Breakers: engine.breakers,
			Sessions: rt,
			Logger:   log.With().Str("component", "maintenance").Logger(),
		})
		if err != nil {
			return fmt.Errorf("failed to create sweeper: %w", err)
		}
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("failed to start sweeper: %w", err)
		}
	}

	// Log level follows config edits without a restart.
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if err := loader.Watch(watchCtx, func(next *config.Config) {
		if lvl, err := zerolog.ParseLevel(next.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(lvl)
			log.Info().Str("level", next.Logging.Level).Msg("Log level updated")
		}
	}); err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable")
	}

	log.Info().Str("version", version).Int("port", cfg.Server.Port).Msg("Engine started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	if sweeper != nil {
		sweeper.Stop()
	}
	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("OpenTelemetry shutdown failed")
	}

	return nil
}

// engine bundles the wired components whose lifecycle outlives request
// handling.
type engine struct {
	limiter  *resilience.RateLimiter
	breakers *resilience.BreakerRegistry
	archiver *archive.Archiver
}

func (e *engine) close() {
	if e.archiver != nil {
		e.archiver.Close()
	}
}

// buildEngine wires the session store, tracer, tool client, providers,
// orchestrator and executor into a runtime.
func buildEngine(cfg *config.Config, log zerolog.Logger) (*runtime.Runtime, *engine, error) {
	store := memory.NewStore(memory.Config{
		MaxOrderNumbers: cfg.Session.MaxOrderNumbers,
		MaxCachedTools:  cfg.Session.MaxCachedTools,
	})
	tracer := trace.NewTracer()

	breakers := resilience.NewBreakerRegistry(resilience.BreakerConfig{
		FailureThreshold: cfg.Resilience.FailureThreshold,
		SuccessThreshold: cfg.Resilience.SuccessThreshold,
		ResetTimeout:     cfg.Resilience.ResetTimeout,
		MonitoringWindow: cfg.Resilience.MonitoringWindow,
	})

	catalog, err := toolclient.NewCatalog(cfg.Tools.Definitions)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid tool catalog: %w", err)
	}
	tools, err := toolclient.New(toolclient.Config{
		BaseURL:     cfg.Tools.BaseURL,
		CallTimeout: cfg.Tools.CallTimeout,
		MaxAttempts: cfg.Tools.MaxAttempts,
		Catalog:     catalog,
		Breakers:    breakers,
		Logger:      log.With().Str("component", "tools").Logger(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tool client: %w", err)
	}

	providers, err := buildProviders(cfg.AI.Profiles)
	if err != nil {
		return nil, nil, err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Store:                store,
		Tracer:               tracer,
		Classifier:           intent.NewTableClassifier(cfg.Intents),
		Confidence:           resilience.NewConfidenceEvaluator(),
		Agents:               cfg.Agents,
		Routing:              cfg.Routing,
		EscalationKeywords:   cfg.Escalation.Keywords,
		TriggerPhrases:       cfg.Escalation.TriggerPhrases,
		MultiIntentThreshold: cfg.Escalation.MultiIntentThreshold,
		ToolFailureThreshold: cfg.Escalation.ToolFailureThreshold,
		Logger:               log.With().Str("component", "orchestrator").Logger(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	exec, err := agentexec.New(agentexec.Config{
		Store:       store,
		Tracer:      tracer,
		Tools:       tools,
		Providers:   providers,
		Breakers:    breakers,
		Model:       cfg.Models.Default,
		Temperature: cfg.Models.Temperature,
		MaxTokens:   cfg.Models.MaxTokens,
		Logger:      log.With().Str("component", "executor").Logger(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create executor: %w", err)
	}

	eng := &engine{breakers: breakers}

	if cfg.Session.RateLimit > 0 {
		eng.limiter = resilience.NewRateLimiter(cfg.Session.RateLimit, cfg.Session.RateLimitWindow)
	}

	rtCfg := runtime.Config{
		Store:        store,
		Tracer:       tracer,
		Orchestrator: orch,
		Executor:     exec,
		Limiter:      eng.limiter,
		Logger:       log.With().Str("component", "runtime").Logger(),
	}

	if cfg.Archive.Enabled {
		archiver, err := archive.Open(cfg.Archive.Path, log.With().Str("component", "archive").Logger())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open archive: %w", err)
		}
		eng.archiver = archiver
		rtCfg.Archiver = archiver
	}

	rt, err := runtime.New(rtCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create runtime: %w", err)
	}

	return rt, eng, nil
}

// buildProviders creates the LLM fallback chain ordered by profile priority.
func buildProviders(profiles []config.AIProfile) ([]llm.Provider, error) {
	sorted := append([]config.AIProfile(nil), profiles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	factory := &llm.Factory{}
	providers := make([]llm.Provider, 0, len(sorted))
	for _, p := range sorted {
		provider, err := factory.NewProvider(llm.AuthProfile{
			ID:       p.ID,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			Priority: p.Priority,
		})
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.ID, err)
		}
		providers = append(providers, provider)
	}
	return providers, nil
}
