package commands

import (
	"context"
	"log/slog"
	"os"

	"code.cloudfoundry.org/clock"
	"github.com/prometheus/client_golang/prometheus"

	"dtp/internal/config"
	"dtp/internal/discovery"
	"dtp/internal/execution"
	"dtp/internal/metrics"
	"dtp/internal/poll"
	"dtp/internal/project"
	"dtp/internal/runner"
	"dtp/internal/storage"
	"dtp/internal/toolchain"
	"dtp/internal/ui"
)

// Deps are the components shared by all commands. They are built once the
// flags are parsed and the configuration is loaded.
type Deps struct {
	Config      *config.Config
	Log         *slog.Logger
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Notifier    *ui.Notifier
	Formatter   *ui.Formatter
	Scanner     *discovery.Scanner
	Filter      *discovery.Filter
	Storage     storage.Storage
	Waiter      *poll.Waiter
	Runner      *runner.Manager
	Coordinator *execution.Coordinator

	// commands left running in the runner when the command returns
	drain bool
}

// NewDeps wires the orchestrator for cfg
func NewDeps(cfg *config.Config, log *slog.Logger) *Deps {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	notifier := ui.NewNotifier(os.Stderr)

	tc := toolchain.New(toolchain.NewExecCommander(cfg.DotnetPath), log.With("component", "toolchain"), m)
	resolver := project.NewResolver(tc, notifier, log.With("component", "resolver"))
	scanner := discovery.NewScanner(cfg.PathsToIgnore)
	enumerator := discovery.NewEnumerator(scanner, tc, resolver, notifier, log.With("component", "enumerator"), cfg.Processors)

	locator := &runner.Locator{
		SDKRoots:    cfg.GetSDKRoots(),
		ScriptPaths: cfg.ScriptPaths,
		Script:      cfg.RunnerScript,
		ScriptName:  config.DefaultRunnerScript,
		TestHost:    config.DefaultTestHost,
	}
	runnerLog := log.With("component", "runner")
	manager := runner.NewManager(runner.NewDotnetLauncher(cfg.DotnetPath, locator, runnerLog, m), runnerLog, m)

	waiter := poll.NewWaiter(clock.NewClock(), cfg.PollInterval, log.With("component", "poll"), m)
	coordinator := execution.NewCoordinator(resolver, enumerator, tc, manager, waiter, notifier,
		log.With("component", "coordinator"), m, execution.Options{
			Root:             cfg.GetRootPath(),
			ScratchDir:       cfg.GetScratchDir(),
			DiscoveryTimeout: cfg.DiscoveryTimeout,
			DebugTimeout:     cfg.DebugTimeout,
		})

	return &Deps{
		Config:      cfg,
		Log:         log,
		Registry:    reg,
		Metrics:     m,
		Notifier:    notifier,
		Formatter:   ui.NewFormatter(cfg, os.Stdout),
		Scanner:     scanner,
		Filter:      discovery.NewFilter(),
		Storage:     storage.NewJSONStorage(cfg),
		Waiter:      waiter,
		Runner:      manager,
		Coordinator: coordinator,
	}
}

// Drain makes Close wait for the commands already sent to the runner
func (d *Deps) Drain() {
	d.drain = true
}

// Close stops the runner subprocess. After Drain it waits for the runner
// to finish until ctx is done; otherwise the runner is killed right away.
func (d *Deps) Close(ctx context.Context) error {
	if d.drain {
		d.Log.Info("waiting for the runner to finish", "grace", d.Config.RunnerGrace)
		return d.Runner.Shutdown(ctx)
	}
	return d.Runner.Close()
}
