package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/replayer/pkg/cachenotify"
	"github.com/Sumatoshi-tech/replayer/pkg/config"
	"github.com/Sumatoshi-tech/replayer/pkg/gitcli"
	"github.com/Sumatoshi-tech/replayer/pkg/gitlib"
	"github.com/Sumatoshi-tech/replayer/pkg/observability"
	"github.com/Sumatoshi-tech/replayer/pkg/replay"
	"github.com/Sumatoshi-tech/replayer/pkg/report"
	"github.com/Sumatoshi-tech/replayer/pkg/version"
)

const shutdownTimeout = 5 * time.Second

// Backends are the replay collaborators built for one run.
type Backends struct {
	Workspace  replay.Workspace
	Enumerator replay.Enumerator
	Notifier   replay.Notifier
}

type backendFactory func(cfg *config.Config, providers observability.Providers) (Backends, error)

// RunCommand holds the dependencies of the run command.
type RunCommand struct {
	configPath string
	backends   backendFactory
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	return newRunCommandWithDeps(defaultBackends)
}

func newRunCommandWithDeps(backends backendFactory) *cobra.Command {
	rc := &RunCommand{backends: backends}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay source history onto the target branch",
		Long: `Merge every commit reachable from the source branch and not from the target
branch into the target, one stride of --batch-size commits at a time. After
each stride the target is pushed and the cache service is notified, then the
run waits --delay before the next stride.`,
		Example: `  replayer run --owner acme --repo widgets --path ./widgets --target feature1`,
		Args:    cobra.NoArgs,
		RunE:    rc.run,
	}

	flags := cmd.Flags()
	flags.StringVar(&rc.configPath, "config", "", "Config file (default: ./replayer.yaml or $HOME/.replayer/replayer.yaml)")

	flags.String("source", config.DefaultSource, "Branch whose history is replayed")
	flags.String("target", "", "Branch the history is merged into (required)")
	flags.String("owner", "", "Repository owner on GitHub (required)")
	flags.String("repo", "", "Repository name on GitHub (required)")
	flags.String("path", "", "Path to the local checkout (required)")
	flags.Int("batch-size", config.DefaultBatchSize, "Commits per stride")
	flags.Duration("delay", config.DefaultDelay, "Pause between strides")
	flags.String("max-buffer", config.DefaultMaxBuffer, "Max captured git output per command (e.g. 2MiB, 512KB)")
	flags.String("enumerator", config.DefaultEnumerator, "History backend: cli or libgit2")
	flags.Bool("dry-run", false, "Only enumerate and print the planned stride boundaries")

	flags.String("cache-api", config.DefaultCacheBaseURL, "Cache service base URL")
	flags.Duration("cache-timeout", config.DefaultCacheTimeout, "Timeout of one cache notification")
	flags.Bool("cache-await", false, "Wait for each cache notification before pacing")
	flags.Bool("legacy-query", false, "Send the historical '?branch=' query separator")

	flags.String("report", config.DefaultReportFormat, "Run report format: text, json, yaml, none")
	flags.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	flags.String("log-format", config.DefaultLogFormat, "Log format: text or json")
	flags.String("otlp-endpoint", "", "OTLP gRPC collector address for traces and metrics")
	flags.String("metrics-addr", "", "Serve Prometheus /metrics and /healthz on this address")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(config.LoadOptions{Path: rc.configPath, Flags: cmd.Flags()})
	if err != nil {
		var missing *config.MissingOptionsError
		if errors.As(err, &missing) {
			fmt.Fprintf(cmd.ErrOrStderr(), "missing required option(s): --%s\n\n%s\n",
				strings.Join(missing.Options, ", --"), cmd.UsageString())
		}

		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	ctx := cmd.Context()

	providers, err := observability.Init(ctx, observabilityConfig(cfg, cmd))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if shutdownErr := providers.Shutdown(shutdownCtx); shutdownErr != nil {
			providers.Logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	logger := providers.Logger

	if providers.MetricsHandler != nil {
		srv, srvErr := observability.StartMetricsServer(cfg.Observability.MetricsAddr, providers.MetricsHandler, logger)
		if srvErr != nil {
			return fmt.Errorf("start metrics server: %w", srvErr)
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.Warn("metrics server shutdown failed", "error", shutdownErr)
			}
		}()
	}

	recorder, err := observability.NewReplayMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	backends, err := rc.backends(cfg, providers)
	if err != nil {
		return err
	}

	driver, err := replay.NewDriver(replay.Options{
		Source:      cfg.Replay.Source,
		Target:      cfg.Replay.Target,
		BatchSize:   cfg.Replay.BatchSize,
		AwaitNotify: cfg.Cache.Await,
		DryRun:      cfg.Replay.DryRun,
	}, replay.Deps{
		Workspace:  backends.Workspace,
		Enumerator: backends.Enumerator,
		Notifier:   backends.Notifier,
		Pacer:      replay.NewPacer(cfg.Replay.Delay),
		Logger:     logger,
		Tracer:     providers.Tracer,
		Recorder:   recorder,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	logger.InfoContext(ctx, "starting replay",
		"source", cfg.Replay.Source,
		"target", cfg.Replay.Target,
		"path", cfg.Repository.Path,
		"batch_size", cfg.Replay.BatchSize,
		"delay", cfg.Replay.Delay,
		"max_buffer", humanize.IBytes(uint64(cfg.Replay.MaxBufferBytes)),
		"enumerator", cfg.Replay.Enumerator,
	)

	summary, runErr := driver.Run(ctx)

	logRunResult(ctx, logger, summary, runErr)

	reportErr := report.Write(cmd.OutOrStdout(), cfg.Report.Format, summary)
	if reportErr != nil {
		logger.ErrorContext(ctx, "write report", "error", reportErr)
	}

	return runErr
}

func logRunResult(ctx context.Context, logger *slog.Logger, summary *replay.Summary, runErr error) {
	merge, push, notify := summary.Failures()

	attrs := []any{
		"state", summary.State,
		"commits", summary.Commits,
		"strides", len(summary.Strides),
		"merge_failures", merge,
		"push_failures", push,
		"notify_failures", notify,
		"elapsed", summary.Elapsed().Round(time.Millisecond),
	}

	if runErr != nil {
		logger.ErrorContext(ctx, "replay aborted", append(attrs, "error", runErr)...)

		return
	}

	logger.InfoContext(ctx, "replay finished", attrs...)
}

func observabilityConfig(cfg *config.Config, cmd *cobra.Command) observability.Config {
	level, _ := cfg.Logging.SlogLevel()

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.Prometheus = cfg.Observability.MetricsAddr != ""
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON
	obsCfg.LogWriter = cmd.ErrOrStderr()

	if cfg.Replay.DryRun {
		obsCfg.Mode = observability.ModeDryRun
	}

	return obsCfg
}

func defaultBackends(cfg *config.Config, providers observability.Providers) (Backends, error) {
	repo := gitcli.NewRepo(
		cfg.Repository.Path,
		gitcli.NewExecExecutor(cfg.Replay.MaxBufferBytes),
		providers.Logger,
	).WithTracer(providers.Tracer)

	var enumerator replay.Enumerator = repo
	if cfg.Replay.Enumerator == config.EnumeratorLibgit2 {
		enumerator = gitlib.NewEnumerator(cfg.Repository.Path)
	}

	notifier, err := cachenotify.New(cachenotify.Options{
		BaseURL:     cfg.Cache.BaseURL,
		Timeout:     cfg.Cache.Timeout,
		LegacyQuery: cfg.Cache.LegacyQuery,
		Logger:      providers.Logger,
		Tracer:      providers.Tracer,
	}, cachenotify.Target{
		Owner:  cfg.Repository.Owner,
		Repo:   cfg.Repository.Name,
		Branch: cfg.Replay.Target,
	})
	if err != nil {
		return Backends{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	return Backends{Workspace: repo, Enumerator: enumerator, Notifier: notifier}, nil
}
