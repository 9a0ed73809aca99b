package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/towercmp/internal/config"
	"github.com/yairfalse/towercmp/internal/fetcher"
	"github.com/yairfalse/towercmp/internal/filter"
	"github.com/yairfalse/towercmp/internal/orchestrator"
	"github.com/yairfalse/towercmp/internal/report"
	"github.com/yairfalse/towercmp/internal/snapshot"
	"github.com/yairfalse/towercmp/internal/source"
	"github.com/yairfalse/towercmp/internal/telemetry"
)

type compareOptions struct {
	username        string
	towerURL        string
	awxURL          string
	output          string
	export          string
	format          string
	types           []string
	exclude         []string
	snapshotDB      string
	offline         bool
	continueOnError bool
	timeout         time.Duration
}

var compareOpts compareOptions

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare resources between Tower and AWX",
	Long: `Fetch every selected resource type from both instances, compare them
by normalized name and write the findings to stdout and the report file.

The password is prompted for without echo. When stdin is not a terminal
the first line of stdin is used.`,
	Example: `  towercmp compare --username admin --tower-url https://tower --awx-url https://awx
  towercmp compare -c towercmp.toml --username admin --types inventories,credentials
  towercmp compare -c towercmp.toml --username admin --export findings.csv --format csv
  towercmp compare -c towercmp.toml --offline`,
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	f := compareCmd.Flags()
	f.StringVarP(&compareOpts.username, "username", "u", "", "Username for both instances (required unless --offline)")
	f.StringVar(&compareOpts.towerURL, "tower-url", "", "Tower base URL")
	f.StringVar(&compareOpts.awxURL, "awx-url", "", "AWX base URL")
	f.StringVarP(&compareOpts.output, "output", "o", "", "Text report path (default comparison_output.txt)")
	f.StringVar(&compareOpts.export, "export", "", "Write structured findings to this path")
	f.StringVarP(&compareOpts.format, "format", "f", "", "Export format: json, yaml, csv")
	f.StringSliceVarP(&compareOpts.types, "types", "t", nil, "Resource types to compare (default all)")
	f.StringSliceVarP(&compareOpts.exclude, "exclude", "x", nil, "Name patterns to skip, optionally prefixed with <type>:")
	f.StringVar(&compareOpts.snapshotDB, "snapshot-db", "", "Snapshot database path")
	f.BoolVar(&compareOpts.offline, "offline", false, "Compare the latest snapshots instead of the live APIs")
	f.BoolVar(&compareOpts.continueOnError, "continue-on-error", false, "Keep comparing other resource types after one fails")
	f.DurationVar(&compareOpts.timeout, "timeout", 0, "HTTP request timeout (0 = none)")
}

// applyCompareFlags overrides config values with flags that were set.
func applyCompareFlags(cmd *cobra.Command, cfg *config.Config, opts compareOptions) {
	flags := cmd.Flags()
	if flags.Changed("tower-url") {
		cfg.Tower.URL = opts.towerURL
	}
	if flags.Changed("awx-url") {
		cfg.AWX.URL = opts.awxURL
	}
	if flags.Changed("output") {
		cfg.Report.Path = opts.output
	}
	if flags.Changed("export") {
		cfg.Report.ExportPath = opts.export
	}
	if flags.Changed("format") {
		cfg.Report.ExportFormat = opts.format
	}
	if flags.Changed("types") {
		cfg.Compare.ResourceTypes = opts.types
	}
	if flags.Changed("exclude") {
		cfg.Compare.Exclude = opts.exclude
	}
	if flags.Changed("snapshot-db") {
		cfg.Snapshot.Path = opts.snapshotDB
	}
	if flags.Changed("continue-on-error") {
		cfg.Compare.ContinueOnError = opts.continueOnError
	}
	if flags.Changed("timeout") {
		cfg.HTTP.Timeout = opts.timeout
	}
}

func runCompare(cmd *cobra.Command, _ []string) error {
	opts := compareOpts

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	applyCompareFlags(cmd, cfg, opts)

	if err := cfg.Validate(!opts.offline); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if opts.offline && cfg.Snapshot.Path == "" {
		return errors.New("--offline requires --snapshot-db or snapshot.path")
	}
	if !opts.offline && opts.username == "" {
		return errors.New(`required flag "username" not set`)
	}

	if err := telemetry.SetupLogging(cmd.ErrOrStderr(), cfg.Log.Level, debug); err != nil {
		return err
	}

	var password string
	if !opts.offline {
		password, err = promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), opts.username)
		if err != nil {
			return err
		}
	}

	return compare(cmd.Context(), cfg, fetcher.Credentials{Username: opts.username, Password: password}, opts.offline, cmd.OutOrStdout())
}

// compare wires sources, sinks and telemetry from cfg and runs the
// comparison until it finishes or a termination signal arrives.
func compare(ctx context.Context, cfg *config.Config, creds fetcher.Credentials, offline bool, stdout io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	types, err := cfg.Types()
	if err != nil {
		return err
	}
	exclude, err := filter.New(cfg.Compare.Exclude)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	provider, err := telemetry.NewProvider(ctx, cfg.OTEL, cfg.Metrics.Textfile)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := provider.Shutdown(shutdownCtx); serr != nil {
			log.Warn().Err(serr).Msg("telemetry shutdown failed")
		}
	}()

	var store *snapshot.Store
	if cfg.Snapshot.Path != "" {
		store, err = snapshot.Open(cfg.Snapshot.Path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	left, right := buildSources(cfg, creds, offline, store, provider)

	sink, err := buildSink(cfg, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report: %w", cerr)
		}
	}()

	orch := orchestrator.New(left, right, sink,
		orchestrator.WithTypes(types),
		orchestrator.WithFilter(exclude),
		orchestrator.WithContinueOnError(cfg.Compare.ContinueOnError),
		orchestrator.WithRecorder(provider),
	)

	var g run.Group
	{
		runCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			_, err := orch.Run(runCtx)
			return err
		}, func(error) {
			cancel()
		})
	}
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	return g.Run()
}

func buildSources(cfg *config.Config, creds fetcher.Credentials, offline bool, store *snapshot.Store, observer fetcher.Observer) (source.Source, source.Source) {
	if offline {
		return store.Source(cfg.Tower.Name), store.Source(cfg.AWX.Name)
	}

	client := fetcher.NewHTTPClient(cfg.HTTP.SkipVerify(), cfg.HTTP.Timeout)
	var left, right source.Source = fetcher.New(cfg.Tower.Name, cfg.Tower.URL, creds,
		fetcher.WithHTTPClient(client),
		fetcher.WithObserver(observer),
	), fetcher.New(cfg.AWX.Name, cfg.AWX.URL, creds,
		fetcher.WithHTTPClient(client),
		fetcher.WithObserver(observer),
	)

	if store != nil {
		left = source.NewRecording(left, store)
		right = source.NewRecording(right, store)
	}
	return left, right
}

func buildSink(cfg *config.Config, stdout io.Writer) (report.Sink, error) {
	sides := cfg.Sides()

	fileSink, err := report.NewFileSink(cfg.Report.Path, sides)
	if err != nil {
		return nil, err
	}
	sinks := []report.Sink{report.NewTextSink(stdout), fileSink}

	if cfg.Report.ExportPath != "" {
		exportSink, err := report.NewExportSink(cfg.Report.ExportPath, cfg.Report.ExportFormat, sides)
		if err != nil {
			_ = fileSink.Close()
			return nil, err
		}
		sinks = append(sinks, exportSink)
	}

	return report.NewMultiSink(sinks...), nil
}
