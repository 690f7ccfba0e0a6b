// Package main provides the CLI entrypoint for casetrend.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/casetrend/internal/chart"
	"github.com/verte-zerg/casetrend/internal/config"
	"github.com/verte-zerg/casetrend/internal/dataset"
	"github.com/verte-zerg/casetrend/internal/logging"
	"github.com/verte-zerg/casetrend/internal/model"
	"github.com/verte-zerg/casetrend/internal/resolve"
	"github.com/verte-zerg/casetrend/internal/source"
	"github.com/verte-zerg/casetrend/internal/stats"
	"github.com/verte-zerg/casetrend/internal/store"
	"github.com/verte-zerg/casetrend/internal/tui"
)

const defaultPlotHeight = 10

var (
	queryPlot bool
	queryPNG  string

	sourceURL     string
	sourceTimeout time.Duration
	sourceOffline bool

	logLevel  string
	todayFlag string

	countriesAliases bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "casetrend [country]",
		Short: "COVID-19 case checkpoints and trends per country",
		Long: "Print monthly checkpoint totals, the latest totals and the mean daily\n" +
			"increase for a country. Without a country, start the interactive UI.",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.ArbitraryArgs,
		RunE:          runQueryCmd,
	}

	rootCmd.Flags().BoolVar(&queryPlot, "plot", false, "draw terminal plots of the country's time series")
	rootCmd.Flags().StringVar(&queryPNG, "png", "", "write a PNG chart of the country's time series to this path")

	rootCmd.PersistentFlags().StringVar(&sourceURL, "url", source.DefaultURL, "source CSV URL")
	rootCmd.PersistentFlags().DurationVar(&sourceTimeout, "timeout", source.DefaultTimeout, "download timeout")
	rootCmd.PersistentFlags().BoolVar(&sourceOffline, "offline", false, "use the cached dataset only")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logging.DefaultLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&todayFlag, "date", "", "reference date YYYY-MM-DD (default: today)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCountriesCmd())
	rootCmd.AddCommand(newFetchCmd())

	return rootCmd
}

// runtimeEnv carries what every command needs after flags and config merge.
type runtimeEnv struct {
	source model.SourceConfig
	today  time.Time
	logger *zap.Logger
}

func newRuntimeEnv(cmd *cobra.Command) (*runtimeEnv, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "url", &sourceURL, fileCfg.Source.URL)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	if d, ok, err := fileCfg.Source.TimeoutDuration(); err != nil {
		return nil, err
	} else if ok {
		applyDurationConfig(cmd, "timeout", &sourceTimeout, &d)
	}
	if cmd.Flags().Lookup("plot") != nil {
		applyBoolConfig(cmd, "plot", &queryPlot, fileCfg.Query.Plot)
	}
	applyBoolConfig(cmd, "offline", &sourceOffline, fileCfg.Query.Offline)

	if sourceTimeout <= 0 {
		return nil, fmt.Errorf("--timeout must be > 0")
	}
	today, err := parseToday(todayFlag, time.Now())
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logLevel)
	if err != nil {
		return nil, err
	}
	return &runtimeEnv{
		source: model.SourceConfig{
			URL:     strings.TrimSpace(sourceURL),
			Timeout: sourceTimeout,
			Offline: sourceOffline,
		},
		today:  today,
		logger: logger,
	}, nil
}

func (e *runtimeEnv) close() {
	// Sync on stderr fails on some terminals.
	_ = e.logger.Sync()
}

func parseToday(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return dataset.Day(now), nil
	}
	parsed, err := time.ParseInLocation(dataset.DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date value: %w", err)
	}
	return parsed, nil
}

func runQueryCmd(cmd *cobra.Command, args []string) error {
	env, err := newRuntimeEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	if queryPNG != "" && len(args) == 0 {
		return fmt.Errorf("--png requires a country")
	}

	sess, err := openSession(cmd.Context(), env)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		program := tea.NewProgram(tui.NewModel(sess, env.logger), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		return nil
	}

	report, err := sess.Query(strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderReport(out, report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	series := sess.Series(report.Country)
	if queryPlot {
		if err := stats.RenderCountrySeries(out, report.Country, series, 0, defaultPlotHeight, false); err != nil {
			return fmt.Errorf("failed to write plot: %w", err)
		}
	}
	if queryPNG != "" {
		if err := writePNG(queryPNG, report.Country, series); err != nil {
			return err
		}
		logErrf("Wrote %s\n", queryPNG)
	}
	return nil
}

func writePNG(path, country string, rows []model.Row) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create chart directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart: %w", err)
	}
	title := fmt.Sprintf("COVID-19 cases: %s", country)
	if err := chart.WritePNG(f, title, rows, chart.DefaultWidth, chart.DefaultHeight); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write chart: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close chart: %w", err)
	}
	return nil
}

func newCountriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "countries",
		Short: "List accepted country names",
		Args:  cobra.NoArgs,
		RunE:  runCountriesCmd,
	}
	cmd.Flags().BoolVar(&countriesAliases, "aliases", false, "list the alias table instead")
	return cmd
}

func runCountriesCmd(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if countriesAliases {
		aliases := resolve.Aliases()
		keys := make([]string, 0, len(aliases))
		for k := range aliases {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err := fmt.Fprintf(out, "%s -> %s\n", k, aliases[k]); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		return nil
	}

	env, err := newRuntimeEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close()
	sess, err := openSession(cmd.Context(), env)
	if err != nil {
		return err
	}
	for _, c := range sess.Countries() {
		if _, err := fmt.Fprintln(out, c); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download the dataset and refresh the cache",
		Args:  cobra.NoArgs,
		RunE:  runFetchCmd,
	}
}

func runFetchCmd(cmd *cobra.Command, _ []string) error {
	env, err := newRuntimeEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close()
	if env.source.Offline {
		return fmt.Errorf("fetch cannot run with --offline")
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	logErrln("Fetching", env.source.URL)
	fetch, rows, err := fetchAndCache(cmd.Context(), env.source, st, time.Now())
	if err != nil {
		return err
	}
	ds, err := dataset.Load(rows)
	if err != nil {
		return fmt.Errorf("fetched data is unusable: %w", err)
	}
	dates := ds.Dates()
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "fetch %s: %d rows, %d valid, %d skipped, %s to %s\n",
		fetch.ID, fetch.RowCount, ds.Len(), len(ds.Skipped()),
		dates[0].Format(dataset.DateLayout), dates[len(dates)-1].Format(dataset.DateLayout))
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target, value *time.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# casetrend configuration
# Uncomment a value to enable it. CLI flags override config values.

[source]
# url = %q
# timeout = %q            # Download timeout

[query]
# offline = false         # Use the cached dataset only
# plot = false            # Draw terminal plots for one-shot queries

[log]
# level = %q              # debug, info, warn or error
`,
		source.DefaultURL,
		source.DefaultTimeout.String(),
		logging.DefaultLevel,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
