// todostats prints todo statistics straight from the SQLite store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/cli"
	"taskboard/internal/config"
	"taskboard/internal/core"
	"taskboard/internal/log"
	"taskboard/internal/services"
	"taskboard/internal/storage"
)

var (
	version   = "0.1.0"
	logLevel  string
	logFormat string
)

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := config.Load()

	rootCmd := &cobra.Command{
		Use:   "todostats",
		Short: "Todo statistics from the taskboard database",
		Long: `todostats computes the same statistics report served by GET /todos/stats,
reading todos directly from the SQLite database.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Compute and print the statistics report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			tz, _ := cmd.Flags().GetString("tz")
			at, _ := cmd.Flags().GetString("now")
			return runReport(cmd.Context(), cmd.OutOrStdout(), dbPath, tz, at)
		},
	}
	reportCmd.Flags().String("db", defaults.SQLiteDBPath, "SQLite database path")
	reportCmd.Flags().String("tz", defaults.StatsTimezone, "IANA zone for calendar boundaries")
	reportCmd.Flags().String("now", "", "evaluate as of this RFC3339 instant (default: current time)")

	latestCmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the most recent snapshot stored by taskboard-worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			return runLatest(cmd.Context(), cmd.OutOrStdout(), dbPath)
		},
	}
	latestCmd.Flags().String("db", defaults.SQLiteDBPath, "SQLite database path")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "todostats %s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	rootCmd.AddCommand(reportCmd, latestCmd, versionCmd)
	return rootCmd
}

func setupLogging() {
	cfg := log.DefaultConfig()
	cfg.Component = log.ComponentCLI
	cfg.Format = logFormat
	cfg.Output = os.Stderr
	if lvl, err := log.ParseLevel(logLevel); err == nil {
		cfg.Level = lvl
	}
	log.SetDefault(log.New(cfg))
}

func runReport(ctx context.Context, out io.Writer, dbPath, tz, at string) error {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid --tz %q: %w", tz, err)
	}
	now := time.Now
	if at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --now %q: must be RFC3339", at)
		}
		now = func() time.Time { return t }
	}

	repo, err := openExisting(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	report, err := services.NewStatsService(repo, nil, services.StatsConfig{Location: loc, Now: now}).Compute(ctx)
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}

func runLatest(ctx context.Context, out io.Writer, dbPath string) error {
	repo, err := openExisting(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	snap, err := repo.LatestStatsSnapshot(ctx)
	if errors.Is(err, core.ErrNotFound) {
		return errors.New("no stats snapshot stored yet; is taskboard-worker running?")
	}
	if err != nil {
		return err
	}
	return writeJSON(out, snap)
}

// openExisting refuses to create a database; a mistyped --db would otherwise
// yield an empty store and an all-zero report.
func openExisting(dbPath string) (*storage.SQLiteRepository, error) {
	info, err := os.Stat(dbPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("database %q does not exist", dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("database %q is a directory", dbPath)
	}
	return storage.NewSQLiteRepository(dbPath)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
