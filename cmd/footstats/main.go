package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tordrt/footstats/internal/app"
	"github.com/tordrt/footstats/internal/config"
	"github.com/tordrt/footstats/internal/menu"
)

var (
	configFile   string
	inspectStore string
	inspectLog   string
	inspectFmt   string
	diagramFile  string
)

var rootCmd = &cobra.Command{
	Use:   "footstats",
	Short: "Migrate football statistics from SQLite to PostgreSQL and query them",
	Long: `FootStats copies the Country, League, Team, Player and Match tables from a SQLite
database into PostgreSQL, where a trigger keeps each team's total points up to date.
Run without a subcommand for the interactive menu.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		return menu.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a)
	}),
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every table from the source into the target store",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, _ *cobra.Command, a *app.App, _ []string) error {
		return a.Migrate(ctx)
	}),
}

var searchCmd = &cobra.Command{
	Use:   "search <fragment>",
	Short: "Find up to 5 players whose name contains fragment",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, _ *cobra.Command, a *app.App, args []string) error {
		return a.Search(ctx, args[0])
	}),
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the 5 teams with the most points",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, _ *cobra.Command, a *app.App, _ []string) error {
		return a.Top(ctx)
	}),
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Write the tables, columns and keys of a store to a log file",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, _ *cobra.Command, a *app.App, _ []string) error {
		return a.Inspect(ctx, inspectStore, inspectLog, inspectFmt)
	}),
}

var diagramCmd = &cobra.Command{
	Use:   "diagram",
	Short: "Write the ER diagram of the migrated tables as Graphviz DOT",
	Args:  cobra.NoArgs,
	RunE: withApp(func(_ context.Context, _ *cobra.Command, a *app.App, _ []string) error {
		return a.Diagram(diagramFile)
	}),
}

var initTargetCmd = &cobra.Command{
	Use:   "init-target",
	Short: "Create the target tables and the total points trigger",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, _ *cobra.Command, a *app.App, _ []string) error {
		return a.InitTarget(ctx)
	}),
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: footstats.yaml in the working directory)")
	flags.String("source-path", "", "SQLite source database file (default: database.sqlite)")
	flags.String("target-host", "", "PostgreSQL host (default: localhost)")
	flags.Int("target-port", 0, "PostgreSQL port (default: 5432)")
	flags.String("target-db", "", "PostgreSQL database name (default: footstats)")
	flags.String("target-user", "", "PostgreSQL user (default: postgres)")
	flags.String("target-password", "", "PostgreSQL password")
	flags.String("log-level", "", "Log level: debug, info, warn or error (default: info)")
	flags.String("log-format", "", "Log format: text or json (default: text)")

	inspectCmd.Flags().StringVar(&inspectStore, "store", app.StoreSource, "Store to inspect: source or target")
	inspectCmd.Flags().StringVar(&inspectLog, "log", "log.txt", "Output file")
	inspectCmd.Flags().StringVarP(&inspectFmt, "format", "f", app.FormatText, "Output format: text or markdown")

	diagramCmd.Flags().StringVarP(&diagramFile, "output", "o", "footstats_er.gv", "Output file")

	rootCmd.AddCommand(migrateCmd, searchCmd, topCmd, inspectCmd, diagramCmd, initTargetCmd)
}

type action func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error

// withApp resolves the configuration and logger, then runs fn with an App
// printing to the command's output.
func withApp(fn action) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}

		logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}

		return fn(cmd.Context(), cmd, app.New(cfg, logger, cmd.OutOrStdout()), args)
	}
}

func newLogger(out io.Writer, level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", format)
	}
	return logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
