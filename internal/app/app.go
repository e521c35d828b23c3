// Package app wires configuration, stores and services into the user facing
// actions shared by the menu and the subcommands.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tordrt/footstats/internal/config"
	"github.com/tordrt/footstats/internal/db"
	"github.com/tordrt/footstats/internal/diagram"
	"github.com/tordrt/footstats/internal/formatter"
	"github.com/tordrt/footstats/internal/migrate"
	"github.com/tordrt/footstats/internal/query"
	"github.com/tordrt/footstats/internal/schema"
)

// Store names accepted by Inspect.
const (
	StoreSource = "source"
	StoreTarget = "target"
)

// Output formats accepted by Inspect.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// App runs the actions. Results are printed to out, diagnostics go to the
// logger.
type App struct {
	cfg    *config.Config
	logger logrus.FieldLogger
	out    io.Writer

	openSource func(ctx context.Context) (migrate.Source, error)
	openTarget func(ctx context.Context) (migrate.Target, error)
	openStore  func(ctx context.Context) (query.Store, error)
}

// New creates an App connecting to the stores described by cfg.
func New(cfg *config.Config, logger logrus.FieldLogger, out io.Writer) *App {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	a := &App{cfg: cfg, logger: logger, out: out}
	a.openSource = func(ctx context.Context) (migrate.Source, error) {
		client, err := a.sourceClient(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	a.openTarget = func(ctx context.Context) (migrate.Target, error) {
		client, err := a.targetClient(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	a.openStore = func(ctx context.Context) (query.Store, error) {
		client, err := a.targetClient(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return a
}

func (a *App) sourceClient(ctx context.Context) (*db.SQLiteClient, error) {
	client, err := db.NewSQLiteClient(ctx, a.cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	return client, nil
}

func (a *App) targetClient(ctx context.Context) (*db.PostgresClient, error) {
	connConfig, err := a.cfg.TargetConnConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", db.ErrConnection, err)
	}
	client, err := db.NewPostgresClient(ctx, connConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return client, nil
}

// Migrate copies the catalog into the target store and prints a summary.
// The tables committed before a failure are printed as well.
func (a *App) Migrate(ctx context.Context) error {
	tables, err := migrate.Plan(schema.Catalog())
	if err != nil {
		return err
	}

	report, err := migrate.New(tables, a.openSource, a.openTarget, a.logger).Run(ctx)
	if report != nil {
		if perr := PrintReport(a.out, report); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

// Search prints the players whose name contains fragment.
func (a *App) Search(ctx context.Context, fragment string) error {
	players, err := query.New(a.openStore, a.logger).SearchPlayers(ctx, fragment)
	if err != nil {
		return fmt.Errorf("failed to search players: %w", err)
	}
	return PrintPlayers(a.out, players)
}

// Top prints the leaderboard.
func (a *App) Top(ctx context.Context) error {
	teams, err := query.New(a.openStore, a.logger).TopTeams(ctx)
	if err != nil {
		return fmt.Errorf("failed to load top teams: %w", err)
	}
	return PrintTeams(a.out, teams)
}

// InitTarget creates the target tables and the total_points trigger.
func (a *App) InitTarget(ctx context.Context) error {
	client, err := a.targetClient(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(ctx); err != nil {
			a.logger.WithError(err).Warn("failed to close PostgreSQL connection")
		}
	}()

	if err := client.ApplyTargetSchema(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "Target schema ready on %s/%s.\n", a.cfg.TargetHost, a.cfg.TargetDB)
	return err
}

// Inspect writes the tables discovered in store to logPath.
func (a *App) Inspect(ctx context.Context, store, logPath, format string) error {
	if format != FormatText && format != FormatMarkdown {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", format)
	}

	var (
		discovered *schema.Schema
		err        error
	)
	switch store {
	case StoreSource:
		discovered, err = a.inspectSource(ctx)
	case StoreTarget:
		discovered, err = a.inspectTarget(ctx)
	default:
		return fmt.Errorf("invalid store: %s (must be 'source' or 'target')", store)
	}
	if err != nil {
		return fmt.Errorf("failed to extract schema: %w", err)
	}

	if err := writeFile(logPath, func(w io.Writer) error {
		return formatSchema(w, discovered, store, format)
	}); err != nil {
		return err
	}

	a.logger.WithFields(logrus.Fields{
		"store":  store,
		"tables": len(discovered.Tables),
		"file":   logPath,
	}).Info("schema inspected")
	_, err = fmt.Fprintf(a.out, "Wrote %d tables from the %s store to %s.\n", len(discovered.Tables), store, logPath)
	return err
}

func (a *App) inspectSource(ctx context.Context) (*schema.Schema, error) {
	client, err := a.sourceClient(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := client.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close SQLite connection")
		}
	}()
	return db.NewSQLiteExtractor(client).ExtractSchema(ctx, nil)
}

func (a *App) inspectTarget(ctx context.Context) (*schema.Schema, error) {
	client, err := a.targetClient(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := client.Close(ctx); err != nil {
			a.logger.WithError(err).Warn("failed to close PostgreSQL connection")
		}
	}()
	return db.NewExtractor(client, "public").ExtractSchema(ctx, nil)
}

// Diagram writes the ER diagram of the catalog to path.
func (a *App) Diagram(path string) error {
	if err := writeFile(path, func(w io.Writer) error {
		return diagram.Write(w, "FootStats_ER", schema.Catalog())
	}); err != nil {
		return err
	}
	_, err := fmt.Fprintf(a.out, "ER diagram written to %s. Render it with: dot -Tpng %s -o footstats_er.png\n", path, path)
	return err
}

func formatSchema(w io.Writer, s *schema.Schema, store, format string) error {
	if format == FormatMarkdown {
		return formatter.NewMarkdownFormatter(w, "Tables in the "+store+" store").Format(s)
	}
	return formatter.NewTextFormatter(w).Format(s)
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// PrintReport prints one line per committed table followed by the outcome
// of the run.
func PrintReport(w io.Writer, r *migrate.Report) error {
	for _, t := range r.Tables {
		if _, err := fmt.Fprintf(w, "  %-8s read %d, inserted %d, skipped %d\n", t.Table, t.Read, t.Inserted, t.Skipped()); err != nil {
			return err
		}
	}

	if !r.Complete() {
		_, err := fmt.Fprintf(w, "Migration stopped after %d of %d tables.\n", len(r.Tables), len(r.Planned))
		return err
	}

	if _, err := fmt.Fprintf(w, "Migration complete: %d tables loaded in %s.\n", len(r.Tables), r.Duration.Round(time.Millisecond)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "Team total_points are maintained by the target store trigger.")
	return err
}

// PrintPlayers prints one line per player.
func PrintPlayers(w io.Writer, players []db.PlayerRecord) error {
	if len(players) == 0 {
		_, err := fmt.Fprintln(w, "No players found.")
		return err
	}
	for _, p := range players {
		birthday := "unknown"
		if p.Birthday != nil {
			birthday = p.Birthday.Format(time.DateOnly)
		}
		height := "unknown"
		if p.Height != nil {
			height = fmt.Sprintf("%.2f cm", *p.Height)
		}
		if _, err := fmt.Fprintf(w, "  %s, born %s, height %s\n", p.Name, birthday, height); err != nil {
			return err
		}
	}
	return nil
}

// PrintTeams prints the leaderboard, best first.
func PrintTeams(w io.Writer, teams []db.TeamStanding) error {
	if len(teams) == 0 {
		_, err := fmt.Fprintln(w, "No teams found.")
		return err
	}
	for i, t := range teams {
		if _, err := fmt.Fprintf(w, "  %d. %s: %d points\n", i+1, t.Name, t.TotalPoints); err != nil {
			return err
		}
	}
	return nil
}
