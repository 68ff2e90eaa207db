package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/domex/internal/store"
)

// DBOptions selects the database of the search and check commands.
type DBOptions struct {
	// DB is a sqlite file; an in-memory database when empty.
	DB string

	// Postgres is a connection string; it takes precedence over DB.
	Postgres string
}

func (o *DBOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.DB, "db", "", "sqlite database file (in-memory when empty)")
	cmd.Flags().StringVar(&o.Postgres, "postgres", "", "Postgres connection string")
}

// openStore opens the database, creates the tables of the models and
// loads the dataset. Loading skips rows that already exist.
func openStore(ctx context.Context, ws *workspace, dbOpts *DBOptions) (*store.Store, string, error) {
	opts := []store.Option{
		store.WithLogger(ws.opts.Logger()),
		store.WithUnaccent(!ws.opts.NoUnaccent),
		store.WithLang(ws.opts.Lang),
		store.WithStrict(ws.opts.Strict),
	}

	var (
		s       *store.Store
		backend string
		err     error
	)
	if dbOpts.Postgres != "" {
		s, err = store.OpenPostgres(ctx, dbOpts.Postgres, opts...)
		backend = "postgres"
	} else {
		path := dbOpts.DB
		if path == "" {
			path = ":memory:"
		}
		s, err = store.Open(path, opts...)
		backend = "sqlite"
	}
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "open database", err)
	}

	if err := s.Migrate(ctx, ws.registry); err != nil {
		s.Close()
		return nil, "", WrapExitError(ExitCommandError, "create tables", err)
	}
	if err := s.Load(ctx, ws.dataset); err != nil {
		s.Close()
		return nil, "", WrapExitError(ExitCommandError, "load dataset", err)
	}
	return s, backend, nil
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	var model, order string
	dbOpts := &DBOptions{}

	cmd := &cobra.Command{
		Use:   "search [domain|-]",
		Short: "Run a domain in a database",
		Long: `Load the dataset into a database and search it with the compiled SQL.

The database is sqlite, in memory unless --db names a file, or Postgres
with --postgres. Matching ids are printed one per line.

Examples:
  domex search -m models.cue -d data.yaml --model res.partner "[('name', 'ilike', 'acme')]"
  domex search -m models.cue -d data.yaml --db partners.db --model res.partner --order "color desc" "[]"
  domex search -m models.cue -d data.yaml --postgres "postgres://localhost/domex" --model res.partner "[]"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			ws, err := loadWorkspace(rootOpts, true)
			if err != nil {
				return err
			}
			if _, err := ws.model(model); err != nil {
				return err
			}
			d, err := parseDomain(cmd, args, p)
			if err != nil {
				return err
			}

			s, backend, err := openStore(cmd.Context(), ws, dbOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			ids, err := s.Search(cmd.Context(), model, d, order)
			if err != nil {
				return reject(p, err)
			}
			result := IDsResult{Model: model, Backend: backend, IDs: nonNil(ids)}
			return p.result(result, result.text)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model to search")
	cmd.Flags().StringVar(&order, "order", "", `order clause, e.g. "name desc, id"`)
	dbOpts.register(cmd)
	_ = cmd.MarkFlagRequired("model")

	return cmd
}
