package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/domex/internal/querysql"
)

// SQLResult is the output of the sql command.
type SQLResult struct {
	Model   string `json:"model"`
	Dialect string `json:"dialect"`
	SQL     string `json:"sql"`
	Params  []any  `json:"params"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		model   string
		dialect string
		order   string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "sql [domain|-]",
		Short: "Compile a domain to a SELECT statement",
		Long: `Optimize a domain and compile it to the parameterized SELECT of the
matching ids. Values are never interpolated: they are listed as params.

Examples:
  domex sql -m models.cue --model res.partner "[('name', 'ilike', 'acme')]"
  domex sql -m models.cue --model res.partner --dialect postgres --order "name desc" "[]"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			dia, err := dialectByName(dialect)
			if err != nil {
				return err
			}
			ws, err := loadWorkspace(rootOpts, false)
			if err != nil {
				return err
			}
			m, err := ws.model(model)
			if err != nil {
				return err
			}
			d, err := parseDomain(cmd, args, p)
			if err != nil {
				return err
			}

			optimized, err := ws.optimizer().Optimize(cmd.Context(), d, m)
			if err != nil {
				return reject(p, err)
			}
			b := ws.builder(dia)
			q, err := b.SearchQuery(optimized, m)
			if err != nil {
				return reject(p, err)
			}
			if q.OrderBy, err = b.OrderBy(m, q.Alias, order); err != nil {
				return reject(p, err)
			}

			q.Limit = limit

			text, params := querysql.Render(dia, q.Select())
			result := SQLResult{Model: model, Dialect: dia.Name(), SQL: text, Params: params}
			return p.result(result, func(w io.Writer) {
				fmt.Fprintln(w, result.SQL)
				if len(result.Params) > 0 {
					fmt.Fprintf(w, "params: %v\n", result.Params)
				}
			})
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model the domain applies to")
	cmd.Flags().StringVar(&dialect, "dialect", "sqlite", "SQL dialect (sqlite|postgres)")
	cmd.Flags().StringVar(&order, "order", "", `order clause, e.g. "name desc, id"`)
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of ids (0 for no limit)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}
