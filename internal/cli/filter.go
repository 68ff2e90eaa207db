package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/domex/internal/filter"
)

// IDsResult is the output of the filter and search commands.
type IDsResult struct {
	Model   string  `json:"model"`
	Backend string  `json:"backend"`
	IDs     []int64 `json:"ids"`
}

func (r IDsResult) text(w io.Writer) {
	for _, id := range r.IDs {
		fmt.Fprintln(w, id)
	}
}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	var model, order string

	cmd := &cobra.Command{
		Use:   "filter [domain|-]",
		Short: "Evaluate a domain on the dataset in memory",
		Long: `Optimize a domain and evaluate it on the records of the dataset, without
a database. Matching ids are printed one per line.

Examples:
  domex filter -m models.cue -d data.yaml --model res.partner "[('name', 'ilike', 'acme')]"
  domex filter -m models.cue -d data.yaml --model res.country --lang fr_FR --order name "[]"`,
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

			env := &filter.Env{Evaluator: ws.evaluator()}
			ids, err := env.Search(cmd.Context(), model, d, order)
			if err != nil {
				return reject(p, err)
			}
			result := IDsResult{Model: model, Backend: "memory", IDs: nonNil(ids)}
			return p.result(result, result.text)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model to filter")
	cmd.Flags().StringVar(&order, "order", "", `order clause, e.g. "name desc, id"`)
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

// nonNil makes an empty result encode as [] in JSON.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
