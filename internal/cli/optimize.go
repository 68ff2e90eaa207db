package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/domex/internal/domain"
)

// OptimizeResult is the output of the optimize command.
type OptimizeResult struct {
	Model     string `json:"model"`
	Domain    string `json:"domain"`
	Optimized string `json:"optimized"`
	Negated   bool   `json:"negated,omitempty"`
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	var model string
	var negate bool

	cmd := &cobra.Command{
		Use:   "optimize [domain|-]",
		Short: "Optimize a domain against a model",
		Long: `Optimize a domain against a model and print the result.

Dotted paths become any conditions, values are coerced to the field types,
sugar operators are rewritten and n-ary nodes are merged. With --data,
hierarchy operators and name searches are resolved on the dataset.

Examples:
  domex optimize -m models.cue --model res.partner "[('country_id.code', '=', 'BE')]"
  domex optimize -m models.cue -d data.yaml --model res.partner "[('id', 'child_of', 1)]"
  domex optimize -m models.cue --model res.partner --not "[('active', '=', True)]"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
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

			o := ws.optimizer()
			run := o.Optimize
			if negate {
				run = o.OptimizeNot
			}
			optimized, err := run(cmd.Context(), d, m)
			if err != nil {
				return reject(p, err)
			}

			result := OptimizeResult{
				Model:     model,
				Domain:    domain.Format(d),
				Optimized: domain.Format(optimized),
				Negated:   negate,
			}
			return p.result(result, func(w io.Writer) {
				if rootOpts.Verbose {
					fmt.Fprintf(w, "input:     %s\n", result.Domain)
					fmt.Fprintf(w, "optimized: %s\n", result.Optimized)
					return
				}
				fmt.Fprintln(w, result.Optimized)
			})
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model the domain applies to")
	cmd.Flags().BoolVar(&negate, "not", false, "optimize the negation of the domain")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}
