package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/domex/internal/domain"
)

// ParseResult is the output of the parse command.
type ParseResult struct {
	Domain     string   `json:"domain"`
	Conditions []string `json:"conditions"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse [domain|-]",
		Short: "Parse a domain and print its normalized form",
		Long: `Parse a domain and print it back in normalized flat-list form.

No model is needed: only the syntax is checked. Operators are lower-cased,
'=' on a list becomes 'in', and redundant constants are folded.

Examples:
  domex parse "[('name', '=', 'Acme'), ('id', '=', [1, 2])]"
  echo "['|', ('a', '=', 1), ('b', '=', 2)]" | domex parse -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			d, err := parseDomain(cmd, args, p)
			if err != nil {
				return err
			}
			result := ParseResult{Domain: domain.Format(d), Conditions: []string{}}
			for leaf := range domain.Conditions(d) {
				result.Conditions = append(result.Conditions, leaf.String())
			}
			return p.result(result, func(w io.Writer) {
				fmt.Fprintln(w, result.Domain)
				if rootOpts.Verbose {
					for _, c := range result.Conditions {
						fmt.Fprintf(w, "  %s\n", c)
					}
				}
			})
		},
	}
}
