package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/domex/internal/checker"
	"github.com/roach88/domex/internal/filter"
	"github.com/roach88/domex/internal/parser"
)

// CaseResult is one case in the output of the check command.
type CaseResult struct {
	Corpus  string  `json:"corpus"`
	Name    string  `json:"name"`
	Pass    bool    `json:"pass"`
	Store   []int64 `json:"store,omitempty"`
	Memory  []int64 `json:"memory,omitempty"`
	Failure string  `json:"failure,omitempty"`
}

// CheckResult is the output of the check command.
type CheckResult struct {
	Cases  []CaseResult `json:"cases"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Total  int          `json:"total"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var workers int
	dbOpts := &DBOptions{}

	cmd := &cobra.Command{
		Use:   "check <corpus.yaml>...",
		Short: "Check that the database and the in-memory evaluator agree",
		Long: `Run the search cases of one or more corpus files in the database and in
memory, and compare the ids with each other and with the expected ones.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed
  2 - Command error (invalid paths, etc.)

Examples:
  domex check -m models.cue -d data.yaml partners.yaml
  domex check -m models.cue -d data.yaml --workers 1 --format json corpus/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}

			corpora := make([]*checker.Corpus, 0, len(args))
			for _, path := range args {
				c, err := checker.LoadCorpus(path)
				if err != nil {
					return WrapExitError(ExitCommandError, path, err)
				}
				corpora = append(corpora, c)
			}

			ws, err := loadWorkspace(rootOpts, true)
			if err != nil {
				return err
			}
			s, _, err := openStore(ctx, ws, dbOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			cache := parser.NewCache(0)
			defer cache.Close()
			ch := &checker.Checker{
				Store:   s,
				Memory:  &filter.Env{Evaluator: ws.evaluator()},
				Parser:  cache,
				Workers: workers,
				Logger:  rootOpts.Logger(),
			}

			result := CheckResult{Cases: []CaseResult{}}
			for _, c := range corpora {
				report, err := ch.Run(ctx, c)
				if err != nil {
					return WrapExitError(ExitCommandError, "check "+c.Name, err)
				}
				for _, res := range report.Results {
					result.Cases = append(result.Cases, CaseResult{
						Corpus:  c.Name,
						Name:    res.Case.Name,
						Pass:    res.Passed(),
						Store:   res.Store,
						Memory:  res.Memory,
						Failure: res.Failure,
					})
					if res.Passed() {
						result.Passed++
					} else {
						result.Failed++
					}
				}
			}
			result.Total = len(result.Cases)
			rootOpts.Logger().Debug("parser cache", "hits", cache.Hits(), "misses", cache.Misses())

			if err := p.result(result, func(w io.Writer) { writeCheckText(w, result, rootOpts.Verbose) }); err != nil {
				return err
			}
			if result.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d cases failed", result.Failed, result.Total))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent cases (GOMAXPROCS when 0)")
	dbOpts.register(cmd)

	return cmd
}

func writeCheckText(w io.Writer, result CheckResult, verbose bool) {
	for _, c := range result.Cases {
		switch {
		case !c.Pass:
			fmt.Fprintf(w, "✗ %s/%s\n  %s\n", c.Corpus, c.Name, c.Failure)
		case verbose:
			fmt.Fprintf(w, "✓ %s/%s\n", c.Corpus, c.Name)
		}
	}
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
