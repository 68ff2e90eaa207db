// Package cli implements the domex command line: parse, optimize, compile
// and run domains against a model file and a dataset.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Models is the CUE model file; Data the YAML dataset.
	Models string
	Data   string

	Lang       string
	NoUnaccent bool
	Strict     bool

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the domex CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "domex",
		Short: "domex - domain expression compiler",
		Long: `Parse, optimize and run record filter domains.

A domain is a flat prefix list of (field, operator, value) conditions:

  ['|', ('name', 'ilike', 'acme'), ('country_id.code', '=', 'BE')]

Domains are checked against models described in a CUE file (--models),
compiled to SQL, and evaluated on a YAML dataset (--data) either in
memory or in a database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.Models, "models", "m", "", "CUE model file")
	flags.StringVarP(&opts.Data, "data", "d", "", "YAML dataset file")
	flags.StringVar(&opts.Lang, "lang", "en_US", "language of translated values")
	flags.BoolVar(&opts.NoUnaccent, "no-unaccent", false, "make ilike accent sensitive")
	flags.BoolVar(&opts.Strict, "strict", false, "reject conditions on non-searchable fields")

	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewOptimizeCommand(opts))
	cmd.AddCommand(NewSQLCommand(opts))
	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}

// Logger returns the logger installed by the root command, or the
// default logger when the command runs on its own.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}
