package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/filter"
	"github.com/roach88/domex/internal/optimize"
	"github.com/roach88/domex/internal/parser"
	"github.com/roach88/domex/internal/querysql"
	"github.com/roach88/domex/internal/records"
	"github.com/roach88/domex/internal/schema"
)

// workspace is what the commands work on: the models, and the dataset
// when one was given.
type workspace struct {
	opts     *RootOptions
	registry *schema.Registry
	dataset  *records.Dataset
}

// loadWorkspace loads --models, and --data when needData is set or the
// flag was given.
func loadWorkspace(opts *RootOptions, needData bool) (*workspace, error) {
	if opts.Models == "" {
		return nil, NewExitError(ExitCommandError, "--models is required")
	}
	reg, err := schema.LoadFile(opts.Models)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load models", err)
	}
	ws := &workspace{opts: opts, registry: reg}

	if opts.Data == "" {
		if needData {
			return nil, NewExitError(ExitCommandError, "--data is required")
		}
		return ws, nil
	}
	if ws.dataset, err = records.LoadFile(reg, opts.Data); err != nil {
		return nil, WrapExitError(ExitCommandError, "load dataset", err)
	}
	opts.Logger().Debug("workspace loaded", "models", opts.Models, "data", opts.Data)
	return ws, nil
}

func (ws *workspace) model(name string) (*schema.Model, error) {
	m, ok := ws.registry.Model(name)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown model %q", name))
	}
	return m, nil
}

// evaluator returns the in-memory evaluator over the dataset, configured
// from the global flags.
func (ws *workspace) evaluator() *filter.Evaluator {
	e := filter.New(ws.dataset, ws.opts.Logger())
	e.Unaccent = !ws.opts.NoUnaccent
	e.Lang = ws.opts.Lang
	e.Optimizer.Strict = ws.opts.Strict
	return e
}

// optimizer searches the dataset when there is one. Without a dataset,
// conditions that need to search (hierarchies, name searches) fail with
// NO_ENV.
func (ws *workspace) optimizer() *optimize.Optimizer {
	if ws.dataset != nil {
		return ws.evaluator().Optimizer
	}
	o := optimize.New(nil, ws.opts.Logger())
	o.Strict = ws.opts.Strict
	return o
}

func (ws *workspace) builder(dialect querysql.Dialect) *querysql.Builder {
	b := querysql.NewBuilder(ws.registry, dialect)
	b.Unaccent = !ws.opts.NoUnaccent
	b.Lang = ws.opts.Lang
	b.Logger = ws.opts.Logger()
	return b
}

// readDomain returns the domain text of the first argument, read from
// stdin when it is "-".
func readDomain(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) == 0:
		return "[]", nil
	case args[0] != "-":
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", WrapExitError(ExitCommandError, "read domain", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseDomain parses the domain argument. Rejected text is ExitFailure.
func parseDomain(cmd *cobra.Command, args []string, p printer) (domain.Domain, error) {
	text, err := readDomain(cmd, args)
	if err != nil {
		return nil, err
	}
	d, err := parser.Parse(text)
	if err != nil {
		return nil, reject(p, err)
	}
	return d, nil
}

// reject reports an invalid domain or a failed search and returns the
// ExitFailure error for it.
func reject(p printer, err error) error {
	p.failure(errorCode(err), err)
	return WrapExitError(ExitFailure, "invalid domain", err)
}

// errorCode names the category of a domain error.
func errorCode(err error) string {
	switch {
	case parser.IsParseError(err):
		return "PARSE_ERROR"
	case domain.IsSyntaxError(err):
		return "SYNTAX_ERROR"
	case optimize.IsOptimizeError(err):
		return string(optimize.ErrorCode(err))
	case querysql.IsInvariantError(err):
		return "INVARIANT"
	}
	return "ERROR"
}

func dialectByName(name string) (querysql.Dialect, error) {
	switch name {
	case "sqlite":
		return querysql.SQLite{}, nil
	case "postgres":
		return querysql.Postgres{}, nil
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid dialect %q: must be sqlite or postgres", name))
}
