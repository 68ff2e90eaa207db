// Package checker runs search corpora against two backends, a database
// store and the in-memory evaluator, and reports every case where they
// disagree with each other or with the expected ids.
package checker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/parser"
)

// Searcher runs a search; both store.Store and filter.Env are Searchers.
type Searcher interface {
	Search(ctx context.Context, model string, d domain.Domain, order string) ([]int64, error)
}

// Checker compares a database with the in-memory evaluator.
type Checker struct {
	Store  Searcher
	Memory Searcher

	// Parser parses case domains. Cases sharing a domain text parse it
	// once.
	Parser *parser.Cache

	// Workers bounds concurrent cases; GOMAXPROCS when not positive.
	Workers int

	Logger *slog.Logger
}

// Result is the outcome of one case.
type Result struct {
	Case     Case
	Store    []int64
	Memory   []int64
	StoreErr error
	MemErr   error

	// Failure describes why the case failed; empty when it passed.
	Failure  string
	Duration time.Duration

	index int
}

// Passed reports whether the case passed.
func (r Result) Passed() bool { return r.Failure == "" }

// Report holds the results of a corpus run, in corpus order.
type Report struct {
	Corpus   string
	Results  []Result
	Duration time.Duration
}

// Failed returns the failed results.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed() {
			out = append(out, res)
		}
	}
	return out
}

// Passed reports whether every case passed.
func (r *Report) Passed() bool { return len(r.Failed()) == 0 }

// Run checks every case of c. Case failures are reported in the Report;
// the error is only for a cancelled context.
func (ch *Checker) Run(ctx context.Context, c *Corpus) (*Report, error) {
	logger := ch.Logger
	if logger == nil {
		logger = slog.Default()
	}
	parse := parser.Parse
	if ch.Parser != nil {
		parse = ch.Parser.Parse
	}
	workers := ch.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	p := pool.NewWithResults[Result]().WithContext(ctx).WithMaxGoroutines(workers)
	for i, tc := range c.Cases {
		p.Go(func(ctx context.Context) (Result, error) {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			res := ch.runCase(ctx, parse, tc)
			res.index = i
			return res, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(results, func(a, b Result) int { return a.index - b.index })

	report := &Report{Corpus: c.Name, Results: results, Duration: time.Since(start)}
	logger.Info("corpus checked",
		"corpus", c.Name,
		"cases", len(results),
		"failed", len(report.Failed()),
		"duration", report.Duration)
	return report, nil
}

func (ch *Checker) runCase(ctx context.Context, parse func(string) (domain.Domain, error), tc Case) Result {
	start := time.Now()
	res := Result{Case: tc}

	d, err := parse(tc.Domain)
	if err != nil {
		res.Failure = err.Error()
		res.Duration = time.Since(start)
		return res
	}
	res.Store, res.StoreErr = ch.Store.Search(ctx, tc.Model, d, tc.Order)
	res.Memory, res.MemErr = ch.Memory.Search(ctx, tc.Model, d, tc.Order)
	res.Failure = judge(tc, res)
	res.Duration = time.Since(start)
	return res
}

// judge returns the failure message of a case, empty when it passed.
func judge(tc Case, res Result) string {
	if tc.Error {
		switch {
		case res.StoreErr == nil && res.MemErr == nil:
			return "expected an error, both backends succeeded"
		case res.StoreErr == nil:
			return fmt.Sprintf("expected an error, store returned %v", res.Store)
		case res.MemErr == nil:
			return fmt.Sprintf("expected an error, memory returned %v", res.Memory)
		}
		return ""
	}
	switch {
	case res.StoreErr != nil:
		return fmt.Sprintf("store: %v", res.StoreErr)
	case res.MemErr != nil:
		return fmt.Sprintf("memory: %v", res.MemErr)
	case !slices.Equal(res.Store, res.Memory):
		return fmt.Sprintf("backends disagree: store %v, memory %v", res.Store, res.Memory)
	case tc.Expect != nil && !slices.Equal(res.Store, tc.Expect):
		return fmt.Sprintf("expected %v, got %v", tc.Expect, res.Store)
	}
	return ""
}
