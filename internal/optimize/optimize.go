package optimize

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/schema"
)

// Level is how far a domain is optimized.
type Level int

const (
	// LevelNone is a domain as built.
	LevelNone Level = iota

	// LevelBasic rewrites using field metadata only. The result can be
	// reused across transactions.
	LevelBasic

	// LevelFull also resolves computed and inherited fields and hierarchy
	// operators, which may search the data.
	LevelFull
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelBasic:
		return "basic"
	case LevelFull:
		return "full"
	}
	return "unknown"
}

// MaxSteps bounds the number of rewrite steps of one node.
const MaxSteps = 1000

// Env is the search primitive used by rules that depend on the data:
// hierarchy expansion and name resolution.
type Env interface {
	// Search returns the ids of the model's records matching d, sorted by
	// order ("id" when empty).
	Search(ctx context.Context, model string, d domain.Domain, order string) ([]int64, error)

	// Read returns the value of one stored field for the given ids. Unset
	// values are false.
	Read(ctx context.Context, model string, ids []int64, field string) (map[int64]any, error)
}

// Optimizer optimizes domains against models.
//
// The zero value is usable: it has no Env, so hierarchy operators fail
// with NO_ENV, and it logs to slog.Default().
type Optimizer struct {
	// Env resolves data-dependent rules.
	Env Env

	// Logger receives warnings about deprecated spellings and permissive
	// fallbacks.
	Logger *slog.Logger

	// Strict turns permissive fallbacks (computed fields without a search
	// delegate, invalid conditions on attachment binaries) into errors.
	Strict bool
}

// New creates an optimizer with the given environment and logger.
func New(env Env, logger *slog.Logger) *Optimizer {
	return &Optimizer{Env: env, Logger: logger}
}

// Optimize optimizes d against m at full level. A nil model applies only
// the rewrites that do not depend on fields.
func (o *Optimizer) Optimize(ctx context.Context, d domain.Domain, m *schema.Model) (domain.Domain, error) {
	return o.OptimizeAt(ctx, d, m, LevelFull)
}

// OptimizeNot optimizes the negation of d.
func (o *Optimizer) OptimizeNot(ctx context.Context, d domain.Domain, m *schema.Model) (domain.Domain, error) {
	return o.OptimizeAt(ctx, domain.Not(d), m, LevelFull)
}

// OptimizeAt optimizes d up to the given level.
func (o *Optimizer) OptimizeAt(ctx context.Context, d domain.Domain, m *schema.Model, level Level) (domain.Domain, error) {
	r := &run{
		Optimizer: o,
		ctx:       ctx,
		logger:    o.Logger,
		levels:    make(map[memoKey]Level),
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r.optimize(d, m, level)
}

// Optimize optimizes d with a default optimizer, without an Env.
func Optimize(ctx context.Context, d domain.Domain, m *schema.Model) (domain.Domain, error) {
	return (&Optimizer{}).Optimize(ctx, d, m)
}

// OptimizeNot optimizes the negation of d with a default optimizer.
func OptimizeNot(ctx context.Context, d domain.Domain, m *schema.Model) (domain.Domain, error) {
	return (&Optimizer{}).OptimizeNot(ctx, d, m)
}

type memoKey struct {
	node  domain.Domain
	model *schema.Model
}

// run is the state of one Optimize call. levels records, per node and
// model, the level the node is known to be stable at.
type run struct {
	*Optimizer
	ctx    context.Context
	logger *slog.Logger
	levels map[memoKey]Level
}

func (r *run) levelOf(d domain.Domain, m *schema.Model) Level {
	if _, ok := d.(domain.Const); ok {
		return LevelFull
	}
	return r.levels[memoKey{d, m}]
}

// optimize steps d one level at a time until it is stable at target.
// A step that yields a new node restarts that node from LevelNone.
func (r *run) optimize(d domain.Domain, m *schema.Model, target Level) (domain.Domain, error) {
	for count := 1; ; count++ {
		current := r.levelOf(d, m)
		if current >= target {
			return d, nil
		}
		if count > MaxSteps {
			return nil, &OptimizeError{
				Code:      ErrCodeNoFixedPoint,
				Message:   "too many optimization steps",
				Condition: domain.Format(d),
			}
		}
		next := current + 1
		nd, err := r.step(d, m, next)
		if err != nil {
			return nil, err
		}
		if nd == d || domain.Equal(nd, d) {
			r.levels[memoKey{d, m}] = next
			continue
		}
		d = nd
	}
}

func (r *run) step(d domain.Domain, m *schema.Model, level Level) (domain.Domain, error) {
	switch x := d.(type) {
	case domain.Const:
		return x, nil
	case *domain.Negation:
		child, err := r.optimize(x.Child(), m, level)
		if err != nil {
			return nil, err
		}
		return r.negate(child, m)
	case *domain.Nary:
		return r.nary(x, m, level)
	case *domain.Leaf:
		return r.leaf(x, m, level)
	}
	return d, nil
}

// negate pushes a negation into an optimized domain.
func (r *run) negate(d domain.Domain, m *schema.Model) (domain.Domain, error) {
	switch x := d.(type) {
	case domain.Const:
		return x.Invert(), nil
	case *domain.Negation:
		return x.Child(), nil
	case *domain.Nary:
		children := x.Children()
		for i, c := range children {
			nc, err := r.negate(c, m)
			if err != nil {
				return nil, err
			}
			children[i] = nc
		}
		return domain.Combine(x.Op().Inverse(), children), nil
	case *domain.Leaf:
		return r.negateLeaf(x, m), nil
	}
	return domain.Not(d), nil
}

// negateLeaf uses the inverse operator. The inverse of an inequality does
// not match unset values, so for fields without a falsy value they are
// added back explicitly.
func (r *run) negateLeaf(l *domain.Leaf, m *schema.Model) domain.Domain {
	simple := !strings.Contains(l.Field(), ".")
	if inv, ok := domain.InverseInequality(l.Operator()); ok {
		if m == nil || !simple {
			return domain.Not(l)
		}
		f, ok := m.Field(l.Field())
		if !ok {
			return domain.Not(l)
		}
		inverse := domain.Raw(l.Field(), inv, l.Value())
		if _, hasFalsy := f.FalsyValue(); hasFalsy {
			return inverse
		}
		return domain.Or(domain.Raw(l.Field(), domain.OpIn, domain.MustSet(false)), inverse)
	}
	if inv, ok := domain.Inverse(l.Operator()); ok && simple {
		return domain.Raw(l.Field(), inv, l.Value())
	}
	return domain.Not(l)
}
