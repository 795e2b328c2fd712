// Package param implements the generic/parameter model (C4): parameter
// declarations, constant expressions, constraint predicates, and argument
// binding (positional, named, or positional-then-named).
package param

import (
	"math/big"

	"github.com/matthijsr/til-vhdl/report"
)

// Kind is the enumerated set of parameter kinds (§3.1).
type Kind int

const (
	Natural Kind = iota
	Positive
	Integer
	Dimensionality
)

func (k Kind) String() string {
	switch k {
	case Natural:
		return "natural"
	case Positive:
		return "positive"
	case Integer:
		return "integer"
	case Dimensionality:
		return "dimensionality"
	default:
		return "?"
	}
}

// InRange reports whether v satisfies the kind's intrinsic range (§3.1):
// Natural/Dimensionality >= 0, Positive >= 1, Integer unbounded.
func (k Kind) InRange(v *big.Int) bool {
	switch k {
	case Natural, Dimensionality:
		return v.Sign() >= 0
	case Positive:
		return v.Sign() > 0
	default:
		return true
	}
}

// Parameter is a generic parameter declaration.
type Parameter struct {
	Name       string
	Kind       Kind
	Default    Expr
	Constraint Predicate // nil if unconstrained
}

// -----------------------------------------------------------------------------
// ConstantExpr: a pure, total integer AST evaluated under a scope of bound
// argument values.

// Expr is the integer constant-expression AST (§3.1).
type Expr interface {
	eval(scope Scope, span *report.TextSpan) (*big.Int, error)
}

// Scope resolves a parameter name to its currently-bound value. Evaluators
// (C9) construct one scope per declaration application.
type Scope map[string]*big.Int

// Eval evaluates e under scope.
func Eval(e Expr, scope Scope, span *report.TextSpan) (*big.Int, error) {
	return e.eval(scope, span)
}

// Lit is an integer literal.
type Lit struct {
	Value *big.Int
}

func (l Lit) eval(Scope, *report.TextSpan) (*big.Int, error) {
	return new(big.Int).Set(l.Value), nil
}

// Ref is a reference to a bound parameter by name.
type Ref struct {
	Name string
	Span *report.TextSpan
}

func (r Ref) eval(scope Scope, span *report.TextSpan) (*big.Int, error) {
	if v, ok := scope[r.Name]; ok {
		return new(big.Int).Set(v), nil
	}

	s := r.Span
	if s == nil {
		s = span
	}

	return nil, report.NewError(report.NameUnresolved, s, "unresolved parameter reference %q", r.Name)
}

// Op is an arithmetic operator.
type Op int

const (
	Add Op = iota
	Sub
	Mul
	Div
	Mod
)

func (o Op) String() string {
	switch o {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	default:
		return "?"
	}
}

// BinOp is a binary arithmetic expression. Division truncates toward zero
// and modulo takes the sign of the dividend, matching Go's own integer
// division/modulo semantics on big.Int via big.Int.Quo/Rem (§3.1).
type BinOp struct {
	Left, Right Expr
	Op          Op
	Span        *report.TextSpan
}

func (b BinOp) eval(scope Scope, span *report.TextSpan) (*big.Int, error) {
	l, err := b.Left.eval(scope, span)
	if err != nil {
		return nil, err
	}

	r, err := b.Right.eval(scope, span)
	if err != nil {
		return nil, err
	}

	s := b.Span
	if s == nil {
		s = span
	}

	switch b.Op {
	case Add:
		return new(big.Int).Add(l, r), nil
	case Sub:
		return new(big.Int).Sub(l, r), nil
	case Mul:
		return new(big.Int).Mul(l, r), nil
	case Div:
		if r.Sign() == 0 {
			return nil, report.NewError(report.DivisionByZero, s, "division by zero")
		}
		return new(big.Int).Quo(l, r), nil
	case Mod:
		if r.Sign() == 0 {
			return nil, report.NewError(report.DivisionByZero, s, "modulo by zero")
		}
		return new(big.Int).Rem(l, r), nil
	default:
		return nil, report.NewError(report.ArgumentKind, s, "unknown operator %v", b.Op)
	}
}

// Paren is a parenthesized sub-expression; it exists only to round-trip
// source text faithfully and evaluates transparently.
type Paren struct {
	Inner Expr
}

func (p Paren) eval(scope Scope, span *report.TextSpan) (*big.Int, error) {
	return p.Inner.eval(scope, span)
}

// -----------------------------------------------------------------------------
// Predicate: a boolean AST over a single implicit subject value (§3.1).

// Predicate is a constraint predicate evaluated against a bound argument.
type Predicate interface {
	check(v *big.Int) bool
}

// RelOp is the comparison operator of a Rel atom.
type RelOp int

const (
	Eq RelOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Rel compares the implicit subject against Value with Op.
type Rel struct {
	Op    RelOp
	Value *big.Int
}

func (r Rel) check(v *big.Int) bool {
	c := v.Cmp(r.Value)
	switch r.Op {
	case Eq:
		return c == 0
	case Ne:
		return c != 0
	case Lt:
		return c < 0
	case Le:
		return c <= 0
	case Gt:
		return c > 0
	case Ge:
		return c >= 0
	default:
		return false
	}
}

// OneOf checks subject membership in a fixed set of values.
type OneOf struct {
	Values []*big.Int
}

func (o OneOf) check(v *big.Int) bool {
	for _, c := range o.Values {
		if v.Cmp(c) == 0 {
			return true
		}
	}
	return false
}

// And/Or/Not combine predicates with short-circuit evaluation (§4.4).
type And struct{ Left, Right Predicate }

func (a And) check(v *big.Int) bool { return a.Left.check(v) && a.Right.check(v) }

type Or struct{ Left, Right Predicate }

func (o Or) check(v *big.Int) bool { return o.Left.check(v) || o.Right.check(v) }

type Not struct{ Inner Predicate }

func (n Not) check(v *big.Int) bool { return !n.Inner.check(v) }

// CheckPredicate evaluates p against v. A nil Predicate is unconstrained and
// always satisfied.
func CheckPredicate(p Predicate, v *big.Int) bool {
	if p == nil {
		return true
	}
	return p.check(v)
}

// -----------------------------------------------------------------------------

// Arg is a single supplied argument, which may be positional (Name empty)
// or named.
type Arg struct {
	Name  string
	Value Expr
	Span  *report.TextSpan
}

// Bind resolves a parameter list against a supplied argument list into a
// fully-concrete Scope, per §4.4: positional arguments first, then named
// (duplicate/unknown/excess names are errors), missing arguments take their
// declared default, and every resolved value is range- and
// constraint-checked. callerScope supplies bindings for parameter
// references inside default-value or argument expressions; each parameter,
// once bound, is also visible to the expressions of the parameters after it
// (e.g. one parameter's default referring to an earlier one).
func Bind(params []Parameter, args []Arg, callerScope Scope, span *report.TextSpan) (Scope, error) {
	byName := make(map[string]int, len(params))
	for i, p := range params {
		byName[p.Name] = i
	}

	assigned := make([]*Expr, len(params))
	seenNamed := false

	for i, a := range args {
		if a.Name == "" {
			if seenNamed {
				return nil, report.NewError(report.ArgumentArity, a.Span, "positional argument follows a named argument")
			}
			if i >= len(params) {
				return nil, report.NewError(report.ArgumentArity, a.Span, "too many positional arguments: expected at most %d", len(params))
			}
			v := a.Value
			assigned[i] = &v
		} else {
			seenNamed = true
			idx, ok := byName[a.Name]
			if !ok {
				return nil, report.NewError(report.ArgumentArity, a.Span, "unknown parameter %q", a.Name)
			}
			if assigned[idx] != nil {
				return nil, report.NewError(report.ArgumentArity, a.Span, "duplicate argument for parameter %q", a.Name)
			}
			v := a.Value
			assigned[idx] = &v
		}
	}

	scope := make(Scope, len(params)+len(callerScope))
	for k, v := range callerScope {
		scope[k] = v
	}

	for i, p := range params {
		var expr Expr
		if assigned[i] != nil {
			expr = *assigned[i]
		} else {
			expr = p.Default
		}

		val, err := Eval(expr, scope, span)
		if err != nil {
			return nil, err
		}

		if !p.Kind.InRange(val) {
			return nil, report.NewError(report.ArgumentKind, span, "argument %q=%s is not a valid %s value", p.Name, val.String(), p.Kind)
		}

		if !CheckPredicate(p.Constraint, val) {
			return nil, report.NewError(report.ConstraintViolation, span, "argument %q=%s violates its constraint", p.Name, val.String())
		}

		scope[p.Name] = val
	}

	return scope, nil
}
