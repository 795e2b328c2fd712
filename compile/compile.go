// Package compile ties the front-end parse tree (package ast) to the
// interned IR (packages logical, param, domain, streamlet, impl) by
// implementing the evaluator's application protocol (§4.9): declarations
// are reduced lazily, on first reference, memoized by (namespace, kind,
// name, argument vector), with cycle detection and per-declaration error
// accumulation so one bad declaration does not abort the whole project
// (§7).
package compile

import (
	"fmt"
	"math/big"

	"github.com/matthijsr/til-vhdl/ast"
	"github.com/matthijsr/til-vhdl/domain"
	"github.com/matthijsr/til-vhdl/eval"
	"github.com/matthijsr/til-vhdl/impl"
	"github.com/matthijsr/til-vhdl/ir"
	"github.com/matthijsr/til-vhdl/logical"
	"github.com/matthijsr/til-vhdl/param"
	"github.com/matthijsr/til-vhdl/physical"
	"github.com/matthijsr/til-vhdl/report"
	"github.com/matthijsr/til-vhdl/resolve"
	"github.com/matthijsr/til-vhdl/streamlet"
	"github.com/matthijsr/til-vhdl/validate"
)

// declEntry pairs a registered declaration with the namespace it lives in,
// for lazy on-demand evaluation (§4.9).
type declEntry struct {
	namespace string
	decl      ast.Decl
}

// Compiler is the single compilation context (§5, §9 "global state"): the
// interner, namespace tables, and evaluator memo are owned here and passed
// explicitly to every operation, never through a process-wide global.
type Compiler struct {
	Store *ir.Store
	Sink  *report.Sink

	ev          *eval.Evaluator
	namespaces  map[string]*resolve.Namespace
	decls       map[string]*declEntry // keyed by "namespace|kind|name"
	rawImports  map[string][]ast.ImportDecl
	scopes      map[string]*resolve.Scope
	streamlets  map[string]streamlet.Id // keyed by "namespace|streamlet|name", populated on successful evaluation

	// importSig remembers the first file's import signature seen for each
	// namespace, so a later file reopening the same namespace with a
	// different import set is caught as a conflict rather than silently
	// merged (§6.4 supplement).
	importSig map[string]string
}

// NewCompiler creates an empty Compiler reporting to sink.
func NewCompiler(sink *report.Sink) *Compiler {
	return &Compiler{
		Store:      ir.NewStore(),
		Sink:       sink,
		ev:         eval.New(),
		namespaces: make(map[string]*resolve.Namespace),
		decls:      make(map[string]*declEntry),
		rawImports: make(map[string][]ast.ImportDecl),
		scopes:     make(map[string]*resolve.Scope),
		streamlets: make(map[string]streamlet.Id),
		importSig:  make(map[string]string),
	}
}

func importSignature(imports []ast.ImportDecl) string {
	s := ""
	for i, imp := range imports {
		if i > 0 {
			s += ";"
		}
		s += fmt.Sprintf("%s:%s:%s:%s", imp.Source, imp.Name, imp.As, imp.Prefix)
	}
	return s
}

// Streamlets returns every streamlet successfully evaluated so far, keyed by
// "namespace|streamlet|name", for a downstream consumer (e.g. physical-signal
// computation ahead of VHDL emission) to walk without re-deriving the set of
// declared interfaces itself.
func (c *Compiler) Streamlets() map[string]streamlet.Id {
	out := make(map[string]streamlet.Id, len(c.streamlets))
	for k, v := range c.streamlets {
		out[k] = v
	}
	return out
}

// PhysicalPorts computes the physical signal view (C3) of every port of the
// streamlet interned at id, keyed by port name. A port whose logical type is
// not itself a Stream (e.g. a bare Bits or Group exposed directly) is skipped
// rather than treated as an error, since §4.6 does not require every port to
// wrap its type in an explicit Stream.
func (c *Compiler) PhysicalPorts(id streamlet.Id) (map[string][]physical.PhysicalStream, error) {
	st, ok := streamlet.Lookup(c.Store, id)
	if !ok {
		return nil, report.NewError(report.NameUnresolved, nil, "cannot compute physical view of an unknown streamlet")
	}

	out := make(map[string][]physical.PhysicalStream, len(st.Ports))
	for _, p := range st.Ports {
		t, ok := logical.Lookup(c.Store, p.Stream)
		if !ok {
			return nil, report.NewError(report.NameUnresolved, nil, "port %q has a dangling type reference", p.Name)
		}
		if _, isStream := t.(logical.Stream); !isStream {
			continue
		}

		streams, err := physical.Of(c.Store, p.Stream, nil)
		if err != nil {
			return nil, err
		}
		out[p.Name] = streams
	}

	return out, nil
}

// AddFile registers every declaration in f's namespace, in textual order
// (§5, "declaration-evaluation order within a namespace is the textual
// order of declarations"). A name already declared in the namespace is
// DeclarationRedefinition (§4.8). Imports are recorded but not resolved
// until a reference actually needs them (buildScope).
//
// A namespace path may be reopened across multiple files, but every file
// reopening it must declare the same import set: a second file naming a
// different set of imports for an already-seen namespace is rejected
// outright (its declarations are not registered) rather than silently
// merged, since which imports are visible would otherwise depend on file
// load order.
func (c *Compiler) AddFile(f *ast.File) {
	sig := importSignature(f.Imports)
	if existing, seen := c.importSig[f.Namespace]; seen && existing != sig {
		c.Sink.ReportErr(report.NewError(report.DeclarationRedefinition, f.Span(),
			"namespace %q reopened with a different import set", f.Namespace))
		return
	}
	c.importSig[f.Namespace] = sig

	ns, ok := c.namespaces[f.Namespace]
	if !ok {
		ns = resolve.NewNamespace(f.Namespace)
		c.namespaces[f.Namespace] = ns
		c.rawImports[f.Namespace] = f.Imports
	}

	for _, d := range f.Declarations {
		key := resolve.Key{Kind: declKind(d), Name: d.DeclName()}
		sym := resolve.Symbol{Key: key, Exported: true, Reference: f.Namespace}
		if err := ns.Declare(sym, d.Span()); err != nil {
			c.Sink.ReportErr(err)
			continue
		}
		c.decls[c.declKeyString(f.Namespace, key)] = &declEntry{namespace: f.Namespace, decl: d}
	}
}

// buildScope lazily resolves namespace's import list into a *resolve.Scope
// (§4.8), determining each named import's SymbolKind by probing the source
// namespace's table directly (ast.ImportDecl does not itself carry a kind
// tag, unlike resolve.ImportSpec).
func (c *Compiler) buildScope(namespace string) (*resolve.Scope, error) {
	if sc, ok := c.scopes[namespace]; ok {
		return sc, nil
	}

	var specs []resolve.ImportSpec
	for _, imp := range c.rawImports[namespace] {
		src, ok := c.namespaces[imp.Source]
		if !ok {
			return nil, report.NewError(report.NameUnresolved, imp.Span(), "unresolved import source namespace %q", imp.Source)
		}

		if imp.Name == "" {
			specs = append(specs, resolve.ImportSpec{Source: imp.Source, Prefix: imp.Prefix, Span: imp.Span()})
			continue
		}

		kind, ok := findKind(src, imp.Name)
		if !ok {
			return nil, report.NewError(report.NameUnresolved, imp.Span(), "no exported declaration %q in namespace %q", imp.Name, imp.Source)
		}
		specs = append(specs, resolve.ImportSpec{Source: imp.Source, Name: imp.Name, Kind: kind, As: imp.As, Span: imp.Span()})
	}

	sc, err := resolve.NewScope(c.namespaces[namespace], nil, specs, c.namespaces, c.Sink)
	if err != nil {
		return nil, err
	}
	c.scopes[namespace] = sc
	return sc, nil
}

func findKind(ns *resolve.Namespace, name string) (resolve.SymbolKind, bool) {
	for _, k := range []resolve.SymbolKind{resolve.KindType, resolve.KindStreamlet, resolve.KindImplementation} {
		if _, ok := ns.Local(resolve.Key{Kind: k, Name: name}); ok {
			return k, true
		}
	}
	return 0, false
}

// resolveRef settles an unqualified reference against namespace's own
// declarations first, falling back to its resolved import scope (§4.8,
// three-tier order collapsed to two here since compile has no enclosing
// generic-parameter shadowing to apply at this layer -- that is handled
// separately by param.Scope).
func (c *Compiler) resolveRef(namespace string, kind resolve.SymbolKind, name string) (string, string, error) {
	if _, err := c.lookupDecl(namespace, kind, name); err == nil {
		return namespace, name, nil
	}

	sc, err := c.buildScope(namespace)
	if err != nil {
		return "", "", err
	}

	sym, ok := sc.Lookup(kind, name)
	if !ok {
		return "", "", report.NewError(report.NameUnresolved, nil, "unresolved %s %q in namespace %q", kind, name, namespace)
	}

	origin, _ := sym.Reference.(string)
	return origin, sym.Key.Name, nil
}

func declKind(d ast.Decl) resolve.SymbolKind {
	switch d.(type) {
	case ast.TypeDecl:
		return resolve.KindType
	case ast.StreamletDecl:
		return resolve.KindStreamlet
	case ast.ImplDecl:
		return resolve.KindImplementation
	default:
		return resolve.KindType
	}
}

func (c *Compiler) declKeyString(namespace string, key resolve.Key) string {
	return namespace + "|" + key.Kind.String() + "|" + key.Name
}

// CompileAll evaluates every registered declaration across every namespace,
// accumulating diagnostics on c.Sink instead of aborting (§7, §9). It
// returns the total count of declarations that failed to evaluate.
// Namespaces and declarations are visited in Go map iteration order, so the
// order of evaluation, and of the diagnostics it reports, is not defined and
// does not follow the textual order of declarations.
func (c *Compiler) CompileAll() int {
	failures := 0

	for _, ns := range c.namespaces {
		for key, entry := range c.decls {
			if entry.namespace != ns.Path {
				continue
			}
			switch d := entry.decl.(type) {
			case ast.TypeDecl:
				if _, err := c.EvalType(ns.Path, d.Name, nil, nil); err != nil {
					c.Sink.ReportErr(err)
					c.Sink.MarkFailed(key)
					failures++
				}
			case ast.StreamletDecl:
				if _, err := c.EvalStreamlet(ns.Path, d.Name, nil, nil); err != nil {
					c.Sink.ReportErr(err)
					c.Sink.MarkFailed(key)
					failures++
				}
			case ast.ImplDecl:
				if d.Name != "" {
					if _, err := c.evalFreestandingImpl(ns.Path, d); err != nil {
						c.Sink.ReportErr(err)
						c.Sink.MarkFailed(key)
						failures++
					}
				}
			}
		}
	}

	return failures
}

func (c *Compiler) lookupDecl(namespace string, kind resolve.SymbolKind, name string) (ast.Decl, error) {
	entry, ok := c.decls[c.declKeyString(namespace, resolve.Key{Kind: kind, Name: name})]
	if !ok {
		return nil, report.NewError(report.NameUnresolved, nil, "unresolved %s %q in namespace %q", kind, name, namespace)
	}
	return entry.decl, nil
}

// -----------------------------------------------------------------------------
// Constant expressions and predicates (§3.1, §4.4).

func toParamExpr(e ast.Expr) (param.Expr, error) {
	switch v := e.(type) {
	case nil:
		return nil, nil
	case ast.IntLit:
		n, ok := new(big.Int).SetString(v.Text, 10)
		if !ok {
			return nil, report.NewError(report.LexicalForm, v.Span(), "malformed integer literal %q", v.Text)
		}
		return param.Lit{Value: n}, nil
	case ast.NameExpr:
		return param.Ref{Name: v.Name, Span: v.Span()}, nil
	case ast.BinaryExpr:
		l, err := toParamExpr(v.Left)
		if err != nil {
			return nil, err
		}
		r, err := toParamExpr(v.Right)
		if err != nil {
			return nil, err
		}
		op, err := binOp(v.Op, v.Span())
		if err != nil {
			return nil, err
		}
		return param.BinOp{Left: l, Right: r, Op: op, Span: v.Span()}, nil
	default:
		return nil, report.NewError(report.LexicalForm, e.Span(), "unrecognized constant expression")
	}
}

func binOp(op string, span *report.TextSpan) (param.Op, error) {
	switch op {
	case "+":
		return param.Add, nil
	case "-":
		return param.Sub, nil
	case "*":
		return param.Mul, nil
	case "/":
		return param.Div, nil
	case "%":
		return param.Mod, nil
	default:
		return 0, report.NewError(report.LexicalForm, span, "unknown operator %q", op)
	}
}

func toPredicate(p ast.Predicate) (param.Predicate, error) {
	switch v := p.(type) {
	case nil:
		return nil, nil
	case ast.RelPredicate:
		val, err := toParamExpr(v.Value)
		if err != nil {
			return nil, err
		}
		n, err := param.Eval(val, nil, v.Span())
		if err != nil {
			return nil, err
		}
		op, err := relOp(v.Op, v.Span())
		if err != nil {
			return nil, err
		}
		return param.Rel{Op: op, Value: n}, nil
	case ast.OneOfPredicate:
		vals := make([]*big.Int, len(v.Values))
		for i, e := range v.Values {
			pe, err := toParamExpr(e)
			if err != nil {
				return nil, err
			}
			n, err := param.Eval(pe, nil, v.Span())
			if err != nil {
				return nil, err
			}
			vals[i] = n
		}
		return param.OneOf{Values: vals}, nil
	case ast.AndPredicate:
		l, err := toPredicate(v.Left)
		if err != nil {
			return nil, err
		}
		r, err := toPredicate(v.Right)
		if err != nil {
			return nil, err
		}
		return param.And{Left: l, Right: r}, nil
	case ast.OrPredicate:
		l, err := toPredicate(v.Left)
		if err != nil {
			return nil, err
		}
		r, err := toPredicate(v.Right)
		if err != nil {
			return nil, err
		}
		return param.Or{Left: l, Right: r}, nil
	case ast.NotPredicate:
		inner, err := toPredicate(v.Inner)
		if err != nil {
			return nil, err
		}
		return param.Not{Inner: inner}, nil
	default:
		return nil, report.NewError(report.LexicalForm, p.Span(), "unrecognized predicate")
	}
}

func relOp(op string, span *report.TextSpan) (param.RelOp, error) {
	switch op {
	case "==":
		return param.Eq, nil
	case "!=":
		return param.Ne, nil
	case "<":
		return param.Lt, nil
	case "<=":
		return param.Le, nil
	case ">":
		return param.Gt, nil
	case ">=":
		return param.Ge, nil
	default:
		return 0, report.NewError(report.LexicalForm, span, "unknown relational operator %q", op)
	}
}

func toParamKind(k string) param.Kind {
	switch k {
	case "positive":
		return param.Positive
	case "integer":
		return param.Integer
	case "dimensionality":
		return param.Dimensionality
	default:
		return param.Natural
	}
}

func toParams(generics []ast.GenericParamDecl) ([]param.Parameter, error) {
	out := make([]param.Parameter, len(generics))
	for i, g := range generics {
		def, err := toParamExpr(g.Default)
		if err != nil {
			return nil, err
		}
		if def == nil {
			def = param.Lit{Value: big.NewInt(0)}
		}
		pred, err := toPredicate(g.Constraint)
		if err != nil {
			return nil, err
		}
		out[i] = param.Parameter{Name: g.Name, Kind: toParamKind(g.Kind), Default: def, Constraint: pred}
	}
	return out, nil
}

func toArgs(args []ast.Arg) ([]param.Arg, error) {
	out := make([]param.Arg, len(args))
	for i, a := range args {
		v, err := toParamExpr(a.Value)
		if err != nil {
			return nil, err
		}
		out[i] = param.Arg{Name: a.Name, Value: v, Span: a.Span}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// C2/C4 bridge: logical type declarations.

// EvalType reduces the type declaration named (namespace, name) under args
// to an interned logical.Id, memoized by the bound argument vector (§4.9).
func (c *Compiler) EvalType(namespace, name string, args []ast.Arg, callerScope param.Scope) (logical.Id, error) {
	d, err := c.lookupDecl(namespace, resolve.KindType, name)
	if err != nil {
		return 0, err
	}
	td := d.(ast.TypeDecl)

	params, err := toParams(td.Generics)
	if err != nil {
		return 0, err
	}
	pargs, err := toArgs(args)
	if err != nil {
		return 0, err
	}

	scope, err := param.Bind(params, pargs, callerScope, td.Span())
	if err != nil {
		return 0, err
	}

	key := eval.MemoKey{Namespace: namespace, Kind: "type", Name: name, Scope: eval.HashScope(scopeStrings(scope))}
	return eval.Evaluate(c.ev, key, td.Span(), func() (logical.Id, error) {
		return c.evalTypeExpr(namespace, scope, td.Type)
	})
}

func scopeStrings(scope param.Scope) map[string]string {
	out := make(map[string]string, len(scope))
	for k, v := range scope {
		out[k] = v.String()
	}
	return out
}

func (c *Compiler) evalTypeExpr(namespace string, scope param.Scope, e ast.TypeExpr) (logical.Id, error) {
	switch v := e.(type) {
	case ast.NullExpr:
		return logical.InternNull(c.Store), nil

	case ast.BitsExpr:
		expr, err := toParamExpr(v.Width)
		if err != nil {
			return 0, err
		}
		n, err := param.Eval(expr, scope, v.Span())
		if err != nil {
			return 0, err
		}
		width, err := bigToInt64(n, v.Span(), "bits width")
		if err != nil {
			return 0, err
		}
		return logical.InternBits(c.Store, int(width), v.Span())

	case ast.GroupExpr:
		fields := make([]logical.Field, len(v.Fields))
		for i, f := range v.Fields {
			id, err := c.evalTypeExpr(namespace, scope, f.Type)
			if err != nil {
				return 0, err
			}
			fields[i] = logical.Field{Name: f.Name, Type: id}
		}
		return logical.InternGroup(c.Store, fields, v.Span())

	case ast.UnionExpr:
		variants := make([]logical.Variant, len(v.Variants))
		for i, vr := range v.Variants {
			id, err := c.evalTypeExpr(namespace, scope, vr.Type)
			if err != nil {
				return 0, err
			}
			variants[i] = logical.Variant{Name: vr.Name, Type: id}
		}
		return logical.InternUnion(c.Store, variants, v.Span())

	case ast.StreamExpr:
		return c.evalStreamExpr(namespace, scope, v)

	case ast.TypeRefExpr:
		target := v.Namespace
		name := v.Name
		if target == "" {
			var err error
			target, name, err = c.resolveRef(namespace, resolve.KindType, v.Name)
			if err != nil {
				return 0, err
			}
		}
		return c.EvalType(target, name, v.Args, scope)

	default:
		return 0, report.NewError(report.TypeInvariant, e.Span(), "unrecognized type expression")
	}
}

func (c *Compiler) evalStreamExpr(namespace string, scope param.Scope, v ast.StreamExpr) (logical.Id, error) {
	dataID, err := c.evalTypeExpr(namespace, scope, v.Data)
	if err != nil {
		return 0, err
	}

	nullID := logical.InternNull(c.Store)
	opts := logical.NewStreamOpts(nullID)

	if v.Throughput != nil {
		th, err := evalThroughput(v.Throughput, scope, v.Span())
		if err != nil {
			return 0, err
		}
		opts.Throughput = th
	}

	if v.Dimensionality != nil {
		expr, err := toParamExpr(v.Dimensionality)
		if err != nil {
			return 0, err
		}
		n, err := param.Eval(expr, scope, v.Span())
		if err != nil {
			return 0, err
		}
		dim, err := bigToInt64(n, v.Span(), "dimensionality")
		if err != nil {
			return 0, err
		}
		opts.Dimensionality = int(dim)
	}

	opts.Synchronicity = toSynchronicity(v.Synchronicity)
	opts.Direction = toDirection(v.Direction)
	opts.Keep = v.Keep

	if len(v.Complexity) > 0 {
		opts.Complexity = logical.ComplexityVersion(v.Complexity)
	}

	if v.User != nil {
		userID, err := c.evalTypeExpr(namespace, scope, v.User)
		if err != nil {
			return 0, err
		}
		opts.User = userID
	}

	return logical.InternStream(c.Store, dataID, opts, v.Span())
}

// evalThroughput reduces a Stream's throughput expression to a
// PositiveRational. A DecimalLit carries the full numerator/denominator
// precision of a decimal or fractional literal ("2.0", "0.5", "1/3") taken
// verbatim from source; anything else is the integer constant-expression
// grammar shared with the rest of the language, evaluated with a
// denominator of 1 (§3.1 PositiveRational, §4.4).
func evalThroughput(e ast.Expr, scope param.Scope, span *report.TextSpan) (logical.PositiveRational, error) {
	if dec, ok := e.(ast.DecimalLit); ok {
		r, ok := new(big.Rat).SetString(dec.Text)
		if !ok {
			return logical.PositiveRational{}, report.NewError(report.LexicalForm, span, "malformed throughput literal %q", dec.Text)
		}
		num, err := bigToInt64(r.Num(), span, "throughput numerator")
		if err != nil {
			return logical.PositiveRational{}, err
		}
		den, err := bigToInt64(r.Denom(), span, "throughput denominator")
		if err != nil {
			return logical.PositiveRational{}, err
		}
		return logical.NewPositiveRational(num, den, span)
	}

	expr, err := toParamExpr(e)
	if err != nil {
		return logical.PositiveRational{}, err
	}
	n, err := param.Eval(expr, scope, span)
	if err != nil {
		return logical.PositiveRational{}, err
	}
	num, err := bigToInt64(n, span, "throughput")
	if err != nil {
		return logical.PositiveRational{}, err
	}
	return logical.NewPositiveRational(num, 1, span)
}

// bigToInt64 narrows an arbitrary-precision evaluation result to an int64,
// reporting a diagnostic instead of silently truncating when the value is
// out of range (param's own arithmetic stays unbounded up to this point).
func bigToInt64(n *big.Int, span *report.TextSpan, what string) (int64, error) {
	if !n.IsInt64() {
		return 0, report.NewError(report.ArgumentKind, span, "%s value %s is out of range", what, n.String())
	}
	return n.Int64(), nil
}

func toSynchronicity(s string) logical.Synchronicity {
	switch s {
	case "Flatten":
		return logical.Flatten
	case "Desync":
		return logical.Desync
	case "FlatDesync":
		return logical.FlatDesync
	default:
		return logical.Sync
	}
}

func toDirection(s string) logical.Direction {
	if s == "Reverse" {
		return logical.Reverse
	}
	return logical.Forward
}

// -----------------------------------------------------------------------------
// C5/C6: streamlets.

// EvalStreamlet reduces the streamlet/interface declaration named
// (namespace, name) under args to an interned streamlet.Id (§4.6, §4.9). An
// unparameterized top-level application (no args, no caller scope -- the way
// CompileAll invokes it) is additionally recorded in c.streamlets so a
// downstream consumer can later ask for its physical view.
func (c *Compiler) EvalStreamlet(namespace, name string, args []ast.Arg, callerScope param.Scope) (streamlet.Id, error) {
	id, err := c.evalStreamletImpl(namespace, name, args, callerScope)
	if err != nil {
		return 0, err
	}
	if args == nil && callerScope == nil {
		c.streamlets[c.declKeyString(namespace, resolve.Key{Kind: resolve.KindStreamlet, Name: name})] = id
	}
	return id, nil
}

func (c *Compiler) evalStreamletImpl(namespace, name string, args []ast.Arg, callerScope param.Scope) (streamlet.Id, error) {
	d, err := c.lookupDecl(namespace, resolve.KindStreamlet, name)
	if err != nil {
		return 0, err
	}
	sd := d.(ast.StreamletDecl)

	if sd.Adopts != nil {
		adoptNS, adoptName := sd.Adopts.Namespace, sd.Adopts.Name
		if adoptNS == "" {
			var err error
			adoptNS, adoptName, err = c.resolveRef(namespace, resolve.KindStreamlet, adoptName)
			if err != nil {
				return 0, err
			}
		}
		base, err := c.EvalStreamlet(adoptNS, adoptName, sd.Adopts.Args, callerScope)
		if err != nil {
			return 0, err
		}
		baseStreamlet, ok := streamlet.Lookup(c.Store, base)
		if !ok {
			return 0, report.NewError(report.NameUnresolved, sd.Adopts.Span(), "adopted streamlet did not resolve to an interned interface")
		}

		var implRef streamlet.ImplRef
		if sd.Impl != nil {
			// An adopting streamlet's inline implementation is validated
			// against the adopted interface's own port list, not a fresh
			// one of its own (§4.6): a connection naming a port the
			// adopted interface never declared is an unknown-endpoint
			// error the same way it would be for a directly-declared one.
			id, err := c.evalImplDecl(namespace, *sd.Impl, baseStreamlet.Ports, callerScope)
			if err != nil {
				return 0, err
			}
			implRef = streamlet.ImplRef(id)
		}
		return streamlet.Adopt(c.Store, namespace, sd.Name, base, implRef, sd.Span())
	}

	params, err := toParams(sd.Generics)
	if err != nil {
		return 0, err
	}
	pargs, err := toArgs(args)
	if err != nil {
		return 0, err
	}
	scope, err := param.Bind(params, pargs, callerScope, sd.Span())
	if err != nil {
		return 0, err
	}

	key := eval.MemoKey{Namespace: namespace, Kind: "streamlet", Name: name, Scope: eval.HashScope(scopeStrings(scope))}
	return eval.Evaluate(c.ev, key, sd.Span(), func() (streamlet.Id, error) {
		domains, err := domain.NewList(sd.Domains.Names, sd.Span())
		if err != nil {
			return 0, err
		}

		ports := make([]streamlet.Port, len(sd.Ports))
		for i, p := range sd.Ports {
			typeID, err := c.evalTypeExpr(namespace, scope, p.Type)
			if err != nil {
				return 0, err
			}
			dom := p.Domain
			if dom == "" {
				dom = domain.Default
			}
			dir := logical.Forward
			if p.Direction == "out" {
				dir = logical.Reverse
			}
			ports[i] = streamlet.Port{Name: p.Name, Direction: dir, Stream: typeID, Domain: dom, Doc: string(p.Doc)}
		}

		var implRef streamlet.ImplRef
		if sd.Impl != nil {
			id, err := c.evalImplDecl(namespace, *sd.Impl, ports, scope)
			if err != nil {
				return 0, err
			}
			implRef = streamlet.ImplRef(id)
		}

		return streamlet.Intern(c.Store, namespace, name, params, domains, ports, sd.IsInterface, implRef, sd.Span())
	})
}

// -----------------------------------------------------------------------------
// C7: implementations.

func (c *Compiler) evalFreestandingImpl(namespace string, d ast.ImplDecl) (impl.Id, error) {
	return c.evalImplDecl(namespace, d, nil, nil)
}

// evalImplDecl reduces one implementation body. scope carries the enclosing
// streamlet's bound generic arguments (nil for a freestanding implementation,
// which has none) so that an instance's own generic argument expressions --
// e.g. "instance p = Inner<n>;" where n names the enclosing streamlet's own
// parameter -- resolve against it rather than failing unresolved (§4.7).
func (c *Compiler) evalImplDecl(namespace string, d ast.ImplDecl, enclosingPorts []streamlet.Port, scope param.Scope) (impl.Id, error) {
	if d.LinkedPath != "" {
		return impl.InternLinked(c.Store, d.LinkedPath, d.Span())
	}

	ownPorts := enclosingPorts
	if enclosingPorts == nil && len(d.OwnPorts) > 0 {
		ownPorts = make([]streamlet.Port, len(d.OwnPorts))
		for i, p := range d.OwnPorts {
			typeID, err := c.evalTypeExpr(namespace, scope, p.Type)
			if err != nil {
				return 0, err
			}
			dir := logical.Forward
			if p.Direction == "out" {
				dir = logical.Reverse
			}
			dom := p.Domain
			if dom == "" {
				dom = domain.Default
			}
			ownPorts[i] = streamlet.Port{Name: p.Name, Direction: dir, Stream: typeID, Domain: dom, Doc: string(p.Doc)}
		}
	}
	if ownPorts == nil {
		return 0, report.NewError(report.TypeInvariant, d.Span(), "freestanding implementation %q must declare its own port list", d.Name)
	}

	instances := make([]impl.Instance, len(d.Instances))
	domainBinds := make(map[string]map[string]string, len(d.Instances))
	for i, instDecl := range d.Instances {
		targetNS := instDecl.Streamlet.Namespace
		targetName := instDecl.Streamlet.Name
		if targetNS == "" {
			var err error
			targetNS, targetName, err = c.resolveRef(namespace, resolve.KindStreamlet, targetName)
			if err != nil {
				return 0, err
			}
		}

		sid, err := c.EvalStreamlet(targetNS, targetName, instDecl.Streamlet.Args, scope)
		if err != nil {
			return 0, err
		}

		target, ok := streamlet.Lookup(c.Store, sid)
		if !ok {
			return 0, report.NewError(report.NameUnresolved, instDecl.Span(), "unresolved instance streamlet %q", instDecl.Streamlet.Name)
		}

		binds := make([]domain.Binding, len(instDecl.DomainBinds))
		for j, b := range instDecl.DomainBinds {
			binds[j] = domain.Binding{Child: b.Child, Parent: b.Parent}
		}
		// A streamlet that never declared an explicit domain list carries
		// exactly List{domain.Default} (domain.NewList's implicit case),
		// which doubles as the only case bare instantiation is legal for.
		bare := len(target.Domains) == 1 && target.Domains[0] == domain.Default
		bound, err := domain.Bind(target.Domains, bare, binds, instDecl.Span())
		if err != nil {
			return 0, err
		}

		instances[i] = impl.Instance{Name: instDecl.Name, Streamlet: sid, DomainBinds: bound, Span: instDecl.Span()}
		domainBinds[instDecl.Name] = bound
	}

	connections := make([]impl.Connection, len(d.Connections))
	validateConns := make([]validate.Connection, len(d.Connections))
	for i, conn := range d.Connections {
		a := impl.Endpoint{Instance: conn.A.Instance, Port: conn.A.Port}
		b := impl.Endpoint{Instance: conn.B.Instance, Port: conn.B.Port}
		connections[i] = impl.Connection{A: a, B: b, Span: conn.Span()}
		validateConns[i] = validate.Connection{A: a, B: b, Span: conn.Span()}
	}

	if err := validate.Structural(c.Store, ownPorts, instances, domainBinds, validateConns); err != nil {
		return 0, err
	}

	var declaredOwnPorts []streamlet.Port
	if enclosingPorts == nil {
		declaredOwnPorts = ownPorts
	}

	return impl.InternStructural(c.Store, declaredOwnPorts, instances, connections, d.Span())
}

