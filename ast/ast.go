// Package ast defines the front-end parse-tree contract the evaluator (C9)
// consumes: declaration and expression node types produced by a parser
// collaborator, each carrying the source span diagnostics are reported
// against.
package ast

import "github.com/matthijsr/til-vhdl/report"

// Node is the interface every AST node implements.
type Node interface {
	Span() *report.TextSpan
}

// Base is a utility embeddable struct providing the common Span() method.
type Base struct {
	span *report.TextSpan
}

// NewBaseOn creates a Base spanning the given span.
func NewBaseOn(span *report.TextSpan) Base {
	return Base{span: span}
}

// NewBaseOver creates a Base spanning from the start of one span to the end
// of another.
func NewBaseOver(start, end *report.TextSpan) Base {
	return Base{span: report.NewSpanOver(start, end)}
}

func (b Base) Span() *report.TextSpan { return b.span }

// Doc is the documentation text attached to a declaration or port via a
// `# ... #` block (§6.1), or empty if none was given.
type Doc string

// File is one parsed source file: a namespace path, its import list, and
// the declarations it contains, in textual order (§4.8, §5 "declaration-
// evaluation order within a namespace is the textual order").
type File struct {
	Base
	Namespace    string
	Imports      []ImportDecl
	Declarations []Decl
}

// ImportDecl is one parsed import clause (§4.8, §6.1).
type ImportDecl struct {
	Base
	Source string // namespace path being imported from
	Name   string // "" for a wildcard import
	As     string // rename target, if any
	Prefix string // prefix namespace, if any ("prefixed by")
}

// Decl is the common interface for a top-level named, parametric
// declaration: type, streamlet, interface, or implementation (§9,
// "polymorphic declaration kinds").
type Decl interface {
	Node
	DeclName() string
	DeclDoc() Doc
}

// GenericParamDecl is one parsed generic parameter, with its kind,
// optional default, and optional constraint expression text deferred to
// evaluation (§4.4).
type GenericParamDecl struct {
	Base
	Name       string
	Kind       string // "natural" | "positive" | "integer" | "dimensionality"
	Default    Expr   // nil if the parameter has no default
	Constraint Predicate
}

// TypeDecl declares a named logical type, optionally generic (§4.2, §4.4).
type TypeDecl struct {
	Base
	Name     string
	Doc      Doc
	Generics []GenericParamDecl
	Type     TypeExpr
}

func (d TypeDecl) DeclName() string { return d.Name }
func (d TypeDecl) DeclDoc() Doc     { return d.Doc }

// TypeExpr is the unevaluated logical-type expression tree parsed from
// source: a Null/Bits/Group/Union/Stream constructor call, or a reference
// to another named type (possibly generic).
type TypeExpr interface {
	Node
	isTypeExpr()
}

// NullExpr parses to the Null constructor.
type NullExpr struct{ Base }

func (NullExpr) isTypeExpr() {}

// BitsExpr parses to a Bits(n) constructor call.
type BitsExpr struct {
	Base
	Width Expr
}

func (BitsExpr) isTypeExpr() {}

// GroupField is one parsed Group field.
type GroupField struct {
	Name string
	Type TypeExpr
}

// GroupExpr parses to a Group(...) constructor call.
type GroupExpr struct {
	Base
	Fields []GroupField
}

func (GroupExpr) isTypeExpr() {}

// UnionVariant is one parsed Union variant.
type UnionVariant struct {
	Name string
	Type TypeExpr
}

// UnionExpr parses to a Union(...) constructor call.
type UnionExpr struct {
	Base
	Variants []UnionVariant
}

func (UnionExpr) isTypeExpr() {}

// StreamExpr parses to a Stream(...) constructor call; optional attributes
// that were omitted in source are nil/zero and take the evaluator's
// defaults (§4.2). Throughput is the one place Expr admits a DecimalLit
// alongside the integer literal/name/binary forms, since it alone is
// declared a PositiveRational rather than an integer.
type StreamExpr struct {
	Base
	Data           TypeExpr
	Throughput     Expr
	Dimensionality Expr
	Synchronicity  string
	Complexity     []int
	Direction      string
	User           TypeExpr
	Keep           bool
}

func (StreamExpr) isTypeExpr() {}

// TypeRefExpr references another named type declaration, with optional
// generic arguments (§4.4, §4.8).
type TypeRefExpr struct {
	Base
	Namespace string // "" if unqualified; resolved through Scope
	Name      string
	Args      []Arg
}

func (TypeRefExpr) isTypeExpr() {}

// Arg is one parsed argument in a generic application: positional
// (Name == "") or named (§4.4).
type Arg struct {
	Name  string
	Value Expr
	Span  *report.TextSpan
}

// Expr is the integer constant-expression AST surface parsed from source
// (§3.1, §4.4); param.Expr is its evaluated counterpart.
type Expr interface {
	Node
	isExpr()
}

// IntLit is an integer literal.
type IntLit struct {
	Base
	Text string // decimal digits, as scanned; evaluator parses to big.Int
}

func (IntLit) isExpr() {}

// NameExpr references a parameter or domain by symbolic name.
type NameExpr struct {
	Base
	Name string
}

func (NameExpr) isExpr() {}

// DecimalLit is a decimal or fractional literal, e.g. "2.0", "0.5", or
// "1/3" -- the only place the grammar admits a non-integer value is a
// Stream's throughput (§3.1 PositiveRational), so this exists alongside
// IntLit rather than generalizing it.
type DecimalLit struct {
	Base
	Text string // as scanned; evaluator parses it with big.Rat.SetString
}

func (DecimalLit) isExpr() {}

// BinaryExpr is a binary arithmetic expression (§3.1).
type BinaryExpr struct {
	Base
	Left, Right Expr
	Op          string // "+" | "-" | "*" | "/" | "%"
}

func (BinaryExpr) isExpr() {}

// Predicate is the constraint-predicate AST surface parsed from source
// (§3.1, §4.4).
type Predicate interface {
	Node
	isPredicate()
}

// RelPredicate is a relational atom, e.g. `>= 3`.
type RelPredicate struct {
	Base
	Op    string // "==" | "!=" | "<" | "<=" | ">" | ">="
	Value Expr
}

func (RelPredicate) isPredicate() {}

// OneOfPredicate checks membership in a literal set.
type OneOfPredicate struct {
	Base
	Values []Expr
}

func (OneOfPredicate) isPredicate() {}

// AndPredicate/OrPredicate/NotPredicate combine predicates (§4.4).
type AndPredicate struct {
	Base
	Left, Right Predicate
}

func (AndPredicate) isPredicate() {}

type OrPredicate struct {
	Base
	Left, Right Predicate
}

func (OrPredicate) isPredicate() {}

type NotPredicate struct {
	Base
	Inner Predicate
}

func (NotPredicate) isPredicate() {}

// DomainListDecl is a streamlet's parsed ordered domain-name list (§4.5).
type DomainListDecl struct {
	Base
	Names []string
}

// PortDecl is one parsed streamlet port (§6.1).
type PortDecl struct {
	Base
	Name      string
	Direction string // "in" | "out"
	Type      TypeExpr
	Domain    string // symbolic domain name, "" if defaulted
	Doc       Doc
}

// StreamletDecl declares a named, optionally-parametric port list,
// optionally marked as an `interface` declaration, with an optional
// attached implementation (§4.6).
type StreamletDecl struct {
	Base
	Name        string
	Doc         Doc
	IsInterface bool
	Generics    []GenericParamDecl
	Domains     DomainListDecl
	Ports       []PortDecl
	Adopts      *TypeRefExpr // non-nil for `comp2 = iface1` adoption syntax
	Impl        *ImplDecl    // non-nil when an implementation is attached inline
}

func (d StreamletDecl) DeclName() string { return d.Name }
func (d StreamletDecl) DeclDoc() Doc     { return d.Doc }

// InstanceDecl binds an instance name to a streamlet reference with
// concrete (possibly still-symbolic) arguments and domain bindings (§4.7).
type InstanceDecl struct {
	Base
	Name        string
	Streamlet   TypeRefExpr
	DomainBinds []DomainBindExpr
}

// DomainBindExpr is one parsed domain-binding clause, positional
// (Child == "") or named (`'child = 'parent`) (§4.5).
type DomainBindExpr struct {
	Child  string
	Parent string
}

// ConnectionDecl is one parsed `x -- y` connection statement (§4.7, §6.1).
type ConnectionDecl struct {
	Base
	A, B EndpointExpr
}

// EndpointExpr names one side of a connection: a bare port name, or
// `instance.port` (§4.10).
type EndpointExpr struct {
	Instance string
	Port     string
}

// ImplDecl is either a structural body (instances + connections) or a
// linked external path (§4.7).
type ImplDecl struct {
	Base
	Name        string // "" for an inline implementation attached to a streamlet
	Doc         Doc
	OwnPorts    []PortDecl // set only for a freestanding implementation outside any streamlet
	Instances   []InstanceDecl
	Connections []ConnectionDecl
	LinkedPath  string // non-empty marks this as a linked implementation
}

func (d ImplDecl) DeclName() string { return d.Name }
func (d ImplDecl) DeclDoc() Doc     { return d.Doc }
