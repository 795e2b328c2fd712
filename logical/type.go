// Package logical implements the canonical logical-type model (C2): Null,
// Bits, Group, Union, and Stream, with the local validity checks each
// constructor enforces before interning.
//
// Sub-structure is always referenced by already-interned ir.Id, never by
// value: a Group's fields hold the Ids of their field types, not the types
// themselves. Because a value can only be built from Ids that already exist
// in the Store, the logical-type graph cannot contain a cycle -- there is no
// way to construct a reference to an entity before it exists (§9, "cyclic
// ownership risk").
package logical

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/matthijsr/til-vhdl/ir"
	"github.com/matthijsr/til-vhdl/report"
)

const kind = "logical.Type"

// Type is the tagged-variant interface every logical type implements. It is
// a closed set by convention (the five constructors below); callers
// type-switch on the concrete types to inspect a value.
type Type interface {
	isLogicalType()
	canonKey() string
}

// Id is an interned reference to a Type.
type Id = ir.Id[Type]

func intern(s *ir.Store, t Type) Id {
	return ir.Intern(s, kind, t.canonKey(), t)
}

// Lookup resolves an interned Type by Id.
func Lookup(s *ir.Store, id Id) (Type, bool) {
	return ir.Lookup[Type](s, kind, id)
}

// -----------------------------------------------------------------------------

// Null is the zero-bit sentinel logical type.
type Null struct{}

func (Null) isLogicalType() {}
func (Null) canonKey() string { return "Null" }

// InternNull interns the single Null type.
func InternNull(s *ir.Store) Id {
	return intern(s, Null{})
}

// -----------------------------------------------------------------------------

// Bits is a flat bit-width logical type.
type Bits struct {
	Width int
}

func (Bits) isLogicalType() {}
func (b Bits) canonKey() string { return fmt.Sprintf("Bits(%d)", b.Width) }

// InternBits validates n >= 1 (§4.2) and interns the Bits type.
func InternBits(s *ir.Store, n int, span *report.TextSpan) (Id, error) {
	if n < 1 {
		return 0, report.NewError(report.TypeInvariant, span, "Bits width must be >= 1, got %d", n)
	}

	return intern(s, Bits{Width: n}), nil
}

// -----------------------------------------------------------------------------

// Field is one named member of a Group.
type Field struct {
	Name string
	Type Id
}

// Group is a named-field product type. Field order is semantically
// significant (§4.1, canonical form preserves declared ordering).
type Group struct {
	Fields []Field
}

func (Group) isLogicalType() {}

func (g Group) canonKey() string {
	var sb strings.Builder
	sb.WriteString("Group{")
	for i, f := range g.Fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s:%d", f.Name, f.Type)
	}
	sb.WriteByte('}')
	return sb.String()
}

// InternGroup validates that fields is non-empty and every field name is
// unique, then interns the Group (§4.2).
func InternGroup(s *ir.Store, fields []Field, span *report.TextSpan) (Id, error) {
	if len(fields) == 0 {
		return 0, report.NewError(report.TypeInvariant, span, "Group must have at least one field")
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return 0, report.NewError(report.TypeInvariant, span, "duplicate field name %q in Group", f.Name)
		}
		seen[f.Name] = true
	}

	cp := make([]Field, len(fields))
	copy(cp, fields)
	return intern(s, Group{Fields: cp}), nil
}

// -----------------------------------------------------------------------------

// Variant is one named member of a Union.
type Variant struct {
	Name string
	Type Id
}

// Union is a tagged-sum type. Variant order is semantically significant.
type Union struct {
	Variants []Variant
}

func (Union) isLogicalType() {}

func (u Union) canonKey() string {
	var sb strings.Builder
	sb.WriteString("Union{")
	for i, v := range u.Variants {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s:%d", v.Name, v.Type)
	}
	sb.WriteByte('}')
	return sb.String()
}

// InternUnion validates that variants is non-empty and every variant name is
// unique, then interns the Union (§4.2).
func InternUnion(s *ir.Store, variants []Variant, span *report.TextSpan) (Id, error) {
	if len(variants) == 0 {
		return 0, report.NewError(report.TypeInvariant, span, "Union must have at least one variant")
	}

	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if seen[v.Name] {
			return 0, report.NewError(report.TypeInvariant, span, "duplicate variant name %q in Union", v.Name)
		}
		seen[v.Name] = true
	}

	cp := make([]Variant, len(variants))
	copy(cp, variants)
	return intern(s, Union{Variants: cp}), nil
}

// -----------------------------------------------------------------------------

// Synchronicity is the enumerated set of stream synchronicity modes.
type Synchronicity int

const (
	Sync Synchronicity = iota
	Flatten
	Desync
	FlatDesync
)

func (sy Synchronicity) String() string {
	switch sy {
	case Sync:
		return "Sync"
	case Flatten:
		return "Flatten"
	case Desync:
		return "Desync"
	case FlatDesync:
		return "FlatDesync"
	default:
		return "?"
	}
}

// Direction is a stream's data-flow direction relative to its declaring
// port.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "Reverse"
	}
	return "Forward"
}

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Forward {
		return Reverse
	}
	return Forward
}

// ComplexityVersion is a non-empty, lexicographically-compared version
// tuple (§3.1). It is preserved exactly as declared; trailing zeros are never
// trimmed, so {4} and {4, 0} give distinct Stream canonical keys even though
// Compare reports them equal.
type ComplexityVersion []int

// DefaultComplexity is the complexity used when a Stream declaration omits
// one.
func DefaultComplexity() ComplexityVersion { return ComplexityVersion{1} }

// Major returns the first (most significant) element of the version tuple,
// used by physical-signal threshold checks (§4.3).
func (c ComplexityVersion) Major() int {
	if len(c) == 0 {
		return 0
	}
	return c[0]
}

// Compare lexicographically compares two version tuples, treating a
// missing trailing component as 0.
func (c ComplexityVersion) Compare(other ComplexityVersion) int {
	n := len(c)
	if len(other) > n {
		n = len(other)
	}

	for i := 0; i < n; i++ {
		a, b := 0, 0
		if i < len(c) {
			a = c[i]
		}
		if i < len(other) {
			b = other[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}

	return 0
}

func (c ComplexityVersion) String() string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ".")
}

// PositiveRational is a strictly-positive rational number, used for a
// Stream's throughput.
type PositiveRational struct {
	r *big.Rat
}

// NewPositiveRational constructs a PositiveRational from a numerator and
// denominator, reducing it to lowest terms (§4.1 canonical form).
func NewPositiveRational(num, den int64, span *report.TextSpan) (PositiveRational, error) {
	if den == 0 {
		return PositiveRational{}, report.NewError(report.DivisionByZero, span, "throughput denominator cannot be zero")
	}

	r := big.NewRat(num, den)
	if r.Sign() <= 0 {
		return PositiveRational{}, report.NewError(report.TypeInvariant, span, "throughput must be positive, got %s", r.RatString())
	}

	return PositiveRational{r: r}, nil
}

// DefaultThroughput is the throughput used when a Stream declaration omits
// one: 1.0.
func DefaultThroughput() PositiveRational {
	return PositiveRational{r: big.NewRat(1, 1)}
}

func (p PositiveRational) String() string { return p.r.RatString() }

// Float64 returns the throughput as a float64, for element-lane rounding
// (§4.3).
func (p PositiveRational) Float64() float64 {
	f, _ := p.r.Float64()
	return f
}

// -----------------------------------------------------------------------------

// Stream is a typed, back-pressured handshake interface (§3.1).
type Stream struct {
	Data           Id
	Throughput     PositiveRational
	Dimensionality int
	Synchronicity  Synchronicity
	Complexity     ComplexityVersion
	Direction      Direction
	User           Id
	Keep           bool
}

func (Stream) isLogicalType() {}

func (st Stream) canonKey() string {
	return fmt.Sprintf(
		"Stream{data:%d,thrpt:%s,dim:%d,sync:%s,cplx:%s,dir:%s,user:%d,keep:%t}",
		st.Data, st.Throughput, st.Dimensionality, st.Synchronicity, st.Complexity, st.Direction, st.User, st.Keep,
	)
}

// StreamOpts carries the optional attributes of a Stream declaration; the
// zero value of each field is not necessarily the spec's default, so
// NewStreamOpts should be used to obtain the correctly-defaulted struct.
type StreamOpts struct {
	Throughput     PositiveRational
	Dimensionality int
	Synchronicity  Synchronicity
	Complexity     ComplexityVersion
	Direction      Direction
	User           Id
	Keep           bool
}

// NewStreamOpts returns a StreamOpts populated with the spec's defaults
// (throughput=1.0, complexity=1, direction=Forward, user=Null, keep=false).
func NewStreamOpts(nullId Id) StreamOpts {
	return StreamOpts{
		Throughput:    DefaultThroughput(),
		Complexity:    DefaultComplexity(),
		Direction:     Forward,
		User:          nullId,
		Keep:          false,
	}
}

// InternStream validates the Stream's locally-checkable invariants (§4.2)
// and interns it. data and opts.User must already be interned Ids.
func InternStream(s *ir.Store, data Id, opts StreamOpts, span *report.TextSpan) (Id, error) {
	if !data.Valid() {
		return 0, report.NewError(report.TypeInvariant, span, "Stream data type must be a valid logical type")
	}

	if opts.Dimensionality < 0 {
		return 0, report.NewError(report.TypeInvariant, span, "Stream dimensionality must be >= 0, got %d", opts.Dimensionality)
	}

	if len(opts.Complexity) == 0 {
		return 0, report.NewError(report.TypeInvariant, span, "Stream complexity must be a non-empty version tuple")
	}

	for _, c := range opts.Complexity {
		if c < 0 {
			return 0, report.NewError(report.TypeInvariant, span, "Stream complexity components must be >= 0")
		}
	}

	if opts.Throughput.r == nil {
		opts.Throughput = DefaultThroughput()
	}

	return intern(s, Stream{
		Data:           data,
		Throughput:     opts.Throughput,
		Dimensionality: opts.Dimensionality,
		Synchronicity:  opts.Synchronicity,
		Complexity:     opts.Complexity,
		Direction:      opts.Direction,
		User:           opts.User,
		Keep:           opts.Keep,
	}), nil
}
