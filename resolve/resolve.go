// Package resolve implements name resolution and the import graph (C8):
// each namespace owns a local symbol table keyed by (kind, name), and a
// Scope layers enclosing-declaration parameters, the local namespace, and
// imports on top of it in lookup-priority order.
package resolve

import (
	"github.com/matthijsr/til-vhdl/report"
)

// SymbolKind distinguishes the declaration kinds a namespace can hold
// (§4.8, §9 "polymorphic declaration kinds").
type SymbolKind int

const (
	KindType SymbolKind = iota
	KindStreamlet
	KindImplementation
)

func (k SymbolKind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindStreamlet:
		return "streamlet"
	case KindImplementation:
		return "implementation"
	default:
		return "?"
	}
}

// Key identifies one declaration within a namespace.
type Key struct {
	Kind SymbolKind
	Name string
}

// Symbol is one entry in a namespace's symbol table: the declaration's key,
// whether it is visible to importers, and an opaque reference the caller
// supplies (e.g. an evaluator memo key or already-reduced Id) and gets back
// on lookup.
type Symbol struct {
	Key       Key
	Exported  bool
	Reference any
}

// Namespace is a single file/namespace block's local symbol table (§4.8).
type Namespace struct {
	Path    string
	symbols map[Key]Symbol
}

// NewNamespace creates an empty Namespace at path.
func NewNamespace(path string) *Namespace {
	return &Namespace{Path: path, symbols: make(map[Key]Symbol)}
}

// Declare adds a symbol to ns's local table. A second declaration under the
// same (kind, name) is DeclarationRedefinition (§4.8, §7).
func (ns *Namespace) Declare(sym Symbol, span *report.TextSpan) error {
	if _, exists := ns.symbols[sym.Key]; exists {
		return report.NewError(report.DeclarationRedefinition, span, "redefinition of %s %q in namespace %q", sym.Key.Kind, sym.Key.Name, ns.Path)
	}
	ns.symbols[sym.Key] = sym
	return nil
}

// Local looks up a symbol declared directly in ns (not through imports).
func (ns *Namespace) Local(key Key) (Symbol, bool) {
	s, ok := ns.symbols[key]
	return s, ok
}

// Exported returns every exported symbol in ns, for wildcard imports.
func (ns *Namespace) Exported() []Symbol {
	var out []Symbol
	for _, s := range ns.symbols {
		if s.Exported {
			out = append(out, s)
		}
	}
	return out
}

// ImportSpec is one entry in a namespace's import list, evaluated in
// declaration order (§4.8, §6.1).
type ImportSpec struct {
	// Source is the namespace path being imported from.
	Source string

	// Name is the single symbol being imported, or "" for a wildcard import
	// of every exported (kind, name) pair.
	Name string
	Kind SymbolKind

	// As renames a single-symbol import under a new local name (`as`).
	As string

	// Prefix rebinds every wildcard-imported item under this namespace
	// path (`prefixed by`); must not collide with an existing local name.
	Prefix string

	Span *report.TextSpan
}

// Scope resolves identifiers for one declaration under evaluation (§4.8):
// the declaration's own parameters/domains shadow the local namespace,
// which shadows imports, which are applied in declaration order with later
// imports shadowing earlier ones on collision (reported as a warning, not
// an error).
type Scope struct {
	// Params holds the enclosing declaration's own generic parameters and
	// domain names, which always win regardless of namespace contents.
	Params map[string]bool

	ns      *Namespace
	imports map[Key]Symbol
	sink    *report.Sink
}

// NewScope builds a Scope for a declaration in ns, applying imports in
// order against the pre-populated import table of every source namespace
// (imports do not transit transitively: each entry in specs must come from
// a Namespace the caller has already resolved and supplies via sources).
func NewScope(ns *Namespace, params map[string]bool, specs []ImportSpec, sources map[string]*Namespace, sink *report.Sink) (*Scope, error) {
	sc := &Scope{
		Params:  params,
		ns:      ns,
		imports: make(map[Key]Symbol),
		sink:    sink,
	}

	for _, spec := range specs {
		src, ok := sources[spec.Source]
		if !ok {
			return nil, report.NewError(report.NameUnresolved, spec.Span, "unresolved import source namespace %q", spec.Source)
		}

		if spec.Name == "" {
			// Wildcard import: every exported symbol, optionally rebound
			// under a prefix namespace path.
			for _, sym := range src.Exported() {
				key := sym.Key
				if spec.Prefix != "" {
					key = Key{Kind: sym.Key.Kind, Name: spec.Prefix + "::" + sym.Key.Name}
					if _, local := ns.Local(key); local {
						return nil, report.NewError(report.NameKindMismatch, spec.Span, "prefix %q collides with an existing local name %q", spec.Prefix, key.Name)
					}
				}
				sc.addImport(key, sym)
			}
			continue
		}

		key := Key{Kind: spec.Kind, Name: spec.Name}
		sym, ok := src.Local(key)
		if !ok || !sym.Exported {
			return nil, report.NewError(report.NameUnresolved, spec.Span, "no exported %s %q in namespace %q", spec.Kind, spec.Name, spec.Source)
		}

		localKey := key
		if spec.As != "" {
			localKey = Key{Kind: spec.Kind, Name: spec.As}
		}
		sc.addImport(localKey, sym)
	}

	return sc, nil
}

func (sc *Scope) addImport(key Key, sym Symbol) {
	if _, exists := sc.imports[key]; exists && sc.sink != nil {
		sc.sink.Report(report.Diagnostic{
			Kind:     report.NameAmbiguous,
			Severity: report.SeverityWarning,
			Message:  "import of " + key.Kind.String() + " " + key.Name + " shadows an earlier import",
		})
	}
	sc.imports[key] = sym
}

// Lookup resolves name under kind following the three-tier order of §4.8:
// (1) the enclosing declaration's own parameters/domains, (2) the local
// namespace, (3) imports in declaration order (later shadows earlier).
func (sc *Scope) Lookup(kind SymbolKind, name string) (Symbol, bool) {
	if sc.Params != nil && sc.Params[name] {
		return Symbol{Key: Key{Kind: kind, Name: name}, Reference: name}, true
	}

	key := Key{Kind: kind, Name: name}
	if sym, ok := sc.ns.Local(key); ok {
		return sym, true
	}

	// Prefixed wildcard imports are keyed under "prefix::name" (see
	// NewScope), so a qualified reference resolves through the same
	// imports table as an unqualified one.
	if sym, ok := sc.imports[key]; ok {
		return sym, true
	}

	return Symbol{}, false
}
