// Package domain implements the domain model (C5): the symbolic clock/reset
// contexts a streamlet's ports are declared over, and the positional/named
// binding of a child streamlet's domains to its parent's at instantiation.
package domain

import "github.com/matthijsr/til-vhdl/report"

// Default is the implicit domain name every streamlet has when it declares
// no domain list of its own (§4.5).
const Default = "default"

// List is an ordered, name-unique list of domain names declared by a
// streamlet (§4.5). A streamlet with no explicit list behaves as if it
// declared a single domain named Default.
type List []string

// NewList validates that names is free of duplicates. An empty names yields
// List{Default}.
func NewList(names []string, span *report.TextSpan) (List, error) {
	if len(names) == 0 {
		return List{Default}, nil
	}

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, report.NewError(report.DomainUnassigned, span, "duplicate domain name %q", n)
		}
		seen[n] = true
	}

	cp := make(List, len(names))
	copy(cp, names)
	return cp, nil
}

func (l List) index(name string) int {
	for i, n := range l {
		if n == name {
			return i
		}
	}
	return -1
}

// Binding is one domain-argument assignment: a child domain name bound to a
// parent-scope domain expression, which (per §4.5) is always itself another
// domain name.
type Binding struct {
	Child  string
	Parent string
}

// Bind resolves child's declared domain List against the supplied bindings,
// per §4.5: positional bindings are assigned in order, named bindings
// (Child set explicitly) may follow, but a positional binding after a named
// one is a DomainReorder error. An unassigned child domain inherits the
// parent's implicit Default domain only when child itself declared no
// explicit domain list (bare is true); otherwise a missing binding is a
// hard error.
func Bind(child List, bare bool, supplied []Binding, span *report.TextSpan) (map[string]string, error) {
	result := make(map[string]string, len(child))
	namedSeen := false
	pos := 0

	for _, b := range supplied {
		if b.Child == "" {
			if namedSeen {
				return nil, report.NewError(report.DomainReorder, span, "positional domain binding follows a named one")
			}
			if pos >= len(child) {
				return nil, report.NewError(report.DomainUnassigned, span, "too many positional domain bindings: streamlet declares %d domains", len(child))
			}
			result[child[pos]] = b.Parent
			pos++
		} else {
			namedSeen = true
			if child.index(b.Child) < 0 {
				return nil, report.NewError(report.DomainUnassigned, span, "unknown domain %q", b.Child)
			}
			if _, ok := result[b.Child]; ok {
				return nil, report.NewError(report.DomainUnassigned, span, "duplicate binding for domain %q", b.Child)
			}
			result[b.Child] = b.Parent
		}
	}

	for _, name := range child {
		if _, ok := result[name]; ok {
			continue
		}
		if bare {
			result[name] = Default
			continue
		}
		return nil, report.NewError(report.DomainUnassigned, span, "domain %q has no binding and no default to inherit", name)
	}

	return result, nil
}

// Compatible reports whether two bound domain expressions are
// domain-compatible: they name the same parent domain (§4.5).
func Compatible(a, b string) bool {
	return a == b
}
