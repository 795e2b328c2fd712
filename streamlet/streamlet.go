// Package streamlet implements the streamlet & interface model (C6): a
// named, parametric port list, optionally carrying an implementation, with
// support for one streamlet adopting another's interface by reference.
package streamlet

import (
	"strconv"
	"strings"

	"github.com/matthijsr/til-vhdl/domain"
	"github.com/matthijsr/til-vhdl/ir"
	"github.com/matthijsr/til-vhdl/logical"
	"github.com/matthijsr/til-vhdl/param"
	"github.com/matthijsr/til-vhdl/report"
)

const kind = "streamlet.Streamlet"

// Id is an interned reference to a Streamlet.
type Id = ir.Id[Streamlet]

// Port is one named stream-typed member of a streamlet's interface.
type Port struct {
	Name      string
	Direction logical.Direction
	Stream    logical.Id
	Domain    string
	Doc       string
}

// Streamlet is a named port list (an interface), optionally parametric over
// generics and domains, optionally carrying an implementation (§4.6,
// GLOSSARY).
//
// IsInterface marks a streamlet declared with the `interface` keyword: it
// is semantically an ordinary streamlet whose Impl is always zero, but the
// emitter uses the flag to omit an empty body rather than emit an empty
// entity architecture.
//
// Adopted, when valid, names the Id of another Streamlet whose Generics and
// Ports were copied by value at declaration time rather than re-evaluated
// (§4.6). Adopt includes it in the canonical key, so it is part of the
// adopting streamlet's interning identity.
type Streamlet struct {
	Namespace   string
	Name        string
	Generics    []param.Parameter
	Domains     domain.List
	Ports       []Port
	IsInterface bool
	Impl        ImplRef
	Adopted     Id
}

// ImplRef is an opaque forward-reference to an implementation; the impl
// package defines the concrete Id type this wraps. It is declared here
// (rather than importing package impl) to avoid a cycle, since an
// Implementation in turn refers back to the Streamlet its instances
// instantiate.
type ImplRef uint32

// Valid reports whether the streamlet carries an implementation.
func (r ImplRef) Valid() bool { return r != 0 }

func intern(s *ir.Store, key string, v Streamlet) Id {
	return ir.Intern(s, kind, key, v)
}

// Lookup resolves an interned Streamlet by Id.
func Lookup(s *ir.Store, id Id) (Streamlet, bool) {
	return ir.Lookup[Streamlet](s, kind, id)
}

func canonKey(namespace, name string, generics []param.Parameter, domains domain.List, ports []Port, impl ImplRef) string {
	var sb strings.Builder
	sb.WriteString(namespace)
	sb.WriteByte('|')
	sb.WriteString(name)
	sb.WriteString("|g:")
	for i, g := range generics {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(g.Name)
	}
	sb.WriteString("|d:")
	sb.WriteString(strings.Join(domains, ","))
	sb.WriteString("|p:")
	for i, p := range ports {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.Name)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(int(p.Direction)))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(int(p.Stream)))
		sb.WriteByte(':')
		sb.WriteString(p.Domain)
	}
	sb.WriteString("|impl:")
	sb.WriteString(strconv.Itoa(int(impl)))
	return sb.String()
}

// Intern validates port-name uniqueness and interns a Streamlet declared
// with its own fresh port list (§4.2, §4.6).
func Intern(s *ir.Store, namespace, name string, generics []param.Parameter, domains domain.List, ports []Port, isInterface bool, impl ImplRef, span *report.TextSpan) (Id, error) {
	if err := validatePorts(ports, span); err != nil {
		return 0, err
	}

	key := canonKey(namespace, name, generics, domains, ports, impl)
	return intern(s, key, Streamlet{
		Namespace:   namespace,
		Name:        name,
		Generics:    generics,
		Domains:     domains,
		Ports:       ports,
		IsInterface: isInterface,
		Impl:        impl,
	}), nil
}

// Adopt interns a Streamlet named (namespace, name) that adopts adoptedFrom's
// generics and ports by Id, optionally attaching its own implementation
// (§4.6, "adopt another streamlet's interface by reference"). The adopted
// streamlet's generics and ports are copied, not re-evaluated.
func Adopt(s *ir.Store, namespace, name string, adoptedFrom Id, impl ImplRef, span *report.TextSpan) (Id, error) {
	src, ok := Lookup(s, adoptedFrom)
	if !ok {
		return 0, report.NewError(report.NameUnresolved, span, "cannot adopt unknown streamlet")
	}

	key := canonKey(namespace, name, src.Generics, src.Domains, src.Ports, impl) + "|adopts:" + strconv.Itoa(int(adoptedFrom))
	return intern(s, key, Streamlet{
		Namespace: namespace,
		Name:      name,
		Generics:  src.Generics,
		Domains:   src.Domains,
		Ports:     src.Ports,
		Impl:      impl,
		Adopted:   adoptedFrom,
	}), nil
}

func validatePorts(ports []Port, span *report.TextSpan) error {
	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		if seen[p.Name] {
			return report.NewError(report.DeclarationRedefinition, span, "duplicate port name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// MangleName returns the emitted entity name for st, per §6.3:
// "<namespace-underscored>__<streamlet-name>_com" where "::" becomes "__".
func MangleName(st Streamlet) string {
	ns := strings.ReplaceAll(st.Namespace, "::", "__")
	return ns + "__" + st.Name + "_com"
}

// EntityName is an alias for MangleName, named after the emitted VHDL
// entity it denotes (§6.3).
func EntityName(st Streamlet) string {
	return MangleName(st)
}

// PortByName looks up a port by name, for connection-validator use (C10).
func PortByName(st Streamlet, name string) (Port, bool) {
	for _, p := range st.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}
