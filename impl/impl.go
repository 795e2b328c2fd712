// Package impl implements the implementation model (C7): a streamlet's
// behavior is either structural (subcomponent instances plus connections
// between them) or linked (a path to externally authored behavior).
package impl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matthijsr/til-vhdl/ir"
	"github.com/matthijsr/til-vhdl/report"
	"github.com/matthijsr/til-vhdl/streamlet"
)

const kind = "impl.Implementation"

// Id is an interned reference to an Implementation.
type Id = ir.Id[Implementation]

// Kind distinguishes a structural implementation from a linked one (§4.7,
// GLOSSARY).
type Kind int

const (
	Structural Kind = iota
	Linked
)

// Endpoint names one side of a Connection: either a parent-level port
// (Instance == "") or an instance's port (§4.7, §4.10).
type Endpoint struct {
	Instance string
	Port     string
}

func (e Endpoint) String() string {
	if e.Instance == "" {
		return e.Port
	}
	return e.Instance + "." + e.Port
}

// Instance binds an instance name to a fully-applied streamlet: its
// generics and domains must already be resolved at the instance site using
// the enclosing streamlet's own parameters (§4.7).
type Instance struct {
	Name        string
	Streamlet   streamlet.Id
	DomainBinds map[string]string
	Span        *report.TextSpan
}

// Connection is one `x -- y` link between two endpoints (§4.7, §6.1).
type Connection struct {
	A, B Endpoint
	Span *report.TextSpan
}

// Implementation is either a structural body (instances + connections) or
// a linked external path (§4.7).
type Implementation struct {
	StreamletKind Kind

	// Structural fields.
	Ports       []streamlet.Port // only set if this impl was declared outside a streamlet and needed its own port list
	Instances   []Instance
	Connections []Connection

	// Linked fields.
	Path string
}

func intern(s *ir.Store, key string, v Implementation) Id {
	return ir.Intern(s, kind, key, v)
}

// Lookup resolves an interned Implementation by Id.
func Lookup(s *ir.Store, id Id) (Implementation, bool) {
	return ir.Lookup[Implementation](s, kind, id)
}

// InternStructural validates instance-name uniqueness and interns a
// structural Implementation. ownPorts is non-nil only when the
// implementation was declared outside any streamlet and therefore must
// carry its own port list (§4.7); an inline implementation passes nil and
// inherits the enclosing streamlet's ports at connection-validation time.
func InternStructural(s *ir.Store, ownPorts []streamlet.Port, instances []Instance, connections []Connection, span *report.TextSpan) (Id, error) {
	seen := make(map[string]bool, len(instances))
	for _, inst := range instances {
		if seen[inst.Name] {
			return 0, report.NewError(report.DeclarationRedefinition, span, "duplicate instance name %q", inst.Name)
		}
		seen[inst.Name] = true
	}

	key := canonStructuralKey(ownPorts, instances, connections)
	return intern(s, key, Implementation{
		StreamletKind: Structural,
		Ports:         ownPorts,
		Instances:     instances,
		Connections:   connections,
	}), nil
}

// InternLinked interns a linked Implementation carrying only a path; path
// interpretation (relative-to-project-file vs relative-to-source-file) is
// delegated to the project loader, which must supply an already-resolved
// path here (§4.7, §6.4).
func InternLinked(s *ir.Store, path string, span *report.TextSpan) (Id, error) {
	if path == "" {
		return 0, report.NewError(report.TypeInvariant, span, "linked implementation path cannot be empty")
	}

	return intern(s, "linked:"+path, Implementation{
		StreamletKind: Linked,
		Path:          path,
	}), nil
}

// canonDomainBinds serializes an instance's resolved domain bindings
// (child domain name -> parent domain name) in a deterministic order so
// that two instances differing only in which parent domain a child domain
// is bound to never collide onto the same canonical key (§3.1, §4.1).
func canonDomainBinds(binds map[string]string) string {
	names := make([]string, 0, len(binds))
	for child := range binds {
		names = append(names, child)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, child := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s:%s", child, binds[child])
	}
	return sb.String()
}

func canonStructuralKey(ports []streamlet.Port, instances []Instance, connections []Connection) string {
	var sb strings.Builder
	sb.WriteString("structural|ports:")
	for i, p := range ports {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s:%d:%d", p.Name, p.Direction, p.Stream)
	}
	sb.WriteString("|instances:")
	for i, inst := range instances {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%d[%s]", inst.Name, inst.Streamlet, canonDomainBinds(inst.DomainBinds))
	}
	sb.WriteString("|connections:")
	for i, c := range connections {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s--%s", c.A, c.B)
	}
	return sb.String()
}

