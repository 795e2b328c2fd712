// Package validate implements the connection validator (C10): for a
// structural implementation, it builds the endpoint set from the parent's
// own ports and every instance's ports, then checks each connection for
// direction polarity, exact stream-type equality, and domain compatibility,
// finally requiring every endpoint to be driven exactly once.
package validate

import (
	"sort"

	"github.com/matthijsr/til-vhdl/domain"
	"github.com/matthijsr/til-vhdl/impl"
	"github.com/matthijsr/til-vhdl/ir"
	"github.com/matthijsr/til-vhdl/report"
	"github.com/matthijsr/til-vhdl/streamlet"
)

// instanceLookup resolves an instance's streamlet declaration by name, so
// endpoint resolution can see its ports without importing the evaluator
// (instances are expected to already be fully applied per §4.7).
type instanceLookup func(name string) (streamlet.Streamlet, bool)

// role is an endpoint's inside-the-body polarity (§4.10): a parent `in`
// port is a source inside the implementation, a parent `out` port a sink;
// instance ports invert this.
type role int

const (
	roleSource role = iota
	roleSink
)

type resolvedEndpoint struct {
	endpoint impl.Endpoint
	port     streamlet.Port
	role     role
	domain   string
}

func resolveEndpoint(e impl.Endpoint, parentPorts []streamlet.Port, instances instanceLookup, domainBinds map[string]map[string]string) (resolvedEndpoint, error) {
	if e.Instance == "" {
		for _, p := range parentPorts {
			if p.Name == e.Port {
				r := roleSink
				if p.Direction == logicalForward {
					r = roleSource
				}
				return resolvedEndpoint{endpoint: e, port: p, role: r, domain: p.Domain}, nil
			}
		}
		return resolvedEndpoint{}, report.NewError(report.EndpointUnknown, nil, "unknown parent endpoint %q", e.String())
	}

	inst, ok := instances(e.Instance)
	if !ok {
		return resolvedEndpoint{}, report.NewError(report.EndpointUnknown, nil, "unknown instance %q", e.Instance)
	}

	p, ok := streamlet.PortByName(inst, e.Port)
	if !ok {
		return resolvedEndpoint{}, report.NewError(report.EndpointUnknown, nil, "unknown instance endpoint %q", e.String())
	}

	r := roleSource
	if p.Direction == logicalForward {
		r = roleSink
	}

	boundDomain := p.Domain
	if binds, ok := domainBinds[e.Instance]; ok {
		if parent, ok := binds[p.Domain]; ok {
			boundDomain = parent
		}
	}

	return resolvedEndpoint{endpoint: e, port: p, role: r, domain: boundDomain}, nil
}

// logicalForward mirrors logical.Forward's zero value without importing
// package logical for a single constant; see streamlet.Port.Direction.
const logicalForward = 0

// Connection is one already-resolved, not-yet-validated connection pair
// together with its source span, for error reporting.
type Connection struct {
	A, B impl.Endpoint
	Span *report.TextSpan
}

// Structural validates every connection of a structural implementation body
// (§4.10) and returns nil only if every declared endpoint -- every parent
// port plus every port of every instance -- was driven exactly once.
func Structural(store *ir.Store, parentPorts []streamlet.Port, instances []impl.Instance, domainBinds map[string]map[string]string, connections []Connection) error {
	byName := make(map[string]streamlet.Streamlet, len(instances))
	for _, inst := range instances {
		st, ok := streamlet.Lookup(store, inst.Streamlet)
		if !ok {
			return report.NewError(report.EndpointUnknown, inst.Span, "instance %q refers to an unknown streamlet", inst.Name)
		}
		byName[inst.Name] = st
	}
	lookup := func(name string) (streamlet.Streamlet, bool) {
		st, ok := byName[name]
		return st, ok
	}

	driveCount := make(map[string]int)
	allEndpoints := make(map[string]bool)

	for _, p := range parentPorts {
		allEndpoints[(impl.Endpoint{Port: p.Name}).String()] = true
	}
	for _, inst := range instances {
		for _, p := range byName[inst.Name].Ports {
			allEndpoints[(impl.Endpoint{Instance: inst.Name, Port: p.Name}).String()] = true
		}
	}

	for _, conn := range connections {
		ra, err := resolveEndpoint(conn.A, parentPorts, lookup, domainBinds)
		if err != nil {
			return err
		}
		rb, err := resolveEndpoint(conn.B, parentPorts, lookup, domainBinds)
		if err != nil {
			return err
		}

		if ra.role == rb.role {
			return report.NewError(report.ConnectionDirection, conn.Span, "connection %s -- %s does not pair a source with a sink", conn.A, conn.B)
		}

		var src, sink resolvedEndpoint
		if ra.role == roleSource {
			src, sink = ra, rb
		} else {
			src, sink = rb, ra
		}

		if src.port.Stream != sink.port.Stream {
			return report.NewError(report.ConnectionTypeMismatch, conn.Span, "connection %s -- %s connects endpoints of different stream types", conn.A, conn.B)
		}

		if !domain.Compatible(src.domain, sink.domain) {
			return report.NewError(report.ConnectionDomainMismatch, conn.Span, "connection %s -- %s binds incompatible domains %q and %q", conn.A, conn.B, src.domain, sink.domain)
		}

		driveCount[conn.A.String()]++
		driveCount[conn.B.String()]++
		allEndpoints[conn.A.String()] = true
		allEndpoints[conn.B.String()] = true
	}

	var undriven, overdriven []string
	for ep := range allEndpoints {
		switch driveCount[ep] {
		case 1:
			// driven exactly once, as required
		case 0:
			undriven = append(undriven, ep)
		default:
			overdriven = append(overdriven, ep)
		}
	}

	if len(undriven) > 0 || len(overdriven) > 0 {
		sort.Strings(undriven)
		sort.Strings(overdriven)
		return report.NewError(report.ConnectionDriveMultiplicity, nil, "undriven endpoints: %v, over-driven endpoints: %v", undriven, overdriven)
	}

	return nil
}
