package compile

import (
	"errors"
	"testing"

	"github.com/matthijsr/til-vhdl/ast"
	"github.com/matthijsr/til-vhdl/logical"
	"github.com/matthijsr/til-vhdl/report"
	"github.com/matthijsr/til-vhdl/streamlet"
)

func bits(n string) ast.TypeExpr {
	return ast.BitsExpr{Width: ast.IntLit{Text: n}}
}

func newCompiler() (*Compiler, *report.Sink) {
	sink := report.NewSink(report.LogLevelSilent)
	return NewCompiler(sink), sink
}

func TestEvalTypeBits(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace:    "ns1",
		Declarations: []ast.Decl{ast.TypeDecl{Name: "Word", Type: bits("8")}},
	})

	id, err := c.EvalType("ns1", "Word", nil, nil)
	if err != nil {
		t.Fatalf("EvalType: %v", err)
	}

	ty, ok := logical.Lookup(c.Store, id)
	if !ok {
		t.Fatalf("expected interned type")
	}
	b, ok := ty.(logical.Bits)
	if !ok || b.Width != 8 {
		t.Fatalf("expected Bits(8), got %#v", ty)
	}
}

func TestEvalTypeReferencesLocalType(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.TypeDecl{Name: "Word", Type: bits("8")},
			ast.TypeDecl{Name: "Pair", Type: ast.GroupExpr{Fields: []ast.GroupField{
				{Name: "a", Type: ast.TypeRefExpr{Name: "Word"}},
				{Name: "b", Type: ast.TypeRefExpr{Name: "Word"}},
			}}},
		},
	})

	id, err := c.EvalType("ns1", "Pair", nil, nil)
	if err != nil {
		t.Fatalf("EvalType: %v", err)
	}

	ty, _ := logical.Lookup(c.Store, id)
	g, ok := ty.(logical.Group)
	if !ok || len(g.Fields) != 2 {
		t.Fatalf("expected 2-field group, got %#v", ty)
	}
	if g.Fields[0].Type != g.Fields[1].Type {
		t.Fatalf("expected both fields to share the same interned Word type")
	}
}

func TestEvalTypeStreamWithFractionalThroughput(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.TypeDecl{
				Name: "S",
				Type: ast.StreamExpr{
					Data:       bits("8"),
					Throughput: ast.DecimalLit{Text: "1/3"},
				},
			},
		},
	})

	id, err := c.EvalType("ns1", "S", nil, nil)
	if err != nil {
		t.Fatalf("EvalType: %v", err)
	}

	ty, _ := logical.Lookup(c.Store, id)
	st, ok := ty.(logical.Stream)
	if !ok {
		t.Fatalf("expected Stream, got %#v", ty)
	}

	if st.Throughput.String() != "1/3" {
		t.Fatalf("expected throughput 1/3, got %s", st.Throughput.String())
	}
}

func TestEvalTypeStreamWithDecimalThroughput(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.TypeDecl{
				Name: "S",
				Type: ast.StreamExpr{
					Data:       bits("8"),
					Throughput: ast.DecimalLit{Text: "2.0"},
				},
			},
		},
	})

	id, err := c.EvalType("ns1", "S", nil, nil)
	if err != nil {
		t.Fatalf("EvalType: %v", err)
	}

	ty, _ := logical.Lookup(c.Store, id)
	st, ok := ty.(logical.Stream)
	if !ok {
		t.Fatalf("expected Stream, got %#v", ty)
	}

	if st.Throughput.Float64() != 2.0 {
		t.Fatalf("expected throughput 2.0, got %v", st.Throughput.Float64())
	}
}

func TestEvalGenericTypeBinding(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.TypeDecl{
				Name:     "Vec",
				Generics: []ast.GenericParamDecl{{Name: "n", Kind: "natural", Default: ast.IntLit{Text: "1"}}},
				Type:     ast.BitsExpr{Width: ast.NameExpr{Name: "n"}},
			},
		},
	})

	id, err := c.EvalType("ns1", "Vec", []ast.Arg{{Value: ast.IntLit{Text: "4"}}}, nil)
	if err != nil {
		t.Fatalf("EvalType: %v", err)
	}

	ty, _ := logical.Lookup(c.Store, id)
	b, ok := ty.(logical.Bits)
	if !ok || b.Width != 4 {
		t.Fatalf("expected Bits(4), got %#v", ty)
	}
}

func TestEvalGenericTypeMemoizesByArgument(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.TypeDecl{
				Name:     "Vec",
				Generics: []ast.GenericParamDecl{{Name: "n", Kind: "natural", Default: ast.IntLit{Text: "1"}}},
				Type:     ast.BitsExpr{Width: ast.NameExpr{Name: "n"}},
			},
		},
	})

	id4a, err := c.EvalType("ns1", "Vec", []ast.Arg{{Value: ast.IntLit{Text: "4"}}}, nil)
	if err != nil {
		t.Fatalf("EvalType(4): %v", err)
	}
	id4b, err := c.EvalType("ns1", "Vec", []ast.Arg{{Value: ast.IntLit{Text: "4"}}}, nil)
	if err != nil {
		t.Fatalf("EvalType(4) again: %v", err)
	}
	if id4a != id4b {
		t.Fatalf("expected repeated application with the same argument to return the same Id")
	}

	id8, err := c.EvalType("ns1", "Vec", []ast.Arg{{Value: ast.IntLit{Text: "8"}}}, nil)
	if err != nil {
		t.Fatalf("EvalType(8): %v", err)
	}
	if id4a == id8 {
		t.Fatalf("expected distinct arguments to produce distinct types")
	}
}

func TestEvalTypeCycleDetected(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace:    "ns1",
		Declarations: []ast.Decl{ast.TypeDecl{Name: "A", Type: ast.TypeRefExpr{Name: "A"}}},
	})

	_, err := c.EvalType("ns1", "A", nil, nil)
	if err == nil {
		t.Fatalf("expected a cycle error")
	}

	var evalErr *report.EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected *report.EvalError, got %T", err)
	}
	if evalErr.Kind != report.CycleDetected {
		t.Fatalf("expected CycleDetected, got %v", evalErr.Kind)
	}
}

func TestEvalTypeImportedAcrossNamespaces(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace:    "a",
		Declarations: []ast.Decl{ast.TypeDecl{Name: "Word", Type: bits("8")}},
	})
	c.AddFile(&ast.File{
		Namespace: "b",
		Imports:   []ast.ImportDecl{{Source: "a", Name: "Word"}},
		Declarations: []ast.Decl{ast.TypeDecl{Name: "Pair", Type: ast.GroupExpr{Fields: []ast.GroupField{
			{Name: "a", Type: ast.TypeRefExpr{Name: "Word"}},
		}}}},
	})

	id, err := c.EvalType("b", "Pair", nil, nil)
	if err != nil {
		t.Fatalf("EvalType: %v", err)
	}

	ty, _ := logical.Lookup(c.Store, id)
	g, ok := ty.(logical.Group)
	if !ok || len(g.Fields) != 1 {
		t.Fatalf("expected 1-field group, got %#v", ty)
	}
}

func streamletDecl(name string, domains []string, ports []ast.PortDecl) ast.StreamletDecl {
	return ast.StreamletDecl{
		Name:    name,
		Domains: ast.DomainListDecl{Names: domains},
		Ports:   ports,
	}
}

func TestEvalStreamletWithDomainsAndPorts(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.TypeDecl{Name: "Word", Type: bits("8")},
			streamletDecl("Comp", []string{"clk"}, []ast.PortDecl{
				{Name: "x", Direction: "in", Type: ast.TypeRefExpr{Name: "Word"}, Domain: "clk"},
			}),
		},
	})

	id, err := c.EvalStreamlet("ns1", "Comp", nil, nil)
	if err != nil {
		t.Fatalf("EvalStreamlet: %v", err)
	}

	st, ok := streamlet.Lookup(c.Store, id)
	if !ok {
		t.Fatalf("expected interned streamlet")
	}
	if len(st.Ports) != 1 || st.Ports[0].Domain != "clk" {
		t.Fatalf("unexpected streamlet shape: %#v", st)
	}
}

func TestEvalImplStructuralWiring(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.TypeDecl{Name: "Word", Type: bits("8")},
			streamletDecl("Leaf", nil, []ast.PortDecl{
				{Name: "a", Direction: "in", Type: ast.TypeRefExpr{Name: "Word"}},
				{Name: "b", Direction: "out", Type: ast.TypeRefExpr{Name: "Word"}},
			}),
			ast.StreamletDecl{
				Name:    "Top",
				Domains: ast.DomainListDecl{},
				Ports: []ast.PortDecl{
					{Name: "p_in", Direction: "in", Type: ast.TypeRefExpr{Name: "Word"}},
					{Name: "p_out", Direction: "out", Type: ast.TypeRefExpr{Name: "Word"}},
				},
				Impl: &ast.ImplDecl{
					Instances: []ast.InstanceDecl{
						{Name: "inst1", Streamlet: ast.TypeRefExpr{Name: "Leaf"}},
					},
					Connections: []ast.ConnectionDecl{
						{A: ast.EndpointExpr{Port: "p_in"}, B: ast.EndpointExpr{Instance: "inst1", Port: "a"}},
						{A: ast.EndpointExpr{Instance: "inst1", Port: "b"}, B: ast.EndpointExpr{Port: "p_out"}},
					},
				},
			},
		},
	})

	id, err := c.EvalStreamlet("ns1", "Top", nil, nil)
	if err != nil {
		t.Fatalf("EvalStreamlet: %v", err)
	}

	st, _ := streamlet.Lookup(c.Store, id)
	if !st.Impl.Valid() {
		t.Fatalf("expected Top to carry an implementation")
	}
}

func TestEvalImplStructuralUndrivenEndpointIsError(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.TypeDecl{Name: "Word", Type: bits("8")},
			streamletDecl("Leaf", nil, []ast.PortDecl{
				{Name: "a", Direction: "in", Type: ast.TypeRefExpr{Name: "Word"}},
				{Name: "b", Direction: "out", Type: ast.TypeRefExpr{Name: "Word"}},
			}),
			ast.StreamletDecl{
				Name: "Top",
				Ports: []ast.PortDecl{
					{Name: "p_in", Direction: "in", Type: ast.TypeRefExpr{Name: "Word"}},
					{Name: "p_out", Direction: "out", Type: ast.TypeRefExpr{Name: "Word"}},
				},
				Impl: &ast.ImplDecl{
					Instances: []ast.InstanceDecl{
						{Name: "inst1", Streamlet: ast.TypeRefExpr{Name: "Leaf"}},
					},
					Connections: []ast.ConnectionDecl{
						{A: ast.EndpointExpr{Port: "p_in"}, B: ast.EndpointExpr{Instance: "inst1", Port: "a"}},
						// p_out/inst1.b left undriven
					},
				},
			},
		},
	})

	if _, err := c.EvalStreamlet("ns1", "Top", nil, nil); err == nil {
		t.Fatalf("expected undriven-endpoint error")
	}
}

func TestEvalImplInstanceArgReferencesEnclosingGeneric(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.StreamletDecl{
				Name:     "Inner",
				Generics: []ast.GenericParamDecl{{Name: "n", Kind: "natural"}},
				Ports: []ast.PortDecl{
					{Name: "a", Direction: "in", Type: ast.BitsExpr{Width: ast.NameExpr{Name: "n"}}},
					{Name: "b", Direction: "out", Type: ast.BitsExpr{Width: ast.NameExpr{Name: "n"}}},
				},
			},
			ast.StreamletDecl{
				Name:     "Top",
				Generics: []ast.GenericParamDecl{{Name: "n", Kind: "natural"}},
				Ports: []ast.PortDecl{
					{Name: "p_in", Direction: "in", Type: ast.BitsExpr{Width: ast.NameExpr{Name: "n"}}},
					{Name: "p_out", Direction: "out", Type: ast.BitsExpr{Width: ast.NameExpr{Name: "n"}}},
				},
				Impl: &ast.ImplDecl{
					Instances: []ast.InstanceDecl{
						{
							Name: "inst1",
							Streamlet: ast.TypeRefExpr{
								Name: "Inner",
								Args: []ast.Arg{{Value: ast.NameExpr{Name: "n"}}},
							},
						},
					},
					Connections: []ast.ConnectionDecl{
						{A: ast.EndpointExpr{Port: "p_in"}, B: ast.EndpointExpr{Instance: "inst1", Port: "a"}},
						{A: ast.EndpointExpr{Instance: "inst1", Port: "b"}, B: ast.EndpointExpr{Port: "p_out"}},
					},
				},
			},
		},
	})

	id, err := c.EvalStreamlet("ns1", "Top", []ast.Arg{{Value: ast.IntLit{Text: "4"}}}, nil)
	if err != nil {
		t.Fatalf("EvalStreamlet: %v", err)
	}

	st, ok := streamlet.Lookup(c.Store, id)
	if !ok {
		t.Fatalf("expected interned streamlet")
	}
	if !st.Impl.Valid() {
		t.Fatalf("expected Top to carry an implementation")
	}
}

func TestCompileAllAccumulatesAcrossFailures(t *testing.T) {
	c, sink := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.TypeDecl{Name: "Good", Type: bits("8")},
			ast.TypeDecl{Name: "Bad", Type: ast.TypeRefExpr{Name: "DoesNotExist"}},
		},
	})

	failures := c.CompileAll()
	if failures != 1 {
		t.Fatalf("expected exactly 1 failure, got %d", failures)
	}
	if !sink.Failed("ns1|type|Bad") {
		t.Fatalf("expected Bad to be marked failed")
	}
	if sink.Failed("ns1|type|Good") {
		t.Fatalf("did not expect Good to be marked failed")
	}
}

func TestAddFileRejectsConflictingImportsForReopenedNamespace(t *testing.T) {
	c, sink := newCompiler()
	c.AddFile(&ast.File{
		Namespace:    "a",
		Declarations: []ast.Decl{ast.TypeDecl{Name: "Word", Type: bits("8")}},
	})
	c.AddFile(&ast.File{
		Namespace:    "b",
		Imports:      []ast.ImportDecl{{Source: "a", Name: "Word"}},
		Declarations: []ast.Decl{ast.TypeDecl{Name: "First", Type: ast.TypeRefExpr{Name: "Word"}}},
	})
	c.AddFile(&ast.File{
		Namespace:    "b",
		Declarations: []ast.Decl{ast.TypeDecl{Name: "Second", Type: bits("4")}},
	})

	if len(sink.Diagnostics()) == 0 {
		t.Fatalf("expected a diagnostic for the conflicting reopen of namespace %q", "b")
	}
	if _, err := c.EvalType("b", "Second", nil, nil); err == nil {
		t.Fatalf("expected the second file's declarations to have been rejected, not registered")
	}
}

func TestEvalStreamletAdoptsValidatesAgainstAdoptedPorts(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.TypeDecl{Name: "Word", Type: bits("8")},
			streamletDecl("Iface", nil, []ast.PortDecl{
				{Name: "a", Direction: "in", Type: ast.TypeRefExpr{Name: "Word"}},
				{Name: "b", Direction: "out", Type: ast.TypeRefExpr{Name: "Word"}},
			}),
			streamletDecl("Leaf", nil, []ast.PortDecl{
				{Name: "a", Direction: "in", Type: ast.TypeRefExpr{Name: "Word"}},
				{Name: "b", Direction: "out", Type: ast.TypeRefExpr{Name: "Word"}},
			}),
			ast.StreamletDecl{
				Name:   "Adopter",
				Adopts: &ast.TypeRefExpr{Name: "Iface"},
				Impl: &ast.ImplDecl{
					Instances: []ast.InstanceDecl{
						{Name: "inst1", Streamlet: ast.TypeRefExpr{Name: "Leaf"}},
					},
					Connections: []ast.ConnectionDecl{
						{A: ast.EndpointExpr{Port: "a"}, B: ast.EndpointExpr{Instance: "inst1", Port: "a"}},
						{A: ast.EndpointExpr{Instance: "inst1", Port: "b"}, B: ast.EndpointExpr{Port: "b"}},
					},
				},
			},
		},
	})

	id, err := c.EvalStreamlet("ns1", "Adopter", nil, nil)
	if err != nil {
		t.Fatalf("EvalStreamlet: %v", err)
	}

	st, _ := streamlet.Lookup(c.Store, id)
	if !st.Impl.Valid() {
		t.Fatalf("expected Adopter to carry an implementation validated against Iface's ports")
	}
}

func TestEvalStreamletAdoptsRejectsConnectionToUnknownPort(t *testing.T) {
	c, _ := newCompiler()
	c.AddFile(&ast.File{
		Namespace: "ns1",
		Declarations: []ast.Decl{
			ast.TypeDecl{Name: "Word", Type: bits("8")},
			streamletDecl("Iface", nil, []ast.PortDecl{
				{Name: "a", Direction: "in", Type: ast.TypeRefExpr{Name: "Word"}},
			}),
			streamletDecl("Leaf", nil, []ast.PortDecl{
				{Name: "a", Direction: "in", Type: ast.TypeRefExpr{Name: "Word"}},
			}),
			ast.StreamletDecl{
				Name:   "Adopter",
				Adopts: &ast.TypeRefExpr{Name: "Iface"},
				Impl: &ast.ImplDecl{
					Instances: []ast.InstanceDecl{
						{Name: "inst1", Streamlet: ast.TypeRefExpr{Name: "Leaf"}},
					},
					Connections: []ast.ConnectionDecl{
						// "nonexistent" was never declared on Iface.
						{A: ast.EndpointExpr{Port: "nonexistent"}, B: ast.EndpointExpr{Instance: "inst1", Port: "a"}},
					},
				},
			},
		},
	})

	if _, err := c.EvalStreamlet("ns1", "Adopter", nil, nil); err == nil {
		t.Fatalf("expected an unknown-endpoint error for a connection naming a port Iface never declared")
	}
}
