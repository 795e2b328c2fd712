package physical

import (
	"testing"

	"github.com/matthijsr/til-vhdl/ir"
	"github.com/matthijsr/til-vhdl/logical"
)

func mustBits(t *testing.T, s *ir.Store, n int) logical.Id {
	t.Helper()
	id, err := logical.InternBits(s, n, nil)
	if err != nil {
		t.Fatalf("InternBits(%d): %v", n, err)
	}
	return id
}

func TestTrivialStreamWidth(t *testing.T) {
	s := ir.NewStore()
	nullID := logical.InternNull(s)
	bits8 := mustBits(t, s, 8)

	opts := logical.NewStreamOpts(nullID)
	opts.Complexity = logical.ComplexityVersion{4}

	streamID, err := logical.InternStream(s, bits8, opts, nil)
	if err != nil {
		t.Fatalf("InternStream: %v", err)
	}

	views, err := Of(s, streamID, nil)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected one split point, got %d", len(views))
	}

	v := views[0]
	if v.Data != 8 {
		t.Fatalf("expected data width 8, got %d", v.Data)
	}
	if v.Last != 0 || v.Stai != 0 || v.Endi != 0 || v.Strb != 0 {
		t.Fatalf("expected no last/stai/endi/strb, got %+v", v)
	}
}

func TestGroupedDataWithThroughput(t *testing.T) {
	s := ir.NewStore()
	nullID := logical.InternNull(s)
	bits8 := mustBits(t, s, 8)

	groupID, err := logical.InternGroup(s, []logical.Field{
		{Name: "r", Type: bits8},
		{Name: "g", Type: bits8},
		{Name: "b", Type: bits8},
	}, nil)
	if err != nil {
		t.Fatalf("InternGroup: %v", err)
	}

	throughput, err := logical.NewPositiveRational(2, 1, nil)
	if err != nil {
		t.Fatalf("NewPositiveRational: %v", err)
	}

	opts := logical.NewStreamOpts(nullID)
	opts.Complexity = logical.ComplexityVersion{4}
	opts.Throughput = throughput

	streamID, err := logical.InternStream(s, groupID, opts, nil)
	if err != nil {
		t.Fatalf("InternStream: %v", err)
	}

	views, err := Of(s, streamID, nil)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}

	v := views[0]
	if v.Data != 48 {
		t.Fatalf("expected data width 48 (2 lanes x 24 bits), got %d", v.Data)
	}
	if v.Last != 0 {
		t.Fatalf("expected no last, got %d", v.Last)
	}
	if v.Strb != 0 {
		t.Fatalf("expected no strb, got %d", v.Strb)
	}
}

func TestNestedStreamSplitsOut(t *testing.T) {
	s := ir.NewStore()
	nullID := logical.InternNull(s)
	bits8 := mustBits(t, s, 8)

	innerOpts := logical.NewStreamOpts(nullID)
	innerOpts.Direction = logical.Reverse
	innerID, err := logical.InternStream(s, bits8, innerOpts, nil)
	if err != nil {
		t.Fatalf("InternStream(inner): %v", err)
	}

	groupID, err := logical.InternGroup(s, []logical.Field{
		{Name: "payload", Type: bits8},
		{Name: "ack", Type: innerID},
	}, nil)
	if err != nil {
		t.Fatalf("InternGroup: %v", err)
	}

	outerOpts := logical.NewStreamOpts(nullID)
	outerID, err := logical.InternStream(s, groupID, outerOpts, nil)
	if err != nil {
		t.Fatalf("InternStream(outer): %v", err)
	}

	views, err := Of(s, outerID, nil)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}

	if len(views) != 2 {
		t.Fatalf("expected outer + nested split points, got %d", len(views))
	}

	if views[0].Data != 8 {
		t.Fatalf("expected outer data width 8 (nested stream contributes 0), got %d", views[0].Data)
	}
	if views[0].Direction != logical.Forward {
		t.Fatalf("expected outer direction Forward, got %v", views[0].Direction)
	}
	if views[1].Direction != logical.Reverse {
		t.Fatalf("expected nested stream direction flipped to Reverse, got %v", views[1].Direction)
	}
}

func TestUnionTagBits(t *testing.T) {
	s := ir.NewStore()
	nullID := logical.InternNull(s)
	bits8 := mustBits(t, s, 8)
	bits16 := mustBits(t, s, 16)

	unionID, err := logical.InternUnion(s, []logical.Variant{
		{Name: "small", Type: bits8},
		{Name: "large", Type: bits16},
		{Name: "none", Type: nullID},
	}, nil)
	if err != nil {
		t.Fatalf("InternUnion: %v", err)
	}

	opts := logical.NewStreamOpts(nullID)
	streamID, err := logical.InternStream(s, unionID, opts, nil)
	if err != nil {
		t.Fatalf("InternStream: %v", err)
	}

	views, err := Of(s, streamID, nil)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}

	// 3 variants -> ceil(log2(3)) = 2 tag bits + max(8,16,0) = 16 -> 18.
	if views[0].Data != 18 {
		t.Fatalf("expected union data width 18, got %d", views[0].Data)
	}
}

func TestKeepForcesStrbRegardlessOfComplexity(t *testing.T) {
	s := ir.NewStore()
	nullID := logical.InternNull(s)
	bits8 := mustBits(t, s, 8)

	opts := logical.NewStreamOpts(nullID)
	opts.Complexity = logical.ComplexityVersion{4}
	opts.Keep = true

	streamID, err := logical.InternStream(s, bits8, opts, nil)
	if err != nil {
		t.Fatalf("InternStream: %v", err)
	}

	views, err := Of(s, streamID, nil)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}

	v := views[0]
	if v.Strb == 0 {
		t.Fatalf("expected keep=true to force a strb vector even below complexity level 7 and with no dimensionality, got %+v", v)
	}
	if v.Strb != v.ElementLanes {
		t.Fatalf("expected strb width to equal element lane count %d, got %d", v.ElementLanes, v.Strb)
	}
}
