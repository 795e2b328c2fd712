// Package physical implements physical-signal computation (C3): given a
// fully-concrete logical Stream, it discovers every "split point" -- each
// Stream node in the type, including streams nested inside another stream's
// data or user type -- and computes the physical handshake-signal widths for
// it.
package physical

import (
	"math"

	"github.com/matthijsr/til-vhdl/ir"
	"github.com/matthijsr/til-vhdl/logical"
	"github.com/matthijsr/til-vhdl/report"
)

// PhysicalStream is the computed signal-width record for one split point
// (§4.3, §6.3).
type PhysicalStream struct {
	// Path identifies the split point's position in the originating logical
	// type, e.g. "" for the outermost stream and ".data.inner" for one
	// reached through a Group field named "inner".
	Path string

	ElementLanes int
	Data         int
	Last         int
	Stai         int
	Endi         int
	Strb         int
	User         int
	Direction    logical.Direction
}

// Of computes the physical view of every split point reachable from the
// Stream interned at id (§4.3). The first result is always the split point
// for id itself.
func Of(s *ir.Store, id logical.Id, span *report.TextSpan) ([]PhysicalStream, error) {
	c := &collector{store: s, span: span}
	if err := c.visitStream(id, "", logical.Forward); err != nil {
		return nil, err
	}
	return c.out, nil
}

type collector struct {
	store *ir.Store
	span  *report.TextSpan
	out   []PhysicalStream
}

func (c *collector) visitStream(id logical.Id, path string, parentDir logical.Direction) error {
	t, ok := logical.Lookup(c.store, id)
	if !ok {
		return report.NewError(report.TypeInvariant, c.span, "physical: dangling logical type id")
	}

	st, ok := t.(logical.Stream)
	if !ok {
		return report.NewError(report.TypeInvariant, c.span, "physical: expected Stream at %q", path)
	}

	dir := parentDir
	if st.Direction == logical.Reverse {
		dir = dir.Flip()
	}

	lanes := elementLanes(st.Throughput.Float64())

	// Reserve this split point's slot before visiting nested streams, so it
	// precedes every split point found inside it.
	idx := len(c.out)
	c.out = append(c.out, PhysicalStream{})

	dataWidth, err := c.leafWidth(st.Data, path+".data", dir)
	if err != nil {
		return err
	}

	userWidth, err := c.leafWidth(st.User, path+".user", dir)
	if err != nil {
		return err
	}

	major := st.Complexity.Major()
	hasDims := st.Dimensionality >= 1

	last := 0
	if hasDims {
		last = int(math.Ceil(math.Log2(float64(st.Dimensionality) + 1)))
		if major >= 8 {
			last *= lanes
		}
	}

	stai := 0
	if major >= 6 && lanes > 1 {
		stai = log2Ceil(lanes)
	}

	endi := 0
	if (major >= 5 || hasDims) && lanes > 1 {
		endi = log2Ceil(lanes)
	}

	strb := 0
	if major >= 7 || hasDims || st.Keep {
		strb = lanes
	}

	c.out[idx] = PhysicalStream{
		Path:         path,
		ElementLanes: lanes,
		Data:         dataWidth * lanes,
		Last:         last,
		Stai:         stai,
		Endi:         endi,
		Strb:         strb,
		User:         userWidth,
		Direction:    dir,
	}

	return nil
}

// leafWidth sums the bit width of id's leaves, treating a nested Stream as
// a split point that is visited separately and contributes 0 bits here
// (§4.3 "reachable without crossing another Stream").
func (c *collector) leafWidth(id logical.Id, path string, dir logical.Direction) (int, error) {
	t, ok := logical.Lookup(c.store, id)
	if !ok {
		return 0, report.NewError(report.TypeInvariant, c.span, "physical: dangling logical type id at %q", path)
	}

	switch v := t.(type) {
	case logical.Null:
		return 0, nil

	case logical.Bits:
		return v.Width, nil

	case logical.Group:
		total := 0
		for _, f := range v.Fields {
			w, err := c.leafWidth(f.Type, path+"."+f.Name, dir)
			if err != nil {
				return 0, err
			}
			total += w
		}
		return total, nil

	case logical.Union:
		tagBits := log2Ceil(len(v.Variants))
		maxWidth := 0
		for _, variant := range v.Variants {
			w, err := c.leafWidth(variant.Type, path+"."+variant.Name, dir)
			if err != nil {
				return 0, err
			}
			if w > maxWidth {
				maxWidth = w
			}
		}
		return tagBits + maxWidth, nil

	case logical.Stream:
		if err := c.visitStream(id, path, dir); err != nil {
			return 0, err
		}
		return 0, nil

	default:
		return 0, report.NewError(report.TypeInvariant, c.span, "physical: unrecognized logical type at %q", path)
	}
}

// elementLanes rounds a throughput up to the next whole transfer count,
// with a floor of 1 lane (§4.3, §4.4).
func elementLanes(throughput float64) int {
	n := int(math.Ceil(throughput))
	if n < 1 {
		return 1
	}
	return n
}

// log2Ceil returns ceil(log2(n)) for n >= 1, and 0 for n <= 1.
func log2Ceil(n int) int {
	if n <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(n))))
}
