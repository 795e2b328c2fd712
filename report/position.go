package report

import "fmt"

// TextSpan represents a range of source text.  Spans are inclusive on both
// ends and their line/column numbers are zero-indexed, matching the
// convention used for positions threaded from the (external) front-end parse
// tree through evaluation.
type TextSpan struct {
	FilePath string

	StartLine, StartCol int
	EndLine, EndCol      int
}

// NewSpanOver returns a new span that covers both of the given spans.
func NewSpanOver(start, end *TextSpan) *TextSpan {
	if start == nil {
		return end
	}

	if end == nil {
		return start
	}

	return &TextSpan{
		FilePath:  start.FilePath,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

func (ts *TextSpan) String() string {
	if ts == nil {
		return "<unknown location>"
	}

	return fmt.Sprintf("%s:%d:%d", ts.FilePath, ts.StartLine+1, ts.StartCol+1)
}
