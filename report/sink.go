package report

import "sync"

// LogLevel controls how much of a Sink's accumulated diagnostics Display
// prints.  Mirrors the teacher's log-level enumeration.
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelVerbose
)

// Sink accumulates diagnostics for a single compilation.  Per §7, a bad
// declaration does not abort the whole project: operations record a
// diagnostic on the Sink and continue with the next declaration. The Sink is
// owned by the compilation context (§5, "single compilation context") and is
// safe to share across concurrent readers if a caller wraps evaluation in its
// own goroutines; this core itself is single-threaded (§5).
type Sink struct {
	mu       sync.Mutex
	logLevel LogLevel
	diags    []Diagnostic

	// failed records the declaration keys passed to MarkFailed, for Failed
	// to report. Evaluation does not consult it: a dependent of a failed
	// declaration fails with the original error again, and no separate
	// "derived from failed declaration" marker is produced.
	failed map[string]bool
}

// NewSink creates a new diagnostic sink at the given log level.
func NewSink(level LogLevel) *Sink {
	return &Sink{
		logLevel: level,
		failed:   make(map[string]bool),
	}
}

// Report records a diagnostic.  Safe for concurrent use.
func (s *Sink) Report(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diags = append(s.diags, d)
}

// ReportErr records the diagnostic wrapped by an EvalError, or is a no-op if
// err is nil. Returns err unchanged so it can be used inline:
//
//	return sink.ReportErr(eval(...))
func (s *Sink) ReportErr(err error) error {
	if err == nil {
		return nil
	}

	if ee, ok := err.(*EvalError); ok {
		s.Report(ee.Diagnostic)
	} else {
		s.Report(Diagnostic{Kind: NameUnresolved, Severity: SeverityError, Message: err.Error()})
	}

	return err
}

// MarkFailed records that the given declaration key failed to evaluate;
// Failed reports it back.
func (s *Sink) MarkFailed(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed[key] = true
}

// Failed reports whether the given declaration key previously failed.
func (s *Sink) Failed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.failed[key]
}

// AnyErrors reports whether any error-severity diagnostic has been recorded.
func (s *Sink) AnyErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.diags {
		if d.Severity == SeverityError {
			return true
		}
	}

	return false
}

// Diagnostics returns a copy of all accumulated diagnostics in report order.
func (s *Sink) Diagnostics() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	return out
}
