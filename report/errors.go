package report

// Kind enumerates the error kinds named in the specification's error
// handling design.  Every diagnostic produced by the core carries exactly
// one of these.
type Kind int

const (
	// Front-end kinds, so a front-end collaborator can report through the
	// same Sink. compile also reports LexicalForm for a malformed literal or
	// unknown operator it finds in a parse tree, and cmd.Run for a source
	// file the frontend failed to parse.
	LexicalForm Kind = iota

	// C8 name resolution.
	NameUnresolved
	NameAmbiguous
	NameKindMismatch
	DeclarationRedefinition

	// C2 logical-type model.
	TypeInvariant

	// C4 generic/parameter model.
	ArgumentArity
	ArgumentKind
	ConstraintViolation
	DivisionByZero

	// C5 domain model (and C10 for DomainMismatch).
	DomainUnassigned
	DomainReorder
	DomainMismatch

	// C9 evaluator.
	CycleDetected

	// C10 connection validator.
	ConnectionDriveMultiplicity
	ConnectionDirection
	ConnectionTypeMismatch
	ConnectionDomainMismatch
	EndpointUnknown
)

func (k Kind) String() string {
	switch k {
	case LexicalForm:
		return "LexicalForm"
	case NameUnresolved:
		return "NameUnresolved"
	case NameAmbiguous:
		return "NameAmbiguous"
	case NameKindMismatch:
		return "NameKindMismatch"
	case DeclarationRedefinition:
		return "DeclarationRedefinition"
	case TypeInvariant:
		return "TypeInvariant"
	case ArgumentArity:
		return "ArgumentArity"
	case ArgumentKind:
		return "ArgumentKind"
	case ConstraintViolation:
		return "ConstraintViolation"
	case DivisionByZero:
		return "DivisionByZero"
	case DomainUnassigned:
		return "DomainUnassigned"
	case DomainReorder:
		return "DomainReorder"
	case DomainMismatch:
		return "DomainMismatch"
	case CycleDetected:
		return "CycleDetected"
	case ConnectionDriveMultiplicity:
		return "ConnectionDriveMultiplicity"
	case ConnectionDirection:
		return "ConnectionDirection"
	case ConnectionTypeMismatch:
		return "ConnectionTypeMismatch"
	case ConnectionDomainMismatch:
		return "ConnectionDomainMismatch"
	case EndpointUnknown:
		return "EndpointUnknown"
	default:
		return "Unknown"
	}
}

// Severity distinguishes diagnostics that abort a declaration from those
// that are purely informative, e.g. import-shadowing notices (§4.8).
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is a single accumulated error or warning record.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Span     *TextSpan
	Message  string

	// Chain carries the cycle path for CycleDetected diagnostics as
	// eval.MemoKey strings, e.g.
	// ["a|type|foo|()|", "a|type|bar|()|", "a|type|foo|()|"].
	Chain []string
}

// EvalError is the error type returned by evaluator (C9) operations.  It
// wraps a single Diagnostic so evaluator code can both return an error value
// (idiomatic Go control flow) and have that same value recorded to a Sink.
type EvalError struct {
	Diagnostic
}

func (e *EvalError) Error() string {
	if e.Span != nil {
		return e.Span.String() + ": " + e.Kind.String() + ": " + e.Message
	}

	return e.Kind.String() + ": " + e.Message
}

// NewError constructs an EvalError for the given kind/span/message.
func NewError(kind Kind, span *TextSpan, format string, args ...interface{}) *EvalError {
	return &EvalError{Diagnostic{
		Kind:     kind,
		Severity: SeverityError,
		Span:     span,
		Message:  sprintf(format, args...),
	}}
}

// NewCycleError constructs the CycleDetected error naming the cycle chain.
func NewCycleError(span *TextSpan, chain []string) *EvalError {
	return &EvalError{Diagnostic{
		Kind:     CycleDetected,
		Severity: SeverityError,
		Span:     span,
		Message:  "cyclic reference detected: " + joinChain(chain),
		Chain:    chain,
	}}
}
