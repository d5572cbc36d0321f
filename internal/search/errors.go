package search

import "fmt"

// Kind classifies a search-core error per the error taxonomy: every
// condition below CapacityError is logged and surfaced only at utterance
// boundaries, never by panicking out of frame().
type Kind int

const (
	// ConfigError: unknown option, out-of-range numeric, missing required
	// model file. Surfaced at init; fatal.
	ConfigError Kind = iota
	// LexiconError: word referenced by the LM but absent from the
	// dictionary, a duplicate alt-pron base, or an unknown phone in a
	// pronunciation. Logged per occurrence; the offending word is elided
	// from the tree. Init still succeeds if <s> and </s> resolve.
	LexiconError
	// CapacityError: BPT overflow or score-stack overflow. Logged once
	// per utterance; search continues with partial recall.
	CapacityError
	// ShortUtterance: fewer than 10 frames were presented to Finish.
	ShortUtterance
	// NoTerminalState: no </s> exit was reached; Finish synthesized one.
	NoTerminalState
	// RenormalizationConflict: bestpath was requested after fwdtree
	// renormalized; bestpath is skipped.
	RenormalizationConflict
	// Abort: the caller requested AbortUtt; no result is available.
	Abort
	// BadTransition: a transition matrix referenced by a phone is
	// undefined. This is an implementation bug, not a runtime condition,
	// and is never expected to surface outside of tests.
	BadTransition
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "ConfigError"
	case LexiconError:
		return "LexiconError"
	case CapacityError:
		return "CapacityError"
	case ShortUtterance:
		return "ShortUtterance"
	case NoTerminalState:
		return "NoTerminalState"
	case RenormalizationConflict:
		return "RenormalizationConflict"
	case Abort:
		return "Abort"
	case BadTransition:
		return "BadTransition"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with a human-readable message. Most Kinds are
// informational: Finish and RescoreBestPath return them as warnings or
// refusals without failing the search; ConfigError and BadTransition are
// the two that callers should treat as fatal.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newError(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// WrapConfigError wraps an external error (e.g. a YAML parse failure) as
// a ConfigError, for loaders outside this package.
func WrapConfigError(err error) *Error {
	return &Error{Kind: ConfigError, Msg: err.Error()}
}

// IsKind reports whether err is a *Error of the given Kind.
func IsKind(err error, k Kind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == k
}
