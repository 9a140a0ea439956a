package portfolio

import "fmt"

// ApplyErrorKind enumerates the Portfolio Engine's tagged error variants.
// Errors never partially mutate state: every Apply either commits the
// whole effect or none of it.
type ApplyErrorKind string

const (
	ErrDisabled            ApplyErrorKind = "Disabled"
	ErrBadQuantity         ApplyErrorKind = "BadQuantity"
	ErrUnknownSymbol       ApplyErrorKind = "UnknownSymbol"
	ErrOverleveraged       ApplyErrorKind = "Overleveraged"
	ErrInsufficientMargin  ApplyErrorKind = "InsufficientMargin"
	ErrMaxPositionsReached ApplyErrorKind = "MaxPositionsReached"
	ErrNoSuchPosition      ApplyErrorKind = "NoSuchPosition"
)

// ApplyError is the Portfolio Engine's typed error, carried verbatim
// into a failed Trade's message field by the Decision Applier.
type ApplyError struct {
	Kind   ApplyErrorKind
	Detail string
}

func (e *ApplyError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func applyErr(kind ApplyErrorKind, format string, args ...interface{}) *ApplyError {
	return &ApplyError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
