package neogql

import (
	"errors"
	"fmt"
)

// ForbiddenMessage is the message embedded in generated
// apoc.util.validate calls. Execution adapters match it in database
// errors to surface a ForbiddenError after a server-side denial.
const ForbiddenMessage = "neogql/auth: forbidden"

// Standard sentinel errors for common failure classes.
var (
	// ErrForbidden is returned when an authorization rule denies an operation.
	ErrForbidden = errors.New("neogql: forbidden")

	// ErrMaxDepth is returned when a selection or mutation input nests
	// deeper than the configured traversal depth.
	ErrMaxDepth = errors.New("neogql: max traversal depth exceeded")
)

// SchemaError reports malformed directive usage, an unresolvable
// relationship target or conflicting field directives. It is raised at
// schema-build time and is fatal to schema construction.
type SchemaError struct {
	Type  string // Type on which the error occurred
	Field string // Field name, empty for type-level errors
	msg   string
}

// Error returns the error string.
func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("neogql: schema: %s.%s: %s", e.Type, e.Field, e.msg)
	}
	return fmt.Sprintf("neogql: schema: %s: %s", e.Type, e.msg)
}

// NewSchemaError returns a new SchemaError for the given type and field.
// Pass an empty field name for type-level errors.
func NewSchemaError(typ, field, format string, a ...any) *SchemaError {
	return &SchemaError{Type: typ, Field: field, msg: fmt.Sprintf(format, a...)}
}

// IsSchemaError returns true if the error is a SchemaError.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	var e *SchemaError
	return errors.As(err, &e)
}

// ForbiddenError reports that an authorization rule denied the operation:
// either no rule matched, or a bind predicate mismatched after a write.
// When raised inside a transaction it must trigger a full rollback.
type ForbiddenError struct {
	Type string // Type the operation targeted
	Op   Op     // Operation that was denied
	Rule string // Optional description of the denying rule
}

// Error returns the error string.
func (e *ForbiddenError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("neogql: forbidden: %s on %s (rule: %s)", e.Op, e.Type, e.Rule)
	}
	return fmt.Sprintf("neogql: forbidden: %s on %s", e.Op, e.Type)
}

// Is reports whether the target error matches ForbiddenError.
// This allows errors.Is(err, ErrForbidden) to return true.
func (e *ForbiddenError) Is(err error) bool {
	return err == ErrForbidden
}

// NewForbiddenError returns a new ForbiddenError.
func NewForbiddenError(typ string, op Op, rule string) *ForbiddenError {
	return &ForbiddenError{Type: typ, Op: op, Rule: rule}
}

// IsForbidden returns true if the error is a ForbiddenError.
func IsForbidden(err error) bool {
	if err == nil {
		return false
	}
	var e *ForbiddenError
	return errors.As(err, &e) || errors.Is(err, ErrForbidden)
}

// ValidationError reports an argument or input value that does not match
// the schema model. It is raised before any database interaction.
type ValidationError struct {
	Name string // Field or argument name
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("neogql: invalid value for %q: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given field.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// NewValidationErrorf returns a new ValidationError with a formatted message.
func NewValidationErrorf(name, format string, a ...any) *ValidationError {
	return &ValidationError{Name: name, Err: fmt.Errorf(format, a...)}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// UnsupportedCypherShapeError reports a @cypher statement whose return
// shape cannot be represented as a single value per invocation, e.g. a
// statement returning two independent columns. The operation is rejected
// at compile time, before execution.
type UnsupportedCypherShapeError struct {
	Type      string // Owning type, empty for root operation fields
	Field     string // Field carrying the @cypher directive
	Statement string // Offending statement
	Reason    string // Optional explanation of the rejected shape
}

// Error returns the error string.
func (e *UnsupportedCypherShapeError) Error() string {
	name := e.Field
	if e.Type != "" {
		name = e.Type + "." + e.Field
	}
	if e.Reason != "" {
		return fmt.Sprintf("neogql: @cypher on %s: %s", name, e.Reason)
	}
	return fmt.Sprintf("neogql: @cypher on %s must return a single value per row", name)
}

// NewUnsupportedCypherShapeError returns a new UnsupportedCypherShapeError.
func NewUnsupportedCypherShapeError(typ, field, statement string) *UnsupportedCypherShapeError {
	return &UnsupportedCypherShapeError{Type: typ, Field: field, Statement: statement}
}

// IsUnsupportedCypherShape returns true if the error is an UnsupportedCypherShapeError.
func IsUnsupportedCypherShape(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedCypherShapeError
	return errors.As(err, &e)
}
