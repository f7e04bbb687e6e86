package normalize

import "fmt"

// AdapterNotFoundError means no adapter is registered for the slug.
type AdapterNotFoundError struct {
	Slug string
}

func (e *AdapterNotFoundError) Error() string {
	return fmt.Sprintf("no adapter registered for vendor %q", e.Slug)
}

// InputValidationError means the raw payload was rejected by the adapter
// schema. FieldErrors maps payload paths to messages; batch entries are
// prefixed with their index ("0.catalogId").
type InputValidationError struct {
	Slug        string
	FieldErrors map[string][]string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("payload rejected by %s adapter schema: %d field(s)", e.Slug, len(e.FieldErrors))
}

// ExecutionError means the adapter failed (or panicked) while normalizing.
type ExecutionError struct {
	Slug  string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("adapter %s failed during normalize: %v", e.Slug, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// OutputValidationError means the adapter produced a malformed normalized
// product; this is an adapter logic bug, not a payload problem.
type OutputValidationError struct {
	Slug  string
	Cause error
}

func (e *OutputValidationError) Error() string {
	return fmt.Sprintf("adapter %s produced invalid output: %v", e.Slug, e.Cause)
}

func (e *OutputValidationError) Unwrap() error { return e.Cause }
