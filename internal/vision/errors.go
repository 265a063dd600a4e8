package vision

import "fmt"

// StageError identifies which pipeline stage failed and why.
// The pipeline aborts on the first one; there is no retry.
type StageError struct {
	Stage int
	Name  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s) failed: %v", e.Stage, e.Name, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// SchemaError means the model returned valid JSON that does not match
// the expected shape. It is a typed failure, never a silent nil field.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation in %q: %s", e.Field, e.Reason)
}
