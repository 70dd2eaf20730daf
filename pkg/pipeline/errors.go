package pipeline

import "fmt"

// GraphError reports a pipeline definition that cannot be built into a
// graph: an unresolved or ambiguous field, or a dependency cycle. It is
// raised at construction time only, never during a run.
type GraphError struct {
	Pipeline string
	Stage    string
	Field    string
	Reason   string
}

func (e *GraphError) Error() string {
	msg := fmt.Sprintf("pipeline %s", e.Pipeline)
	if e.Stage != "" {
		msg += fmt.Sprintf(": stage %s", e.Stage)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": field %s", e.Field)
	}
	return msg + ": " + e.Reason
}

// BackendError reports a single failed stage invocation, attributed to
// the stage and, when known, the specific field. The executor absorbs
// these via fallback substitution; one only reaches the caller when a
// failed stage has no fallback and a downstream stage requires its value.
type BackendError struct {
	Stage string
	Field string
	Err   error
}

func (e *BackendError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("stage %s: field %s: %v", e.Stage, e.Field, e.Err)
	}
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
