package decision

import (
	"fmt"

	"nof0-core/pkg/llm"
)

// ParseError wraps an unparseable LLM response, per spec recorded as a
// failed Trade with message "parse error: …" and no portfolio mutation.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse error: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes one LLM response's content into an action batch using
// the schema-forced structured decoder the teacher already ships.
func Parse(content string) ([]Action, error) {
	var batch ActionBatch
	if err := llm.ParseStructured(content, &batch); err != nil {
		return nil, &ParseError{Err: err}
	}
	return batch.Actions, nil
}
