package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// MsgAtLeastOneTerm is the aggregate problem reported for a route policy left without terms.
const MsgAtLeastOneTerm = "must have at least one term"

// InUseError reports a delete refused because rows still reference the target.
type InUseError struct {
	Kind     Kind     `json:"kind"`
	ID       uint     `json:"id"`
	Referrer Kind     `json:"referrer"`
	Columns  []string `json:"columns"`
	Count    int      `json:"count"`
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s %d is in use by %d %s row(s) via %s",
		e.Kind, e.ID, e.Count, e.Referrer, strings.Join(e.Columns, ","))
}

// Problem is one validation failure. Index is the position of the offending item in a
// batch, or -1 when the problem concerns the object as a whole.
type Problem struct {
	Index   int    `json:"index"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	var b strings.Builder
	if p.Index >= 0 {
		fmt.Fprintf(&b, "term %d: ", p.Index)
	}
	if p.Field != "" {
		b.WriteString(p.Field)
		b.WriteString(": ")
	}
	b.WriteString(p.Message)
	return b.String()
}

// ValidationError carries every problem found while validating a write.
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

// NewValidationError builds a ValidationError for object-level problems on the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Problems: []Problem{{Index: -1, Field: field, Message: fmt.Sprintf(format, args...)}}}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.String())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// AsValidation wraps problems into an error, or returns nil when there are none.
func AsValidation(problems []Problem) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
