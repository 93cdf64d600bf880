package record

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed tag, indicator or subfield code text.
type ValidationError struct {
	Kind  string // tag|controlTag|indicator|subfieldCode|value
	Value string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Kind, e.Value)
}

// ProtectedFieldError reports a mutation that touches a protected reference.
type ProtectedFieldError struct {
	Ref string
}

func (e ProtectedFieldError) Error() string {
	return fmt.Sprintf("protected field: %s", e.Ref)
}

// NotFoundError reports a tag/field number pair missing from the record.
type NotFoundError struct {
	Tag         string
	FieldNumber int
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("field not found: %s #%d", e.Tag, e.FieldNumber)
}

// OutOfRangeError reports a subfield index outside [0, Len).
type OutOfRangeError struct {
	Tag         string
	FieldNumber int
	Index       int
	Len         int
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("subfield index %d out of range [0,%d) in %s #%d", e.Index, e.Len, e.Tag, e.FieldNumber)
}

// TypeMismatchError reports a control/data addressing mismatch.
type TypeMismatchError struct {
	Tag         string
	FieldNumber int
	Control     bool
}

func (e TypeMismatchError) Error() string {
	if e.Control {
		return fmt.Sprintf("%s #%d is a control field; it has no subfields", e.Tag, e.FieldNumber)
	}
	return fmt.Sprintf("%s #%d is a data field; a subfield index is required", e.Tag, e.FieldNumber)
}

// IsDesync reports whether err means the local record no longer matches what
// the caller believed it held (missing field or bad index).
func IsDesync(err error) bool {
	var nf NotFoundError
	var oor OutOfRangeError
	return errors.As(err, &nf) || errors.As(err, &oor)
}
