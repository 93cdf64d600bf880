package engine

import (
	"errors"
	"fmt"
)

// ErrNoRecord is returned by mutations while no record is loaded for editing.
var ErrNoRecord = errors.New("no record loaded")

// PartialInputError reports a batch of new subfield rows where some rows are
// empty or carry an invalid code. The caller may retry accepting only the
// valid rows.
type PartialInputError struct {
	Valid   int
	Invalid int
}

func (e PartialInputError) Error() string {
	return fmt.Sprintf("%d of %d rows are empty or invalid", e.Invalid, e.Valid+e.Invalid)
}
