package format

import (
	"encoding/json"
	"fmt"
	"io"

	"bibedit-cli/internal/model"
)

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - mrk, for records only
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "mrk":
		switch rec := v.(type) {
		case model.Record:
			return WriteMRK(w, rec)
		case *model.Record:
			return WriteMRK(w, *rec)
		default:
			return fmt.Errorf("mrk output needs a record, got %T", v)
		}
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}
