// Package tagfmt turns raw references into display labels. It is presentation
// only; nothing in the editing path consults it.
package tagfmt

import "fmt"

type Format string

const (
	FormatMARC  Format = "marc"
	FormatHuman Format = "human"
)

// ParseFormat accepts "marc" or "human".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatMARC, FormatHuman:
		return Format(s), nil
	case "":
		return FormatMARC, nil
	default:
		return "", fmt.Errorf("unknown tag format %q (expected marc|human)", s)
	}
}

const wildcard = "%"

// Formatter looks labels up in a static dictionary keyed by exact or
// wildcarded reference ("245__", "24%", "%%%%%a").
type Formatter struct {
	Names  map[string]string
	Format Format
}

// Toggle flips between marc and human display.
func (f *Formatter) Toggle() Format {
	if f.Format == FormatHuman {
		f.Format = FormatMARC
	} else {
		f.Format = FormatHuman
	}
	return f.Format
}

// FieldTag labels a field reference. A wildcard hit that is only the looked-up
// reference plus "x" ("001x", "245x") falls back to the raw reference.
func (f Formatter) FieldTag(ref string) string {
	if len(ref) > 5 {
		ref = ref[:5]
	}
	if f.Format != FormatHuman {
		return ref
	}
	if name, ok := f.Names[ref]; ok {
		return name
	}
	if len(ref) <= 3 {
		if len(ref) < 2 {
			return ref
		}
		if name, ok := f.Names[ref[:2]+wildcard]; ok && name != ref+"x" {
			return name
		}
		return ref
	}
	for i := len(ref); i >= 3; i-- {
		prefix := ref[:i]
		name, ok := f.Names[prefix+wildcard]
		if !ok {
			continue
		}
		if name != prefix+"x" {
			return name
		}
		break
	}
	return ref
}

// SubfieldTag labels a subfield reference ("24510a"). Without a label it
// renders as "$$a".
func (f Formatter) SubfieldTag(ref string) string {
	code := ""
	if len(ref) > 5 {
		code = ref[5:6]
	}
	if f.Format == FormatHuman {
		if name, ok := f.Names[ref]; ok {
			return name
		}
		if name, ok := f.Names["%%%%%"+code]; ok {
			return name
		}
	}
	return "$$" + code
}
