package model

import (
	"sort"
	"strings"
)

// Subfield is one coded value inside a data field.
type Subfield struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// Field is one occurrence of a tag in a record.
//
// Control fields carry ControlValue and no subfields; data fields carry
// indicators and subfields. Number is the record-wide identity of the field and
// survives reordering.
type Field struct {
	Subfields    []Subfield `json:"subfields,omitempty"`
	Ind1         string     `json:"ind1"`
	Ind2         string     `json:"ind2"`
	ControlValue *string    `json:"controlValue,omitempty"`
	Number       int        `json:"fieldNumber"`
}

// IsControl reports whether the field holds a single unstructured value.
func (f Field) IsControl() bool { return f.ControlValue != nil }

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	out := f
	if f.Subfields != nil {
		out.Subfields = make([]Subfield, len(f.Subfields))
		copy(out.Subfields, f.Subfields)
	}
	if f.ControlValue != nil {
		v := *f.ControlValue
		out.ControlValue = &v
	}
	return out
}

// ControlField builds a control field with the given value.
func ControlField(value string) Field {
	v := value
	return Field{ControlValue: &v}
}

// DataField builds a data field with the given indicators and subfields.
func DataField(ind1, ind2 string, subfields ...Subfield) Field {
	return Field{Ind1: ind1, Ind2: ind2, Subfields: append([]Subfield{}, subfields...)}
}

// Record maps a tag to its ordered fields.
type Record map[string][]Field

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for tag, fields := range r {
		cp := make([]Field, len(fields))
		for i, f := range fields {
			cp[i] = f.Clone()
		}
		out[tag] = cp
	}
	return out
}

// Tags returns the record's tags in ascending lexical order.
func (r Record) Tags() []string {
	tags := make([]string, 0, len(r))
	for tag := range r {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// FieldCount returns the number of fields across all tags.
func (r Record) FieldCount() int {
	n := 0
	for _, fields := range r {
		n += len(fields)
	}
	return n
}

// Title returns the first 245$a value, if any (used for headlines and listings).
func (r Record) Title() string {
	for _, f := range r["245"] {
		for _, sf := range f.Subfields {
			if sf.Code == "a" {
				return strings.TrimSpace(sf.Value)
			}
		}
	}
	return ""
}
