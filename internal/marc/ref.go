package marc

import "bibedit-cli/internal/model"

// BlankIndicator stands in for a blank or absent indicator in references. It
// is never a legal indicator value, so prefix matching stays unambiguous.
const BlankIndicator = "_"

// IsControlTag reports whether tag sorts below the data field threshold "010".
func IsControlTag(tag string) bool {
	return tag < "010"
}

func indicatorRef(ind string) string {
	if ind == "" || ind == " " {
		return BlankIndicator
	}
	return ind
}

// FieldRef spells a field as tag+ind1+ind2, or the bare tag for control tags.
func FieldRef(tag string, f model.Field) string {
	if IsControlTag(tag) {
		return tag
	}
	return tag + indicatorRef(f.Ind1) + indicatorRef(f.Ind2)
}

// SubfieldRef spells one subfield code of a field ("100__a").
func SubfieldRef(tag string, f model.Field, code string) string {
	return FieldRef(tag, f) + code
}

// Reference composes the canonical reference of a field, with the subfield
// code appended when code is non-empty.
func Reference(tag string, f model.Field, code string) string {
	if code == "" {
		return FieldRef(tag, f)
	}
	return SubfieldRef(tag, f, code)
}
