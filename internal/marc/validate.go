// Package marc holds the lexical rules of the record format: which strings are
// acceptable tags, indicators and subfield codes, and how a field or subfield
// is spelled as a reference string.
package marc

import "regexp"

// Rules are the site-configurable relaxations of the default grammar.
type Rules struct {
	// AllowLowercaseTags accepts all-lowercase data tags ("abc") in addition to
	// uppercase/numeric ones.
	AllowLowercaseTags bool
	// CapitalIndicators accepts A-Z as indicator values.
	CapitalIndicators bool
}

var (
	reControlTag     = regexp.MustCompile(`^00[1-9A-Za-z]$`)
	reTag            = regexp.MustCompile(`^(0[1-9A-Z][0-9A-Z]|[1-9A-Z][0-9A-Z]{2})$`)
	reTagLower       = regexp.MustCompile(`^(0[1-9a-z][0-9a-z]|[1-9a-z][0-9a-z]{2})$`)
	reIndicator      = regexp.MustCompile(`^[0-9a-z]$`)
	reIndicatorUpper = regexp.MustCompile(`^[0-9A-Za-z]$`)
	reSubfieldCode   = regexp.MustCompile("^[0-9a-z!\"#$%&'()*+,\\-./:;<=>?{}_^`~\\[\\]\\\\]$")
)

// Validator checks strings against the grammar. The zero value uses the
// default rules.
type Validator struct {
	Rules Rules
}

// IsValidControlTag reports whether tag is a control tag such as "001".
func (v Validator) IsValidControlTag(tag string) bool {
	return reControlTag.MatchString(tag)
}

// IsValidTag reports whether tag is a data tag such as "245".
func (v Validator) IsValidTag(tag string) bool {
	if reTag.MatchString(tag) {
		return true
	}
	return v.Rules.AllowLowercaseTags && reTagLower.MatchString(tag)
}

// IsValidIndicator accepts blank ("" or " ") or a single allowed character.
func (v Validator) IsValidIndicator(ind string) bool {
	if ind == "" || ind == " " {
		return true
	}
	if v.Rules.CapitalIndicators {
		return reIndicatorUpper.MatchString(ind)
	}
	return reIndicator.MatchString(ind)
}

// IsValidSubfieldCode reports whether code is a single allowed subfield code.
func (v Validator) IsValidSubfieldCode(code string) bool {
	return reSubfieldCode.MatchString(code)
}

// IsValidFieldTag accepts either a control tag or a data tag.
func (v Validator) IsValidFieldTag(tag string) bool {
	return v.IsValidControlTag(tag) || v.IsValidTag(tag)
}
