package model

import "sort"

// DeletionScope says whether a deletion removes a whole field or some of its subfields.
type DeletionScope int

const (
	ScopeWholeField DeletionScope = iota
	ScopeSubfields
)

func (s DeletionScope) String() string {
	if s == ScopeWholeField {
		return "field"
	}
	return "subfields"
}

// Deletion targets one field of a record.
type Deletion struct {
	Tag         string        `json:"tag"`
	FieldNumber int           `json:"fieldNumber"`
	Scope       DeletionScope `json:"scope"`
	// Subfields holds sorted, unique indexes when Scope is ScopeSubfields.
	Subfields []int `json:"subfields,omitempty"`
}

// DeletionPlan is an ordered list of deletions. Use AddField and AddSubfield to
// build one; they keep at most one entry per field.
type DeletionPlan []Deletion

func (p DeletionPlan) indexOf(tag string, number int) int {
	for i, d := range p {
		if d.Tag == tag && d.FieldNumber == number {
			return i
		}
	}
	return -1
}

// AddField schedules the whole field, superseding any subfield entries for it.
func (p DeletionPlan) AddField(tag string, number int) DeletionPlan {
	if i := p.indexOf(tag, number); i >= 0 {
		p[i].Scope = ScopeWholeField
		p[i].Subfields = nil
		return p
	}
	return append(p, Deletion{Tag: tag, FieldNumber: number, Scope: ScopeWholeField})
}

// AddSubfield schedules one subfield. It is a no-op when the whole field is
// already scheduled.
func (p DeletionPlan) AddSubfield(tag string, number, index int) DeletionPlan {
	i := p.indexOf(tag, number)
	if i < 0 {
		return append(p, Deletion{Tag: tag, FieldNumber: number, Scope: ScopeSubfields, Subfields: []int{index}})
	}
	if p[i].Scope == ScopeWholeField {
		return p
	}
	for _, existing := range p[i].Subfields {
		if existing == index {
			return p
		}
	}
	p[i].Subfields = append(p[i].Subfields, index)
	sort.Ints(p[i].Subfields)
	return p
}

// Normalize merges entries for the same field: a whole-field entry wins, and
// subfield indexes become a sorted set. Plans decoded from requests may repeat
// a field.
func (p DeletionPlan) Normalize() DeletionPlan {
	var out DeletionPlan
	for _, d := range p {
		if d.Scope == ScopeWholeField {
			out = out.AddField(d.Tag, d.FieldNumber)
			continue
		}
		for _, i := range d.Subfields {
			out = out.AddSubfield(d.Tag, d.FieldNumber, i)
		}
	}
	return out
}

// WholeFields reports whether the plan removes at least one entire field.
func (p DeletionPlan) WholeFields() bool {
	for _, d := range p {
		if d.Scope == ScopeWholeField {
			return true
		}
	}
	return false
}
