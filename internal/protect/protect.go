// Package protect decides which parts of a record are off limits for editing.
package protect

import (
	"sort"
	"strings"

	"bibedit-cli/internal/marc"
	"bibedit-cli/internal/model"
)

// Policy is a read-only set of protected reference prefixes ("001", "245",
// "100__a", ...). A nil Policy protects nothing.
type Policy struct {
	refs map[string]struct{}
}

// NewPolicy builds a policy from configured prefixes. Blank entries are ignored.
func NewPolicy(refs []string) *Policy {
	p := &Policy{refs: make(map[string]struct{}, len(refs))}
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		p.refs[r] = struct{}{}
	}
	return p
}

// Refs returns the configured prefixes, sorted.
func (p *Policy) Refs() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.refs))
	for r := range p.refs {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// IsProtected reports whether ref, or any left truncation of it down to a
// single character, is in the set.
func (p *Policy) IsProtected(ref string) bool {
	if p == nil || len(p.refs) == 0 {
		return false
	}
	for i := len(ref); i >= 1; i-- {
		if _, ok := p.refs[ref[:i]]; ok {
			return true
		}
	}
	return false
}

// ScanForProtected walks a deletion plan in order and returns the first
// protected reference it touches. Targets missing from rec are skipped; the
// record store reports those separately.
func (p *Policy) ScanForProtected(rec model.Record, plan model.DeletionPlan) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, d := range plan {
		f, ok := findField(rec, d.Tag, d.FieldNumber)
		if !ok {
			continue
		}
		if d.Scope == model.ScopeWholeField {
			ref := marc.FieldRef(d.Tag, f)
			if p.IsProtected(ref) {
				return ref, true
			}
			continue
		}
		idxs := append([]int(nil), d.Subfields...)
		sort.Ints(idxs)
		for _, i := range idxs {
			if i < 0 || i >= len(f.Subfields) {
				continue
			}
			ref := marc.SubfieldRef(d.Tag, f, f.Subfields[i].Code)
			if p.IsProtected(ref) {
				return ref, true
			}
		}
	}
	return "", false
}

// FieldContent returns the reference a content edit touches, and whether it is
// protected. index < 0 addresses the control value.
func (p *Policy) FieldContent(tag string, f model.Field, index int) (string, bool) {
	ref := marc.FieldRef(tag, f)
	if index >= 0 && index < len(f.Subfields) {
		ref = marc.SubfieldRef(tag, f, f.Subfields[index].Code)
	}
	return ref, p.IsProtected(ref)
}

func findField(rec model.Record, tag string, number int) (model.Field, bool) {
	for _, f := range rec[tag] {
		if f.Number == number {
			return f, true
		}
	}
	return model.Field{}, false
}
