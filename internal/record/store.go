// Package record owns the in-memory record being edited and its mutation
// primitives.
package record

import (
	"sort"
	"strconv"
	"strings"

	"bibedit-cli/internal/marc"
	"bibedit-cli/internal/model"
	"bibedit-cli/internal/protect"
)

// NoSubfield addresses the control value of a control field in EditContent.
const NoSubfield = -1

// Store holds one record. It is not safe for concurrent use; callers own it
// from a single goroutine.
type Store struct {
	rec       model.Record
	validator marc.Validator
	policy    *protect.Policy
}

// New returns a store over rec (which may be nil for an empty store).
func New(rec model.Record, v marc.Validator, p *protect.Policy) *Store {
	s := &Store{validator: v, policy: p}
	s.Load(rec)
	return s
}

// Load replaces the record wholesale.
func (s *Store) Load(rec model.Record) {
	if rec == nil {
		rec = model.Record{}
	}
	s.rec = rec
}

// Clear drops the record.
func (s *Store) Clear() { s.rec = model.Record{} }

// Record exposes the live record for read-only use (rendering, scans).
func (s *Store) Record() model.Record { return s.rec }

// Snapshot returns a deep copy of the record.
func (s *Store) Snapshot() model.Record { return s.rec.Clone() }

// Len returns the number of fields in the record.
func (s *Store) Len() int { return s.rec.FieldCount() }

// TagsSorted returns the tags present, ascending.
func (s *Store) TagsSorted() []string { return s.rec.Tags() }

func (s *Store) fieldIndex(tag string, number int) (int, error) {
	for i, f := range s.rec[tag] {
		if f.Number == number {
			return i, nil
		}
	}
	return -1, NotFoundError{Tag: tag, FieldNumber: number}
}

// GetField returns a pointer into the record; mutations through it are visible.
func (s *Store) GetField(tag string, number int) (*model.Field, error) {
	i, err := s.fieldIndex(tag, number)
	if err != nil {
		return nil, err
	}
	return &s.rec[tag][i], nil
}

// MARC returns the reference string of a field, or of one of its subfields when
// index >= 0.
func (s *Store) MARC(tag string, number, index int) (string, error) {
	f, err := s.GetField(tag, number)
	if err != nil {
		return "", err
	}
	if index < 0 || marc.IsControlTag(tag) {
		return marc.FieldRef(tag, *f), nil
	}
	if index >= len(f.Subfields) {
		return "", OutOfRangeError{Tag: tag, FieldNumber: number, Index: index, Len: len(f.Subfields)}
	}
	return marc.SubfieldRef(tag, *f, f.Subfields[index].Code), nil
}

// DeleteField removes a field; the tag goes away with its last field.
func (s *Store) DeleteField(tag string, number int) error {
	i, err := s.fieldIndex(tag, number)
	if err != nil {
		return err
	}
	fields := s.rec[tag]
	fields = append(fields[:i], fields[i+1:]...)
	if len(fields) == 0 {
		delete(s.rec, tag)
		return nil
	}
	s.rec[tag] = fields
	return nil
}

// DeleteSubfields removes the subfields at indexes. Removing every subfield
// leaves the field in place with no subfields.
func (s *Store) DeleteSubfields(tag string, number int, indexes []int) error {
	f, err := s.GetField(tag, number)
	if err != nil {
		return err
	}
	idxs := uniqueSorted(indexes)
	for _, i := range idxs {
		if i < 0 || i >= len(f.Subfields) {
			return OutOfRangeError{Tag: tag, FieldNumber: number, Index: i, Len: len(f.Subfields)}
		}
	}
	for j := len(idxs) - 1; j >= 0; j-- {
		i := idxs[j]
		f.Subfields = append(f.Subfields[:i], f.Subfields[i+1:]...)
	}
	return nil
}

// CheckSubfields validates codes and protection for subfields about to be
// added to a field, without changing anything.
func (s *Store) CheckSubfields(tag string, f model.Field, subfields []model.Subfield) error {
	for _, sf := range subfields {
		if !s.validator.IsValidSubfieldCode(sf.Code) {
			return ValidationError{Kind: "subfieldCode", Value: sf.Code}
		}
		if ref := marc.SubfieldRef(tag, f, sf.Code); s.policy.IsProtected(ref) {
			return ProtectedFieldError{Ref: ref}
		}
	}
	return nil
}

// AddSubfields appends subfields to a data field. Either all are added or none.
func (s *Store) AddSubfields(tag string, number int, subfields []model.Subfield) error {
	f, err := s.GetField(tag, number)
	if err != nil {
		return err
	}
	if f.IsControl() {
		return TypeMismatchError{Tag: tag, FieldNumber: number, Control: true}
	}
	if err := s.CheckSubfields(tag, *f, subfields); err != nil {
		return err
	}
	f.Subfields = append(f.Subfields, subfields...)
	return nil
}

// MoveSubfield swaps the subfields at from and to.
func (s *Store) MoveSubfield(tag string, number, from, to int) error {
	f, err := s.GetField(tag, number)
	if err != nil {
		return err
	}
	n := len(f.Subfields)
	for _, i := range []int{from, to} {
		if i < 0 || i >= n {
			return OutOfRangeError{Tag: tag, FieldNumber: number, Index: i, Len: n}
		}
		if ref, ok := s.policy.FieldContent(tag, *f, i); ok {
			return ProtectedFieldError{Ref: ref}
		}
	}
	f.Subfields[from], f.Subfields[to] = f.Subfields[to], f.Subfields[from]
	return nil
}

// NormalizeContent folds line breaks into single spaces; content is single-line.
func NormalizeContent(value string) string {
	value = strings.ReplaceAll(value, "\r\n", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "\r", " ")
}

// EditContent replaces a control value (index == NoSubfield) or a subfield
// value. It returns the stored (normalized) value. Protected targets are
// rejected before anything changes.
func (s *Store) EditContent(tag string, number, index int, value string) (string, error) {
	f, err := s.GetField(tag, number)
	if err != nil {
		return "", err
	}
	value = NormalizeContent(value)
	if index == NoSubfield {
		if !f.IsControl() {
			return "", TypeMismatchError{Tag: tag, FieldNumber: number, Control: false}
		}
		if ref, ok := s.policy.FieldContent(tag, *f, NoSubfield); ok {
			return "", ProtectedFieldError{Ref: ref}
		}
		*f.ControlValue = value
		return value, nil
	}
	if f.IsControl() {
		return "", TypeMismatchError{Tag: tag, FieldNumber: number, Control: true}
	}
	if index < 0 || index >= len(f.Subfields) {
		return "", OutOfRangeError{Tag: tag, FieldNumber: number, Index: index, Len: len(f.Subfields)}
	}
	if ref, ok := s.policy.FieldContent(tag, *f, index); ok {
		return "", ProtectedFieldError{Ref: ref}
	}
	f.Subfields[index].Value = value
	return value, nil
}

// AllocateNextFieldNumber returns one more than the highest field number in the
// record, or 1 when the record is empty. It scans the record on every call.
func (s *Store) AllocateNextFieldNumber() int {
	max := 0
	for _, fields := range s.rec {
		for _, f := range fields {
			if f.Number > max {
				max = f.Number
			}
		}
	}
	return max + 1
}

// CompareFieldOrder orders two fields of the same tag by indicator 1, then
// indicator 2, ignoring case.
func CompareFieldOrder(a, b model.Field) int {
	if c := strings.Compare(strings.ToLower(a.Ind1), strings.ToLower(b.Ind1)); c != 0 {
		return c
	}
	return strings.Compare(strings.ToLower(a.Ind2), strings.ToLower(b.Ind2))
}

// CheckField validates a new field's tag, indicators, subfield codes and
// protection without changing anything.
func (s *Store) CheckField(tag string, f model.Field) error {
	if marc.IsControlTag(tag) {
		if !s.validator.IsValidControlTag(tag) {
			return ValidationError{Kind: "controlTag", Value: tag}
		}
		if !f.IsControl() {
			return TypeMismatchError{Tag: tag, Control: true}
		}
		if ref := marc.FieldRef(tag, f); s.policy.IsProtected(ref) {
			return ProtectedFieldError{Ref: ref}
		}
		return nil
	}
	if !s.validator.IsValidTag(tag) {
		return ValidationError{Kind: "tag", Value: tag}
	}
	if f.IsControl() {
		return TypeMismatchError{Tag: tag, Control: false}
	}
	if !s.validator.IsValidIndicator(f.Ind1) {
		return ValidationError{Kind: "indicator", Value: f.Ind1}
	}
	if !s.validator.IsValidIndicator(f.Ind2) {
		return ValidationError{Kind: "indicator", Value: f.Ind2}
	}
	if ref := marc.FieldRef(tag, f); s.policy.IsProtected(ref) {
		return ProtectedFieldError{Ref: ref}
	}
	return s.CheckSubfields(tag, f, f.Subfields)
}

// AddField validates f, gives it the next field number and inserts it after the
// last field of the tag that orders at or before it. f.Number is ignored.
func (s *Store) AddField(tag string, f model.Field) (int, error) {
	if err := s.CheckField(tag, f); err != nil {
		return 0, err
	}
	f = f.Clone()
	if f.Ind1 == "" {
		f.Ind1 = " "
	}
	if f.Ind2 == "" {
		f.Ind2 = " "
	}
	if f.IsControl() {
		f.Ind1, f.Ind2 = "", ""
		*f.ControlValue = NormalizeContent(*f.ControlValue)
	}
	for i := range f.Subfields {
		f.Subfields[i].Value = NormalizeContent(f.Subfields[i].Value)
	}
	f.Number = s.AllocateNextFieldNumber()
	s.insertField(tag, f)
	return f.Number, nil
}

// AddFieldAt adds a field that already carries its field number, as when
// replaying an addition made by another copy of the record. The number must
// not be in use.
func (s *Store) AddFieldAt(tag string, f model.Field) error {
	if err := s.CheckField(tag, f); err != nil {
		return err
	}
	if f.Number <= 0 || s.hasFieldNumber(f.Number) {
		return ValidationError{Kind: "fieldNumber", Value: strconv.Itoa(f.Number)}
	}
	s.insertField(tag, f.Clone())
	return nil
}

func (s *Store) hasFieldNumber(n int) bool {
	for _, fields := range s.rec {
		for _, f := range fields {
			if f.Number == n {
				return true
			}
		}
	}
	return false
}

// insertField places f after the last field of its tag that orders at or
// before it.
func (s *Store) insertField(tag string, f model.Field) {
	fields := s.rec[tag]
	pos := len(fields)
	for i := len(fields) - 1; i >= 0; i-- {
		if CompareFieldOrder(fields[i], f) <= 0 {
			pos = i + 1
			break
		}
		pos = i
	}
	fields = append(fields, model.Field{})
	copy(fields[pos+1:], fields[pos:])
	fields[pos] = f
	s.rec[tag] = fields
}

// CheckDeletion verifies every target of plan exists and every index is in
// range.
func (s *Store) CheckDeletion(plan model.DeletionPlan) error {
	for _, d := range plan.Normalize() {
		f, err := s.GetField(d.Tag, d.FieldNumber)
		if err != nil {
			return err
		}
		if d.Scope == model.ScopeWholeField {
			continue
		}
		for _, i := range d.Subfields {
			if i < 0 || i >= len(f.Subfields) {
				return OutOfRangeError{Tag: d.Tag, FieldNumber: d.FieldNumber, Index: i, Len: len(f.Subfields)}
			}
		}
	}
	return nil
}

// ApplyDeletion removes everything in plan, or nothing if any target is missing
// or protected.
func (s *Store) ApplyDeletion(plan model.DeletionPlan) error {
	plan = plan.Normalize()
	if err := s.CheckDeletion(plan); err != nil {
		return err
	}
	if ref, ok := s.policy.ScanForProtected(s.rec, plan); ok {
		return ProtectedFieldError{Ref: ref}
	}
	for _, d := range plan {
		var err error
		if d.Scope == model.ScopeWholeField {
			err = s.DeleteField(d.Tag, d.FieldNumber)
		} else {
			err = s.DeleteSubfields(d.Tag, d.FieldNumber, d.Subfields)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func uniqueSorted(xs []int) []int {
	out := append([]int(nil), xs...)
	sort.Ints(out)
	n := 0
	for i, x := range out {
		if i > 0 && x == out[n-1] {
			continue
		}
		out[n] = x
		n++
	}
	return out[:n]
}
