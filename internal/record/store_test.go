package record

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"bibedit-cli/internal/marc"
	"bibedit-cli/internal/model"
	"bibedit-cli/internal/protect"
)

func sf(code, value string) model.Subfield { return model.Subfield{Code: code, Value: value} }

func numbered(f model.Field, n int) model.Field {
	f.Number = n
	return f
}

func sampleRecord() model.Record {
	return model.Record{
		"001": {numbered(model.ControlField("42"), 1)},
		"100": {numbered(model.DataField(" ", " ", sf("a", "Doe, John")), 2)},
		"245": {numbered(model.DataField("1", "0", sf("a", "Title"), sf("b", "sub"), sf("c", "resp")), 3)},
	}
}

func newStore(rec model.Record, protected ...string) *Store {
	return New(rec, marc.Validator{}, protect.NewPolicy(protected))
}

func TestAllocateNextFieldNumber(t *testing.T) {
	s := newStore(nil)
	if got := s.AllocateNextFieldNumber(); got != 1 {
		t.Fatalf("empty record: got %d want 1", got)
	}

	s.Load(model.Record{
		"100": {numbered(model.DataField("", ""), 7)},
		"700": {numbered(model.DataField("", ""), 3), numbered(model.DataField("", ""), 12)},
	})
	next := s.AllocateNextFieldNumber()
	for _, fields := range s.Record() {
		for _, f := range fields {
			if next <= f.Number {
				t.Fatalf("allocated %d not greater than existing %d", next, f.Number)
			}
		}
	}
	if next != 13 {
		t.Fatalf("got %d want 13", next)
	}

	if err := s.DeleteField("700", 12); err != nil {
		t.Fatalf("DeleteField: %v", err)
	}
	if got := s.AllocateNextFieldNumber(); got != 8 {
		t.Fatalf("after delete: got %d want 8", got)
	}
}

func TestGetField_NotFound(t *testing.T) {
	s := newStore(sampleRecord())
	_, err := s.GetField("245", 99)
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.Tag != "245" || nf.FieldNumber != 99 {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if !IsDesync(err) {
		t.Fatalf("expected NotFound to count as desync")
	}
}

func TestDeleteField_RemovesEmptyTag(t *testing.T) {
	s := newStore(sampleRecord())
	if err := s.DeleteField("100", 2); err != nil {
		t.Fatalf("DeleteField: %v", err)
	}
	if _, ok := s.Record()["100"]; ok {
		t.Fatalf("expected tag 100 removed with its last field")
	}
	if err := s.DeleteField("100", 2); !IsDesync(err) {
		t.Fatalf("expected NotFound on second delete, got %v", err)
	}
}

func TestDeleteSubfields_HighestFirstAndKeepsEmptyField(t *testing.T) {
	s := newStore(sampleRecord())
	if err := s.DeleteSubfields("245", 3, []int{0, 2}); err != nil {
		t.Fatalf("DeleteSubfields: %v", err)
	}
	f, _ := s.GetField("245", 3)
	if diff := cmp.Diff([]model.Subfield{sf("b", "sub")}, f.Subfields); diff != "" {
		t.Fatalf("subfields mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeleteSubfields("245", 3, []int{0}); err != nil {
		t.Fatalf("DeleteSubfields: %v", err)
	}
	f, err := s.GetField("245", 3)
	if err != nil {
		t.Fatalf("field must survive losing all subfields: %v", err)
	}
	if len(f.Subfields) != 0 {
		t.Fatalf("expected empty subfields, got %v", f.Subfields)
	}
}

func TestDeleteSubfields_OutOfRangeRemovesNothing(t *testing.T) {
	s := newStore(sampleRecord())
	before := s.Snapshot()
	err := s.DeleteSubfields("245", 3, []int{0, 3})
	var oor OutOfRangeError
	if !errors.As(err, &oor) || oor.Index != 3 || oor.Len != 3 {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
	if diff := cmp.Diff(before, s.Record()); diff != "" {
		t.Fatalf("record changed (-want +got):\n%s", diff)
	}
}

func TestAddSubfields_AllOrNothing(t *testing.T) {
	s := newStore(sampleRecord(), "245__", "24510z")
	before := s.Snapshot()

	err := s.AddSubfields("245", 3, []model.Subfield{sf("d", "ok"), sf("A", "bad")})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Value != "A" {
		t.Fatalf("expected ValidationError for A, got %v", err)
	}

	err = s.AddSubfields("245", 3, []model.Subfield{sf("d", "ok"), sf("z", "protected")})
	var pe ProtectedFieldError
	if !errors.As(err, &pe) || pe.Ref != "24510z" {
		t.Fatalf("expected ProtectedFieldError 24510z, got %v", err)
	}
	if diff := cmp.Diff(before, s.Record()); diff != "" {
		t.Fatalf("record changed after rejected batch (-want +got):\n%s", diff)
	}

	if err := s.AddSubfields("001", 1, []model.Subfield{sf("a", "x")}); err == nil {
		t.Fatalf("expected type mismatch adding subfields to control field")
	}
}

func TestAddThenDeleteRestores(t *testing.T) {
	s := newStore(sampleRecord())
	f, _ := s.GetField("245", 3)
	before := append([]model.Subfield(nil), f.Subfields...)

	added := []model.Subfield{sf("n", "1"), sf("p", "Part")}
	if err := s.AddSubfields("245", 3, added); err != nil {
		t.Fatalf("AddSubfields: %v", err)
	}
	if err := s.DeleteSubfields("245", 3, []int{len(before), len(before) + 1}); err != nil {
		t.Fatalf("DeleteSubfields: %v", err)
	}
	f, _ = s.GetField("245", 3)
	if diff := cmp.Diff(before, f.Subfields); diff != "" {
		t.Fatalf("subfields not restored (-want +got):\n%s", diff)
	}
}

func TestMoveSubfield_Involution(t *testing.T) {
	s := newStore(sampleRecord())
	f, _ := s.GetField("245", 3)
	before := append([]model.Subfield(nil), f.Subfields...)

	for i := 0; i+1 < len(before); i++ {
		if err := s.MoveSubfield("245", 3, i, i+1); err != nil {
			t.Fatalf("move %d->%d: %v", i, i+1, err)
		}
		if err := s.MoveSubfield("245", 3, i+1, i); err != nil {
			t.Fatalf("move %d->%d: %v", i+1, i, err)
		}
		f, _ = s.GetField("245", 3)
		if diff := cmp.Diff(before, f.Subfields); diff != "" {
			t.Fatalf("order not restored at %d (-want +got):\n%s", i, diff)
		}
	}

	if err := s.MoveSubfield("245", 3, 2, 3); !IsDesync(err) {
		t.Fatalf("expected OutOfRange, got %v", err)
	}
}

func TestEditContent_NormalizesNewlines(t *testing.T) {
	s := newStore(model.Record{
		"100": {numbered(model.DataField(" ", " ", sf("a", "Doe, John")), 1)},
	})
	got, err := s.EditContent("100", 1, 0, "Doe,\nJohn")
	if err != nil {
		t.Fatalf("EditContent: %v", err)
	}
	f, _ := s.GetField("100", 1)
	if got != "Doe, John" || f.Subfields[0].Value != "Doe, John" {
		t.Fatalf("got %q / %q, want %q", got, f.Subfields[0].Value, "Doe, John")
	}

	if got := NormalizeContent("a\r\nb\rc\nd"); got != "a b c d" {
		t.Fatalf("NormalizeContent: got %q", got)
	}
}

func TestEditContent_TypeMismatch(t *testing.T) {
	s := newStore(sampleRecord())
	var tm TypeMismatchError
	if _, err := s.EditContent("100", 2, NoSubfield, "x"); !errors.As(err, &tm) || tm.Control {
		t.Fatalf("expected data-field mismatch, got %v", err)
	}
	if _, err := s.EditContent("001", 1, 0, "x"); !errors.As(err, &tm) || !tm.Control {
		t.Fatalf("expected control-field mismatch, got %v", err)
	}
	if _, err := s.EditContent("001", 1, NoSubfield, "43"); err != nil {
		t.Fatalf("EditContent control: %v", err)
	}
	f, _ := s.GetField("001", 1)
	if *f.ControlValue != "43" {
		t.Fatalf("control value: got %q", *f.ControlValue)
	}
}

func TestCompareFieldOrder_UsesSecondIndicator(t *testing.T) {
	a := model.DataField("1", "0")
	b := model.DataField("1", "4")
	if CompareFieldOrder(a, b) >= 0 || CompareFieldOrder(b, a) <= 0 {
		t.Fatalf("expected ind2 to break ties")
	}
	if CompareFieldOrder(model.DataField("a", "b"), model.DataField("A", "B")) != 0 {
		t.Fatalf("expected case-insensitive equality")
	}
	if CompareFieldOrder(model.DataField("0", "9"), model.DataField("1", "0")) >= 0 {
		t.Fatalf("ind1 must dominate")
	}
}

func TestAddField_InsertsInIndicatorOrder(t *testing.T) {
	s := newStore(model.Record{
		"700": {
			numbered(model.DataField("0", " ", sf("a", "A")), 1),
			numbered(model.DataField("2", " ", sf("a", "C")), 2),
		},
	})
	n, err := s.AddField("700", model.DataField("1", "", sf("a", "B")))
	if err != nil {
		t.Fatalf("AddField: %v", err)
	}
	if n != 3 {
		t.Fatalf("field number: got %d want 3", n)
	}
	var order []string
	for _, f := range s.Record()["700"] {
		order = append(order, f.Subfields[0].Value)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, order); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	f, _ := s.GetField("700", 3)
	if f.Ind2 != " " {
		t.Fatalf("expected blank indicator normalized to space, got %q", f.Ind2)
	}

	// Equal indicators go after existing ones.
	n2, _ := s.AddField("700", model.DataField("0", " ", sf("a", "A2")))
	if got := s.Record()["700"][1].Number; got != n2 {
		t.Fatalf("expected new equal field after existing, got number %d at index 1", got)
	}
}

func TestAddField_Rejections(t *testing.T) {
	s := newStore(sampleRecord(), "650")
	var ve ValidationError
	if _, err := s.AddField("24", model.DataField("", "")); !errors.As(err, &ve) {
		t.Fatalf("expected bad tag ValidationError, got %v", err)
	}
	if _, err := s.AddField("245", model.DataField("#", "")); !errors.As(err, &ve) || ve.Kind != "indicator" {
		t.Fatalf("expected indicator ValidationError, got %v", err)
	}
	var pe ProtectedFieldError
	if _, err := s.AddField("650", model.DataField("", "7", sf("a", "x"))); !errors.As(err, &pe) || pe.Ref != "650_7" {
		t.Fatalf("expected ProtectedFieldError 650_7, got %v", err)
	}
	if _, err := s.AddField("005", model.DataField("", "")); err == nil {
		t.Fatalf("expected control tag without value rejected")
	}
	n, err := s.AddField("005", model.ControlField("2024\n01"))
	if err != nil {
		t.Fatalf("AddField control: %v", err)
	}
	f, _ := s.GetField("005", n)
	if *f.ControlValue != "2024 01" {
		t.Fatalf("control value not normalized: %q", *f.ControlValue)
	}
}

func TestApplyDeletion_ProtectedWholeFieldRejected(t *testing.T) {
	s := newStore(model.Record{
		"245": {numbered(model.DataField("", "", sf("a", "Title")), 1)},
		"500": {numbered(model.DataField("", "", sf("a", "Note")), 2)},
	}, "245")
	before := s.Snapshot()

	var plan model.DeletionPlan
	plan = plan.AddField("500", 2)
	plan = plan.AddField("245", 1)
	err := s.ApplyDeletion(plan)
	var pe ProtectedFieldError
	if !errors.As(err, &pe) || pe.Ref != "245__" {
		t.Fatalf("expected ProtectedFieldError 245__, got %v", err)
	}
	if diff := cmp.Diff(before, s.Record()); diff != "" {
		t.Fatalf("partial deletion happened (-want +got):\n%s", diff)
	}
}

func TestApplyDeletion_ProtectedSubfieldRejectsWholePlan(t *testing.T) {
	s := newStore(sampleRecord(), "24510c")
	before := s.Snapshot()

	var plan model.DeletionPlan
	plan = plan.AddField("100", 2)
	plan = plan.AddSubfield("245", 3, 0)
	plan = plan.AddSubfield("245", 3, 2)
	if err := s.ApplyDeletion(plan); err == nil {
		t.Fatalf("expected rejection")
	}
	if diff := cmp.Diff(before, s.Record()); diff != "" {
		t.Fatalf("partial deletion happened (-want +got):\n%s", diff)
	}
}

func TestApplyDeletion_MissingTargetRemovesNothing(t *testing.T) {
	s := newStore(sampleRecord())
	before := s.Snapshot()

	var plan model.DeletionPlan
	plan = plan.AddField("100", 2)
	plan = plan.AddSubfield("245", 3, 5)
	if err := s.ApplyDeletion(plan); !IsDesync(err) {
		t.Fatalf("expected desync error, got %v", err)
	}
	if diff := cmp.Diff(before, s.Record()); diff != "" {
		t.Fatalf("partial deletion happened (-want +got):\n%s", diff)
	}
}

func TestApplyDeletion_Mixed(t *testing.T) {
	s := newStore(sampleRecord())
	var plan model.DeletionPlan
	plan = plan.AddField("100", 2)
	plan = plan.AddSubfield("245", 3, 1)
	if err := s.ApplyDeletion(plan); err != nil {
		t.Fatalf("ApplyDeletion: %v", err)
	}
	if _, ok := s.Record()["100"]; ok {
		t.Fatalf("expected 100 removed")
	}
	f, _ := s.GetField("245", 3)
	if diff := cmp.Diff([]model.Subfield{sf("a", "Title"), sf("c", "resp")}, f.Subfields); diff != "" {
		t.Fatalf("subfields (-want +got):\n%s", diff)
	}
}

func TestApplyDeletion_RepeatedFieldMerged(t *testing.T) {
	s := newStore(sampleRecord())
	plan := model.DeletionPlan{
		{Tag: "245", FieldNumber: 3, Scope: model.ScopeSubfields, Subfields: []int{1}},
		{Tag: "245", FieldNumber: 3, Scope: model.ScopeSubfields, Subfields: []int{1, 2}},
	}
	if err := s.ApplyDeletion(plan); err != nil {
		t.Fatalf("ApplyDeletion: %v", err)
	}
	f, _ := s.GetField("245", 3)
	if diff := cmp.Diff([]model.Subfield{sf("a", "Title")}, f.Subfields); diff != "" {
		t.Fatalf("subfields (-want +got):\n%s", diff)
	}
}

func TestApplyDeletion_RepeatedFieldOutOfRangeRemovesNothing(t *testing.T) {
	s := newStore(sampleRecord())
	before := s.Snapshot()
	plan := model.DeletionPlan{
		{Tag: "245", FieldNumber: 3, Scope: model.ScopeSubfields, Subfields: []int{1}},
		{Tag: "245", FieldNumber: 3, Scope: model.ScopeSubfields, Subfields: []int{3}},
	}
	var oor OutOfRangeError
	if err := s.ApplyDeletion(plan); !errors.As(err, &oor) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	if diff := cmp.Diff(before, s.Record()); diff != "" {
		t.Fatalf("partial deletion happened (-want +got):\n%s", diff)
	}
}

func TestMARC(t *testing.T) {
	s := newStore(sampleRecord())
	cases := []struct {
		tag   string
		n     int
		index int
		want  string
	}{
		{"001", 1, -1, "001"},
		{"100", 2, -1, "100__"},
		{"100", 2, 0, "100__a"},
		{"245", 3, 1, "24510b"},
	}
	for _, c := range cases {
		got, err := s.MARC(c.tag, c.n, c.index)
		if err != nil || got != c.want {
			t.Fatalf("MARC(%s,%d,%d): got (%q,%v) want %q", c.tag, c.n, c.index, got, err, c.want)
		}
	}
	if _, err := s.MARC("245", 3, 9); !IsDesync(err) {
		t.Fatalf("expected OutOfRange, got %v", err)
	}
}

func TestEditContentAndMove_RejectProtected(t *testing.T) {
	s := newStore(sampleRecord(), "001", "24510a")
	before := s.Snapshot()

	var pe ProtectedFieldError
	if _, err := s.EditContent("001", 1, NoSubfield, "x"); !errors.As(err, &pe) || pe.Ref != "001" {
		t.Fatalf("expected protected 001, got %v", err)
	}
	if _, err := s.EditContent("245", 3, 0, "x"); !errors.As(err, &pe) || pe.Ref != "24510a" {
		t.Fatalf("expected protected 24510a, got %v", err)
	}
	if err := s.MoveSubfield("245", 3, 1, 0); !errors.As(err, &pe) {
		t.Fatalf("expected moving a protected subfield rejected, got %v", err)
	}
	if diff := cmp.Diff(before, s.Record()); diff != "" {
		t.Fatalf("record changed (-want +got):\n%s", diff)
	}
	if _, err := s.EditContent("245", 3, 1, "ok"); err != nil {
		t.Fatalf("unprotected subfield: %v", err)
	}
}

func TestAddFieldAt(t *testing.T) {
	s := newStore(sampleRecord())
	f := numbered(model.DataField(" ", " ", sf("a", "Note")), 9)
	if err := s.AddFieldAt("500", f); err != nil {
		t.Fatalf("AddFieldAt: %v", err)
	}
	if got := s.AllocateNextFieldNumber(); got != 10 {
		t.Fatalf("next number: got %d want 10", got)
	}
	var ve ValidationError
	dup := numbered(model.DataField(" ", " ", sf("a", "Dup")), 3)
	if err := s.AddFieldAt("500", dup); !errors.As(err, &ve) || ve.Kind != "fieldNumber" {
		t.Fatalf("expected duplicate number rejected, got %v", err)
	}
}
