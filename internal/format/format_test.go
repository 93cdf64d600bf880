package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"bibedit-cli/internal/model"
)

func TestWriteMRK(t *testing.T) {
	title := model.DataField("1", " ", model.Subfield{Code: "a", Value: "Price $5"}, model.Subfield{Code: "b", Value: "sub"})
	rec := model.Record{
		"245": {title},
		"001": {model.ControlField("42")},
	}
	var buf bytes.Buffer
	if err := Write(&buf, rec, "mrk", false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "=001  42\n=245  1\\$aPrice {dollar}5$bsub\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}

func TestParseMRK(t *testing.T) {
	in := strings.Join([]string{
		"=LDR  00000nam a2200000 a 4500",
		"=001  42",
		"",
		"=245  10$aTitle$bsub {dollar}",
		"=700  1\\$aDoe, John",
		"=700  \\\\$aRoe",
	}, "\n")
	rec, err := ParseMRK(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseMRK: %v", err)
	}
	want := model.Record{
		"001": {{ControlValue: ptr("42"), Number: 1}},
		"245": {{Ind1: "1", Ind2: "0", Number: 2, Subfields: []model.Subfield{{Code: "a", Value: "Title"}, {Code: "b", Value: "sub $"}}}},
		"700": {
			{Ind1: "1", Ind2: " ", Number: 3, Subfields: []model.Subfield{{Code: "a", Value: "Doe, John"}}},
			{Ind1: " ", Ind2: " ", Number: 4, Subfields: []model.Subfield{{Code: "a", Value: "Roe"}}},
		},
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Fatalf("record (-want +got):\n%s", diff)
	}
}

func TestParseMRK_Errors(t *testing.T) {
	for _, in := range []string{"245  10$a", "=245  1", "=245  10abc", "=245  10$a$"} {
		if _, err := ParseMRK(strings.NewReader(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, 1, "xml", false); err == nil {
		t.Fatalf("expected error")
	}
	if err := Write(&bytes.Buffer{}, 1, "mrk", false); err == nil {
		t.Fatalf("expected error for non-record mrk output")
	}
	var buf bytes.Buffer
	if err := Write(&buf, map[string]int{"n": 1}, "", false); err != nil || buf.String() != "{\"n\":1}\n" {
		t.Fatalf("json: got %q, %v", buf.String(), err)
	}
}

func ptr(s string) *string { return &s }
