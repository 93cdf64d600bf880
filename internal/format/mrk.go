package format

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"bibedit-cli/internal/model"
)

// The mnemonic text form writes one field per line:
//
//	=001  42
//	=245  10$aTitle$bsubtitle
//
// Blank indicators are written as a backslash and a literal "$" in a value as
// "{dollar}".

const (
	mrkBlank  = `\`
	mrkDollar = "{dollar}"
)

// WriteMRK writes rec in tag order, keeping field order within a tag.
func WriteMRK(w io.Writer, rec model.Record) error {
	bw := bufio.NewWriter(w)
	for _, tag := range rec.Tags() {
		for _, f := range rec[tag] {
			if _, err := bw.WriteString(MRKLine(tag, f) + "\n"); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// MRKLine renders one field.
func MRKLine(tag string, f model.Field) string {
	var b strings.Builder
	b.WriteString("=" + tag + "  ")
	if f.IsControl() {
		b.WriteString(escapeMRK(*f.ControlValue))
		return b.String()
	}
	b.WriteString(mrkIndicator(f.Ind1) + mrkIndicator(f.Ind2))
	for _, sf := range f.Subfields {
		b.WriteString("$" + sf.Code + escapeMRK(sf.Value))
	}
	return b.String()
}

func mrkIndicator(ind string) string {
	if ind == "" || ind == " " {
		return mrkBlank
	}
	return ind
}

func escapeMRK(s string) string { return strings.ReplaceAll(s, "$", mrkDollar) }

func unescapeMRK(s string) string { return strings.ReplaceAll(s, mrkDollar, "$") }

// ParseMRK reads the mnemonic form. Field numbers are assigned 1..n in input
// order. Blank lines and a leading "=LDR" line are skipped. Tags below "010"
// are read as control fields.
func ParseMRK(r io.Reader) (model.Record, error) {
	rec := model.Record{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo, next := 0, 1
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, "=") || len(line) < 4 {
			return nil, fmt.Errorf("line %d: expected =TAG", lineNo)
		}
		tag := line[1:4]
		if tag == "LDR" {
			continue
		}
		body := strings.TrimPrefix(line[4:], "  ")
		var f model.Field
		if tag < "010" {
			f = model.ControlField(unescapeMRK(body))
		} else {
			if len(body) < 2 {
				return nil, fmt.Errorf("line %d: missing indicators", lineNo)
			}
			f = model.DataField(parseIndicator(body[0:1]), parseIndicator(body[1:2]))
			rest := body[2:]
			if rest != "" && !strings.HasPrefix(rest, "$") {
				return nil, fmt.Errorf("line %d: expected $ after indicators", lineNo)
			}
			for _, part := range strings.Split(rest, "$")[1:] {
				if part == "" {
					return nil, fmt.Errorf("line %d: empty subfield", lineNo)
				}
				f.Subfields = append(f.Subfields, model.Subfield{Code: part[:1], Value: unescapeMRK(part[1:])})
			}
		}
		f.Number = next
		next++
		rec[tag] = append(rec[tag], f)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

func parseIndicator(s string) string {
	if s == mrkBlank || s == "#" || s == "_" {
		return " "
	}
	return s
}
