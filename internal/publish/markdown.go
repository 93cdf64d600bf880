package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bibedit-cli/internal/marc"
	"bibedit-cli/internal/model"
	"bibedit-cli/internal/store"
	"bibedit-cli/internal/tagfmt"
)

type RenderOptions struct {
	IncludeHistory bool
	// Formatter labels fields; nil prints raw references.
	Formatter *tagfmt.Formatter
}

func (o RenderOptions) fieldLabel(tag string, f model.Field) string {
	ref := marc.FieldRef(tag, f)
	if o.Formatter == nil {
		return ref
	}
	if name := o.Formatter.FieldTag(ref); name != ref {
		return name + " (" + ref + ")"
	}
	return ref
}

func (o RenderOptions) subfieldLabel(tag string, f model.Field, code string) string {
	if o.Formatter == nil {
		return "$$" + code
	}
	return o.Formatter.SubfieldTag(marc.SubfieldRef(tag, f, code))
}

// escapeCell keeps a value inside one markdown table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", "<br>")
	return strings.ReplaceAll(s, "\n", "<br>")
}

// RenderRecordMarkdown renders the committed copy of recID as a page.
func RenderRecordMarkdown(ctx context.Context, db *store.DB, recID int, opt RenderOptions) (string, error) {
	if db == nil {
		return "", fmt.Errorf("missing db")
	}
	rec, err := db.Get(ctx, recID)
	if err != nil {
		return "", fmt.Errorf("record %d: %w", recID, err)
	}

	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	title := strings.TrimSpace(rec.Title())
	if title == "" {
		title = fmt.Sprintf("Record %d", recID)
	}
	writeLn("# " + title)
	writeLn("")

	writeLn("## Meta")
	writeLn("")
	writeLn(fmt.Sprintf("- Record: %d", recID))
	writeLn(fmt.Sprintf("- Fields: %d", rec.FieldCount()))
	writeLn("")

	writeLn("## Fields")
	writeLn("")
	writeLn("| Field | Subfield | Value |")
	writeLn("|-------|----------|-------|")
	for _, tag := range rec.Tags() {
		for _, f := range rec[tag] {
			label := escapeCell(opt.fieldLabel(tag, f))
			if f.IsControl() {
				writeLn("| " + label + " | | " + escapeCell(*f.ControlValue) + " |")
				continue
			}
			for i, sf := range f.Subfields {
				cell := label
				if i > 0 {
					cell = ""
				}
				writeLn("| " + cell + " | " + escapeCell(opt.subfieldLabel(tag, f, sf.Code)) + " | " + escapeCell(sf.Value) + " |")
			}
		}
	}

	if opt.IncludeHistory {
		cs, err := db.Changes(ctx, recID, 0)
		if err != nil {
			return "", err
		}
		if len(cs) > 0 {
			writeLn("")
			writeLn("## History")
			writeLn("")
			for _, c := range cs {
				writeLn("- " + historyLine(c))
			}
		}
	}

	return buf.String(), nil
}

func historyLine(c store.Change) string {
	line := c.CreatedAt.UTC().Format(time.RFC3339) + " " + c.Type
	if c.Owner != "" {
		line += " by " + c.Owner
	}
	var req struct {
		Tag         string `json:"tag"`
		FieldNumber int    `json:"fieldNumber"`
	}
	if err := json.Unmarshal(c.Payload, &req); err == nil && req.Tag != "" {
		line += fmt.Sprintf(" (%s #%d)", req.Tag, req.FieldNumber)
	}
	return line
}

// RenderIndexMarkdown lists records with links to their pages.
func RenderIndexMarkdown(infos []store.RecordInfo) string {
	var buf bytes.Buffer
	buf.WriteString("# Records\n\n")
	if len(infos) == 0 {
		buf.WriteString("_No records._\n")
		return buf.String()
	}
	for _, info := range infos {
		title := strings.TrimSpace(info.Title)
		if title == "" {
			title = fmt.Sprintf("Record %d", info.RecID)
		}
		line := fmt.Sprintf("- [%s](records/%d.md)", title, info.RecID)
		if info.HasDraft {
			line += " (draft open)"
		}
		buf.WriteString(line + "\n")
	}
	return buf.String()
}
