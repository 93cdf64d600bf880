package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bibedit-cli/internal/model"
	"bibedit-cli/internal/store"
	"bibedit-cli/internal/tagfmt"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Store{Dir: t.TempDir()}.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func duneRecord() model.Record {
	id := model.ControlField("42")
	id.Number = 1
	title := model.DataField("1", "0",
		model.Subfield{Code: "a", Value: "Dune | Messiah"},
		model.Subfield{Code: "c", Value: "Frank Herbert"},
	)
	title.Number = 2
	return model.Record{"001": {id}, "245": {title}}
}

func TestRenderRecordMarkdown_FieldsAndHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.Put(ctx, 5, duneRecord()); err != nil {
		t.Fatalf("put: %v", err)
	}
	payload := map[string]any{"tag": "245", "fieldNumber": 2}
	if _, err := db.AppendChange(ctx, 5, 1, "submit", "alice", payload); err != nil {
		t.Fatalf("append: %v", err)
	}

	f := &tagfmt.Formatter{
		Names:  map[string]string{"245%": "Title statement", "%%%%%a": "Main entry"},
		Format: tagfmt.FormatHuman,
	}
	md, err := RenderRecordMarkdown(ctx, db, 5, RenderOptions{IncludeHistory: true, Formatter: f})
	if err != nil {
		t.Fatalf("RenderRecordMarkdown: %v", err)
	}
	if !strings.HasPrefix(md, "# Dune | Messiah\n") {
		t.Fatalf("expected title header, got:\n%s", md)
	}
	if !strings.Contains(md, "| Title statement (24510) | Main entry | Dune \\| Messiah |") {
		t.Fatalf("expected labelled, escaped subfield row, got:\n%s", md)
	}
	if !strings.Contains(md, "|  | $$c | Frank Herbert |") {
		t.Fatalf("expected continuation row, got:\n%s", md)
	}
	if !strings.Contains(md, "| 001 | | 42 |") {
		t.Fatalf("expected control row, got:\n%s", md)
	}
	if !strings.Contains(md, "## History") || !strings.Contains(md, "submit by alice (245 #2)") {
		t.Fatalf("expected history section, got:\n%s", md)
	}

	md, err = RenderRecordMarkdown(ctx, db, 5, RenderOptions{})
	if err != nil {
		t.Fatalf("RenderRecordMarkdown: %v", err)
	}
	if strings.Contains(md, "## History") || !strings.Contains(md, "| 24510 | $$a |") {
		t.Fatalf("expected raw labels without history, got:\n%s", md)
	}

	if _, err := RenderRecordMarkdown(ctx, db, 99, RenderOptions{}); err == nil {
		t.Fatalf("expected missing record error")
	}
}

func TestWriteAll_WritesIndexAndRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)

	for _, id := range []int{3, 4} {
		if err := db.Put(ctx, id, duneRecord()); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	dir := t.TempDir()
	res, err := WriteAll(ctx, db, dir, WriteOptions{})
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(res.Written) != 3 {
		t.Fatalf("expected index and two pages, got %v", res.Written)
	}
	index, err := os.ReadFile(filepath.Join(dir, "index.md"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if !strings.Contains(string(index), "(records/3.md)") || !strings.Contains(string(index), "(records/4.md)") {
		t.Fatalf("expected links to records, got:\n%s", index)
	}
	if _, err := os.Stat(filepath.Join(dir, "records", "4.md")); err != nil {
		t.Fatalf("expected record page: %v", err)
	}

	if _, err := WriteAll(ctx, db, dir, WriteOptions{}); err == nil {
		t.Fatalf("expected existing file error")
	}
	if _, err := WriteAll(ctx, db, dir, WriteOptions{Overwrite: true}); err != nil {
		t.Fatalf("WriteAll overwrite: %v", err)
	}
	if _, err := WriteRecord(ctx, db, 3, "", WriteOptions{}); err == nil {
		t.Fatalf("expected missing --to error")
	}
}
