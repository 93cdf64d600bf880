package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"bibedit-cli/internal/engine"
	"bibedit-cli/internal/marc"
	"bibedit-cli/internal/model"
	"bibedit-cli/internal/nav"
	"bibedit-cli/internal/protect"
	"bibedit-cli/internal/syncproto"
	"bibedit-cli/internal/tagfmt"
)

type fakeSender struct {
	next int64
	sent []syncproto.Request
}

func (f *fakeSender) Send(req syncproto.Request) int64 {
	f.next++
	req.ID = f.next
	f.sent = append(f.sent, req)
	return req.ID
}

func (f *fakeSender) last() syncproto.Request { return f.sent[len(f.sent)-1] }

func sf(code, value string) model.Subfield { return model.Subfield{Code: code, Value: value} }

// Rows: 0 "100__", 1 "$$a", 2 "24510", 3 "$$a", 4 "$$b".
func testRecord() model.Record {
	author := model.DataField(" ", " ", sf("a", "Doe, John"))
	author.Number = 1
	title := model.DataField("1", "0", sf("a", "Title"), sf("b", "sub"))
	title.Number = 2
	return model.Record{"100": {author}, "245": {title}}
}

func newTestModel(t *testing.T, protected ...string) (*appModel, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	scr := &screen{}
	s := engine.NewSession(scr, sender, nav.NewLocation(""), engine.Options{
		Validator: marc.Validator{},
		Policy:    protect.NewPolicy(protected),
		Logger:    zerolog.Nop(),
	})
	m := newModel(s, scr, nil, nil, &tagfmt.Formatter{Format: tagfmt.FormatMARC}, zerolog.Nop())

	s.Open(7)
	req := sender.last()
	if req.RequestType != syncproto.TypeGetRecord {
		t.Fatalf("expected getRecord, got %q", req.RequestType)
	}
	m = update(t, m, outcomeMsg{o: syncproto.Outcome{
		Request:  req,
		Response: syncproto.Response{ID: req.ID, RecID: 7, ResultText: "Record loaded", Record: testRecord()},
	}})
	if !s.Loaded() {
		t.Fatalf("expected record loaded")
	}
	return m, sender
}

func update(t *testing.T, m *appModel, msg tea.Msg) *appModel {
	t.Helper()
	next, _ := m.Update(msg)
	mm, ok := next.(*appModel)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return mm
}

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func press(t *testing.T, m *appModel, keys ...string) *appModel {
	t.Helper()
	for _, k := range keys {
		switch k {
		case "enter":
			m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		case "esc":
			m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
		case "tab":
			m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
		case "space":
			m = update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
		default:
			m = update(t, m, keyRunes(k))
		}
	}
	return m
}

func TestLoadShowsRecordRows(t *testing.T) {
	m, _ := newTestModel(t)
	if got := len(m.rows()); got != 5 {
		t.Fatalf("expected 5 rows, got %d", got)
	}
	v := m.View()
	for _, want := range []string{"record 7", "100__", "24510", "Title", "Record loaded"} {
		if !strings.Contains(v, want) {
			t.Fatalf("expected view to contain %q\n%s", want, v)
		}
	}
}

func TestEditSubfieldValue(t *testing.T) {
	m, sender := newTestModel(t)
	m = press(t, m, "j", "j", "j", "enter")
	if m.prompt != promptEdit {
		t.Fatalf("expected edit prompt, got %v", m.prompt)
	}
	if got := m.input.Value(); got != "Title" {
		t.Fatalf("expected prefilled value, got %q", got)
	}
	m.input.SetValue("New title")
	m = press(t, m, "enter")

	req := sender.last()
	if req.RequestType != syncproto.TypeModifyContent || req.Tag != "245" || req.FieldNumber != 2 {
		t.Fatalf("unexpected request %+v", req)
	}
	if got := m.session.Record()["245"][0].Subfields[0].Value; got != "New title" {
		t.Fatalf("expected edited value, got %q", got)
	}
	if m.prompt != promptNone {
		t.Fatalf("expected prompt closed")
	}
}

func TestEscClosesPromptWithoutSending(t *testing.T) {
	m, sender := newTestModel(t)
	before := len(sender.sent)
	m = press(t, m, "j", "enter", "esc")
	if m.prompt != promptNone {
		t.Fatalf("expected prompt closed")
	}
	if len(sender.sent) != before {
		t.Fatalf("expected nothing sent")
	}
}

func TestMarkSubfieldAndDelete(t *testing.T) {
	m, sender := newTestModel(t)
	m = press(t, m, "j", "j", "j", "j", "space", "d")
	if m.confirm != confirmNone {
		t.Fatalf("subfield deletion should not ask")
	}
	req := sender.last()
	if req.RequestType != syncproto.TypeDeleteFields || len(req.ToDelete) != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
	if got := len(m.session.Record()["245"][0].Subfields); got != 1 {
		t.Fatalf("expected 1 subfield left, got %d", got)
	}
	if len(m.marked) != 0 {
		t.Fatalf("expected marks cleared")
	}
}

func TestDeleteWholeFieldAsksFirst(t *testing.T) {
	m, sender := newTestModel(t)
	before := len(sender.sent)
	m = press(t, m, "space", "d")
	if m.confirm != confirmDeleteFields {
		t.Fatalf("expected delete confirmation, got %v", m.confirm)
	}
	if !strings.Contains(m.View(), "Delete 1 whole field(s)?") {
		t.Fatalf("expected confirm body in view")
	}
	if len(sender.sent) != before {
		t.Fatalf("nothing should be sent before confirming")
	}

	m = press(t, m, "enter")
	if sender.last().RequestType != syncproto.TypeDeleteFields {
		t.Fatalf("expected deleteFields, got %q", sender.last().RequestType)
	}
	if len(m.session.Record()["100"]) != 0 {
		t.Fatalf("expected 100 removed")
	}
}

func TestDeleteConfirmationCanBeDeclined(t *testing.T) {
	m, sender := newTestModel(t)
	before := len(sender.sent)
	m = press(t, m, "space", "d", "tab", "enter")
	if m.confirm != confirmNone {
		t.Fatalf("expected confirmation closed")
	}
	if len(sender.sent) != before {
		t.Fatalf("declined deletion must not send")
	}
	if len(m.session.Record()["100"]) != 1 {
		t.Fatalf("expected 100 kept")
	}
}

func TestProtectedEditRaisesAlert(t *testing.T) {
	m, sender := newTestModel(t, "100")
	before := len(sender.sent)
	m = press(t, m, "j", "enter")
	m.input.SetValue("Roe, Jane")
	m = press(t, m, "enter")

	if !strings.Contains(m.alert, "100__a") {
		t.Fatalf("expected protected alert, got %q", m.alert)
	}
	if !strings.Contains(m.View(), "Protected field") {
		t.Fatalf("expected alert modal")
	}
	if len(sender.sent) != before {
		t.Fatalf("protected edit must not send")
	}
	m = press(t, m, "enter")
	if m.alert != "" {
		t.Fatalf("expected alert dismissed")
	}
}

func TestPartialRowsAskBeforeAdding(t *testing.T) {
	m, sender := newTestModel(t)
	m = press(t, m, "j", "j", "a")
	if m.prompt != promptAdd {
		t.Fatalf("expected add prompt")
	}
	m.input.SetValue("c=Someone =missing")
	m = press(t, m, "enter")
	if m.confirm != confirmPartial {
		t.Fatalf("expected partial confirmation, got %v", m.confirm)
	}

	m = press(t, m, "enter")
	req := sender.last()
	if req.RequestType != syncproto.TypeAddSubfields || len(req.Subfields) != 1 || req.Subfields[0].Code != "c" {
		t.Fatalf("unexpected request %+v", req)
	}
	if got := len(m.session.Record()["245"][0].Subfields); got != 3 {
		t.Fatalf("expected 3 subfields, got %d", got)
	}
}

func TestAddFieldPrompt(t *testing.T) {
	m, sender := newTestModel(t)
	m = press(t, m, "n")
	m.input.SetValue("650 _0 a=Dune")
	m = press(t, m, "enter")
	req := sender.last()
	if req.RequestType != syncproto.TypeAddField || req.Tag != "650" {
		t.Fatalf("unexpected request %+v", req)
	}
	if len(m.session.Record()["650"]) != 1 {
		t.Fatalf("expected new 650 field")
	}
}

func TestMoveSubfieldFollowsCursor(t *testing.T) {
	m, sender := newTestModel(t)
	m = press(t, m, "j", "j", "j", "J")
	req := sender.last()
	if req.RequestType != syncproto.TypeMoveSubfield {
		t.Fatalf("expected move, got %q", req.RequestType)
	}
	if got := m.session.Record()["245"][0].Subfields[1].Code; got != "a" {
		t.Fatalf("expected $a moved down, got %q", got)
	}
	if m.cursor != 4 {
		t.Fatalf("expected cursor to follow, got %d", m.cursor)
	}
}

func TestSubmitShowsConfirmationMessage(t *testing.T) {
	m, sender := newTestModel(t)
	m = press(t, m, "s")
	if sender.last().RequestType != syncproto.TypeSubmit {
		t.Fatalf("expected submit, got %q", sender.last().RequestType)
	}
	if m.session.Loaded() {
		t.Fatalf("expected display cleared")
	}
	if !strings.Contains(m.View(), engine.MsgSubmitted) {
		t.Fatalf("expected submitted message in view")
	}
}

func TestCommandPrompt(t *testing.T) {
	m, sender := newTestModel(t)
	m = press(t, m, ":")
	m.input.SetValue("edit 245 2 1 'new sub'")
	m = press(t, m, "enter")
	if sender.last().RequestType != syncproto.TypeModifyContent {
		t.Fatalf("expected modifyContent, got %q", sender.last().RequestType)
	}

	m = press(t, m, ":")
	m.input.SetValue("bogus")
	m = press(t, m, "enter")
	if m.flash == "" {
		t.Fatalf("expected parse error shown")
	}
}

func TestToggleTagsAndHelp(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, "t")
	if m.formatter.Format != tagfmt.FormatHuman {
		t.Fatalf("expected human tags")
	}
	m = press(t, m, "?")
	if !m.showHelp || !strings.Contains(m.View(), "Help") {
		t.Fatalf("expected help overlay")
	}
	m = press(t, m, "esc")
	if m.showHelp {
		t.Fatalf("expected help closed")
	}
}

func TestDeletionPlanFromMarks(t *testing.T) {
	rows := flattenRecord(testRecord())
	marked := map[rowKey]bool{
		{Tag: "100", Number: 1, Sub: -1}: true,
		{Tag: "100", Number: 1, Sub: 0}:  true,
		{Tag: "245", Number: 2, Sub: 1}:  true,
	}
	plan := deletionPlan(rows, marked)
	if len(plan) != 2 {
		t.Fatalf("expected 2 entries, got %+v", plan)
	}
	if plan[0].Scope != model.ScopeWholeField || plan[0].Subfields != nil {
		t.Fatalf("expected whole 100, got %+v", plan[0])
	}
	if plan[1].Scope != model.ScopeSubfields || len(plan[1].Subfields) != 1 || plan[1].Subfields[0] != 1 {
		t.Fatalf("expected 245 subfield 1, got %+v", plan[1])
	}
}
