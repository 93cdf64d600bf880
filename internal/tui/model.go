package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"bibedit-cli/internal/command"
	"bibedit-cli/internal/engine"
	"bibedit-cli/internal/model"
	"bibedit-cli/internal/nav"
	"bibedit-cli/internal/record"
	"bibedit-cli/internal/syncproto"
	"bibedit-cli/internal/tagfmt"
)

type outcomeMsg struct{ o syncproto.Outcome }

type pollMsg struct{}

type promptKind int

const (
	promptNone promptKind = iota
	promptEdit
	promptAdd
	promptAddField
	promptOpen
	promptCommand
)

func (k promptKind) title() string {
	switch k {
	case promptEdit:
		return "Edit value"
	case promptAdd:
		return "Add subfields (code=value ...)"
	case promptAddField:
		return "New field (tag ind1ind2 code=value ... | tag =value)"
	case promptOpen:
		return "Open record"
	case promptCommand:
		return "Command"
	default:
		return ""
	}
}

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmPartial
	confirmDeleteFields
	confirmDeleteRecord
)

type appModel struct {
	session   *engine.Session
	screen    *screen
	outcomes  <-chan syncproto.Outcome
	poller    *nav.Poller
	formatter *tagfmt.Formatter
	keys      keyMap
	log       zerolog.Logger

	width  int
	height int

	cursor int
	marked map[rowKey]bool
	recID  int

	prompt    promptKind
	promptRow rowKey
	input     textinput.Model

	confirm      confirmKind
	confirmFocus confirmFocus
	confirmBody  string
	pending      command.Command

	alert    string
	showHelp bool
	flash    string
}

func newModel(session *engine.Session, scr *screen, outcomes <-chan syncproto.Outcome, poller *nav.Poller, formatter *tagfmt.Formatter, logger zerolog.Logger) *appModel {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 0
	if formatter == nil {
		formatter = &tagfmt.Formatter{Format: tagfmt.FormatMARC}
	}
	return &appModel{
		session:   session,
		screen:    scr,
		outcomes:  outcomes,
		poller:    poller,
		formatter: formatter,
		keys:      defaultKeyMap(),
		log:       logger,
		width:     80,
		height:    24,
		marked:    map[rowKey]bool{},
		input:     in,
	}
}

func waitOutcome(ch <-chan syncproto.Outcome) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		o, ok := <-ch
		if !ok {
			return nil
		}
		return outcomeMsg{o: o}
	}
}

func waitPoll(p *nav.Poller) tea.Cmd {
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		<-p.C()
		return pollMsg{}
	}
}

func (m *appModel) Init() tea.Cmd {
	m.session.Poll()
	return tea.Batch(waitOutcome(m.outcomes), waitPoll(m.poller))
}

func (m *appModel) rows() []row {
	if !m.session.Loaded() {
		return nil
	}
	return flattenRecord(m.session.Record())
}

func (m *appModel) selected() (row, bool) {
	rows := m.rows()
	if len(rows) == 0 {
		return row{}, false
	}
	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}
	return rows[m.cursor], true
}

// sync drops marks and the cursor when the session moved to another record,
// and raises the next queued alert.
func (m *appModel) sync() {
	if id := m.session.RecID(); id != m.recID || !m.session.Loaded() {
		m.recID = id
		m.cursor = 0
		m.marked = map[rowKey]bool{}
	}
	if n := len(m.rows()); m.cursor >= n && n > 0 {
		m.cursor = n - 1
	}
	if m.alert == "" {
		if a, ok := m.screen.popAlert(); ok {
			m.alert = a
		}
	}
}

func (m *appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case outcomeMsg:
		m.session.HandleOutcome(msg.o)
		m.sync()
		return m, waitOutcome(m.outcomes)
	case pollMsg:
		m.session.Poll()
		m.poller.Rearm()
		m.sync()
		return m, waitPoll(m.poller)
	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		m.sync()
		return m, cmd
	}
	return m, nil
}

func (m *appModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case m.alert != "":
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc || msg.String() == " " {
			m.alert = ""
		}
		return nil
	case m.showHelp:
		if msg.Type == tea.KeyEsc || key.Matches(msg, m.keys.Help) || msg.String() == "q" {
			m.showHelp = false
		}
		return nil
	case m.confirm != confirmNone:
		m.handleConfirmKey(msg)
		return nil
	case m.prompt != promptNone:
		return m.handlePromptKey(msg)
	}

	m.flash = ""
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return tea.Quit
	case key.Matches(msg, k.Help):
		m.showHelp = true
	case key.Matches(msg, k.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, k.Down):
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}
	case key.Matches(msg, k.ToggleTags):
		m.flash = "tags: " + string(m.formatter.Toggle())
	case key.Matches(msg, k.Open):
		m.openPrompt(promptOpen, rowKey{}, "")
	case key.Matches(msg, k.Command):
		m.openPrompt(promptCommand, rowKey{}, "")
	case key.Matches(msg, k.Back):
		m.session.Back()
	case key.Matches(msg, k.Forward):
		m.session.Forward()
	case key.Matches(msg, k.Edit):
		m.startEdit()
	case key.Matches(msg, k.AddSubfields):
		if r, ok := m.selected(); ok {
			m.openPrompt(promptAdd, r.key, "")
		}
	case key.Matches(msg, k.AddField):
		if m.session.Loaded() {
			m.openPrompt(promptAddField, rowKey{}, "")
		}
	case key.Matches(msg, k.MoveDown):
		m.move(1)
	case key.Matches(msg, k.MoveUp):
		m.move(-1)
	case key.Matches(msg, k.Mark):
		if r, ok := m.selected(); ok {
			if m.marked[r.key] {
				delete(m.marked, r.key)
			} else {
				m.marked[r.key] = true
			}
			if m.cursor < len(m.rows())-1 {
				m.cursor++
			}
		}
	case key.Matches(msg, k.Delete):
		m.deleteMarked()
	case key.Matches(msg, k.Submit):
		m.exec(command.Command{Kind: command.KindSubmit})
	case key.Matches(msg, k.Cancel):
		m.exec(command.Command{Kind: command.KindCancel})
	case key.Matches(msg, k.DeleteRecord):
		if m.session.Loaded() {
			m.askConfirm(confirmDeleteRecord, fmt.Sprintf("Delete record %d?", m.session.RecID()), command.Command{Kind: command.KindDeleteRecord})
		}
	}
	return nil
}

func (m *appModel) openPrompt(kind promptKind, target rowKey, value string) {
	m.prompt = kind
	m.promptRow = target
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *appModel) closePrompt() {
	m.prompt = promptNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m *appModel) startEdit() {
	r, ok := m.selected()
	if !ok {
		return
	}
	switch {
	case r.field.IsControl():
		k := r.key
		k.Sub = record.NoSubfield
		m.openPrompt(promptEdit, k, *r.field.ControlValue)
	case !r.isField():
		m.openPrompt(promptEdit, r.key, r.field.Subfields[r.key.Sub].Value)
	default:
		m.flash = "select a subfield to edit"
	}
}

func (m *appModel) move(delta int) {
	r, ok := m.selected()
	if !ok || r.isField() {
		return
	}
	to := r.key.Sub + delta
	if to < 0 || to >= len(r.field.Subfields) {
		return
	}
	if m.exec(command.Command{Kind: command.KindMove, Tag: r.key.Tag, FieldNumber: r.key.Number, From: r.key.Sub, To: to}) == nil {
		m.cursor += delta
	}
}

func (m *appModel) deleteMarked() {
	plan := deletionPlan(m.rows(), m.marked)
	if len(plan) == 0 {
		if r, ok := m.selected(); ok {
			plan = deletionPlan([]row{r}, map[rowKey]bool{r.key: true})
		}
	}
	if len(plan) == 0 {
		return
	}
	cmd := command.Command{Kind: command.KindDelete, Plan: plan}
	if plan.WholeFields() {
		m.askConfirm(confirmDeleteFields, fmt.Sprintf("Delete %d whole field(s)?", countWhole(plan)), cmd)
		return
	}
	if m.exec(cmd) == nil {
		m.marked = map[rowKey]bool{}
	}
}

func (m *appModel) askConfirm(kind confirmKind, body string, cmd command.Command) {
	m.confirm = kind
	m.confirmBody = body
	m.confirmFocus = confirmFocusConfirm
	m.pending = cmd
}

func (m *appModel) handleConfirmKey(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyLeft, tea.KeyRight:
		if m.confirmFocus == confirmFocusConfirm {
			m.confirmFocus = confirmFocusCancel
		} else {
			m.confirmFocus = confirmFocusConfirm
		}
		return
	case tea.KeyEsc:
		m.confirm = confirmNone
		return
	case tea.KeyEnter:
	default:
		switch msg.String() {
		case "y":
			m.confirmFocus = confirmFocusConfirm
		case "n":
			m.confirm = confirmNone
			return
		default:
			return
		}
	}
	kind := m.confirm
	m.confirm = confirmNone
	if m.confirmFocus != confirmFocusConfirm {
		return
	}
	cmd := m.pending
	if kind == confirmPartial {
		cmd.AcceptPartial = true
	}
	if m.exec(cmd) == nil && kind == confirmDeleteFields {
		m.marked = map[rowKey]bool{}
	}
}

func (m *appModel) handlePromptKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.closePrompt()
		return nil
	case tea.KeyEnter:
		kind, target, value := m.prompt, m.promptRow, m.input.Value()
		m.closePrompt()
		m.submitPrompt(kind, target, value)
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *appModel) submitPrompt(kind promptKind, target rowKey, value string) {
	switch kind {
	case promptEdit:
		m.exec(command.Command{Kind: command.KindEdit, Tag: target.Tag, FieldNumber: target.Number, Index: target.Sub, Value: value})
	case promptAdd:
		m.execLine(fmt.Sprintf("add %s %d %s", target.Tag, target.Number, value))
	case promptAddField:
		m.execLine("addfield " + value)
	case promptOpen:
		id, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || id <= 0 {
			m.flash = "record id must be a positive number"
			return
		}
		m.session.Open(id)
	case promptCommand:
		m.execLine(value)
	}
}

func (m *appModel) execLine(line string) {
	cmd, err := command.Parse(line)
	if err != nil {
		m.flash = err.Error()
		return
	}
	if cmd.Kind == command.KindWait {
		m.flash = "wait is only available in scripts"
		return
	}
	m.exec(cmd)
}

// exec runs cmd against the session. A batch of subfield rows with invalid
// entries asks before dropping them.
func (m *appModel) exec(cmd command.Command) error {
	err := command.Exec(m.session, cmd)
	var pe engine.PartialInputError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &pe):
		m.askConfirm(confirmPartial, pe.Error()+". Add only the valid rows?", cmd)
	case errors.Is(err, engine.ErrNoRecord):
		m.flash = "no record open"
	case m.alert == "" && len(m.screen.alerts) == 0:
		m.flash = err.Error()
	}
	m.log.Debug().Err(err).Str("command", string(cmd.Kind)).Msg("command rejected")
	return err
}

func countWhole(plan model.DeletionPlan) int {
	n := 0
	for _, d := range plan {
		if d.Scope == model.ScopeWholeField {
			n++
		}
	}
	return n
}
