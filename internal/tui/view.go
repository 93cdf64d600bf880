package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bibedit-cli/internal/engine"
	"bibedit-cli/internal/marc"
)

func (m *appModel) View() string {
	switch {
	case m.alert != "":
		return m.overlay(renderConfirmModal(m.width, "Protected field", m.alert, "OK", "", confirmFocusConfirm))
	case m.showHelp:
		return m.overlay(renderModalBox(m.width, "Help", helpPage("keys", modalBodyWidth(m.width))))
	case m.confirm != confirmNone:
		return m.overlay(renderConfirmModal(m.width, "Confirm", m.confirmBody, "Yes", "No", m.confirmFocus))
	case m.prompt != promptNone:
		m.input.Width = modalBodyWidth(m.width) - 2
		return m.overlay(renderModalBox(m.width, m.prompt.title(), renderInputLine(modalBodyWidth(m.width), m.input.View())))
	}
	return m.page()
}

func (m *appModel) overlay(box string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m *appModel) page() string {
	var b strings.Builder
	b.WriteString(m.headerLine())
	b.WriteString("\n")

	bodyH := m.height - 4
	if bodyH < 1 {
		bodyH = 1
	}
	lines := m.bodyLines()
	start := 0
	if m.cursor >= bodyH {
		start = m.cursor - bodyH + 1
	}
	for i := start; i < len(lines) && i < start+bodyH; i++ {
		b.WriteString(lines[i])
		b.WriteString("\n")
	}
	for i := len(lines) - start; i < bodyH; i++ {
		b.WriteString("\n")
	}
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.helpLine())
	return b.String()
}

func (m *appModel) headerLine() string {
	title := "bibedit"
	if id := m.session.RecID(); id > 0 {
		title = fmt.Sprintf("bibedit  record %d", id)
		if m.session.Loaded() {
			if t := m.session.Record().Title(); t != "" {
				title += "  " + t
			}
		}
	}
	mode := m.session.Mode().String()
	if m.session.Dirty() {
		mode += " *"
	}
	right := styleMuted().Render(mode)
	left := styleHeader.Render(truncate(title, m.width-lipgloss.Width(right)-4))
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m *appModel) bodyLines() []string {
	rows := m.rows()
	if len(rows) == 0 {
		if m.screen.message != "" {
			return []string{"", "  " + styleOK.Render(m.screen.message)}
		}
		return []string{"", styleMuted().Render("  press o to open a record, ? for help")}
	}
	lines := make([]string, 0, len(rows))
	for i, r := range rows {
		line := m.rowText(r)
		if m.marked[r.key] {
			line = styleMarked.Render(line)
		}
		line = truncate(line, m.width-2)
		if i == m.cursor {
			line = styleSelected.Width(m.width).Render(line)
		}
		lines = append(lines, line)
	}
	return lines
}

func (m *appModel) rowText(r row) string {
	f := r.field
	if r.isField() {
		label := styleTag.Render(m.formatter.FieldTag(marc.FieldRef(r.key.Tag, f)))
		if f.IsControl() {
			return label + "  " + *f.ControlValue
		}
		return label
	}
	sf := f.Subfields[r.key.Sub]
	code := styleCode.Render(m.formatter.SubfieldTag(marc.SubfieldRef(r.key.Tag, f, sf.Code)))
	return "    " + code + "  " + sf.Value
}

func (m *appModel) statusLine() string {
	if m.flash != "" {
		return styleError.Render(truncate(m.flash, m.width))
	}
	text := m.screen.statusText
	switch m.screen.status {
	case engine.StatusError:
		return styleError.Render(truncate(text, m.width))
	case engine.StatusUpdating:
		if text == "" {
			text = "Saving…"
		}
		return styleAccent.Render(truncate(text, m.width))
	case engine.StatusReport:
		return styleOK.Render(truncate(text, m.width))
	}
	if m.session.Loaded() && m.screen.message != "" {
		return styleOK.Render(truncate(m.screen.message, m.width))
	}
	return ""
}

func (m *appModel) helpLine() string {
	parts := make([]string, 0, len(m.keys.shortHelp()))
	for _, b := range m.keys.shortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return styleMuted().Render(truncate(strings.Join(parts, "  "), m.width))
}
