package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up           key.Binding
	Down         key.Binding
	Edit         key.Binding
	AddSubfields key.Binding
	AddField     key.Binding
	MoveDown     key.Binding
	MoveUp       key.Binding
	Mark         key.Binding
	Delete       key.Binding
	ToggleTags   key.Binding
	Open         key.Binding
	Command      key.Binding
	Submit       key.Binding
	Cancel       key.Binding
	DeleteRecord key.Binding
	Back         key.Binding
	Forward      key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:           key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:         key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Edit:         key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit")),
		AddSubfields: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add subfields")),
		AddField:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new field")),
		MoveDown:     key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
		MoveUp:       key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
		Mark:         key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "mark")),
		Delete:       key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete marked")),
		ToggleTags:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tag names")),
		Open:         key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		Command:      key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "command")),
		Submit:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "submit")),
		Cancel:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")),
		DeleteRecord: key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "delete record")),
		Back:         key.NewBinding(key.WithKeys("["), key.WithHelp("[", "back")),
		Forward:      key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "forward")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// shortHelp is the footer hint line.
func (k keyMap) shortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.AddSubfields, k.AddField, k.Mark, k.Delete, k.Submit, k.Cancel, k.Help, k.Quit}
}
