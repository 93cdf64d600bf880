package engine

import (
	"fmt"
	"io"
	"sync"

	"bibedit-cli/internal/format"
	"bibedit-cli/internal/model"
)

// TextUI writes session events as plain lines, for headless runs. With
// ShowRecords set each render prints the record in mnemonic form.
type TextUI struct {
	Out         io.Writer
	ShowRecords bool

	mu       sync.Mutex
	status   Status
	text     string
	messages []string
	alerts   []string
}

func (u *TextUI) SetStatus(st Status, text string) {
	u.mu.Lock()
	u.status, u.text = st, text
	u.mu.Unlock()
	if text != "" && (st == StatusReport || st == StatusError) {
		fmt.Fprintf(u.Out, "%s: %s\n", st, text)
	}
}

func (u *TextUI) ShowMessage(text string) {
	if text == "" {
		return
	}
	u.mu.Lock()
	u.messages = append(u.messages, text)
	u.mu.Unlock()
	fmt.Fprintln(u.Out, text)
}

func (u *TextUI) Alert(text string) {
	u.mu.Lock()
	u.alerts = append(u.alerts, text)
	u.mu.Unlock()
	fmt.Fprintf(u.Out, "alert: %s\n", text)
}

func (u *TextUI) SetSearch(string) {}

func (u *TextUI) Render(rec model.Record) {
	if !u.ShowRecords || rec == nil {
		return
	}
	_ = format.WriteMRK(u.Out, rec)
}

// Status returns the last status and its text.
func (u *TextUI) Status() (Status, string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status, u.text
}

func (u *TextUI) Messages() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.messages...)
}

func (u *TextUI) Alerts() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.alerts...)
}
