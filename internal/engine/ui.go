package engine

import "bibedit-cli/internal/model"

type Status int

const (
	StatusReady Status = iota
	StatusUpdating
	StatusReport
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusUpdating:
		return "updating"
	case StatusReport:
		return "report"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// UI is the presentation side of a session. All calls happen on the session's
// goroutine.
type UI interface {
	SetStatus(st Status, text string)
	// ShowMessage puts a message in the display area ("Confirm: Submitted").
	ShowMessage(text string)
	// Alert is a blocking notice, used for protected field rejections.
	Alert(text string)
	// SetSearch fills the record id search input.
	SetSearch(text string)
	// Render redraws the record; nil clears the display.
	Render(rec model.Record)
}

// NopUI discards everything.
type NopUI struct{}

func (NopUI) SetStatus(Status, string) {}
func (NopUI) ShowMessage(string)       {}
func (NopUI) Alert(string)             {}
func (NopUI) SetSearch(string)         {}
func (NopUI) Render(model.Record)      {}
