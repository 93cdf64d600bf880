package tui

import (
	"bibedit-cli/internal/engine"
	"bibedit-cli/internal/model"
)

// screen is the engine.UI the session reports into. The session runs on the
// Bubble Tea update goroutine, so no locking is needed.
type screen struct {
	status     engine.Status
	statusText string
	message    string
	alerts     []string
	search     string
	rendered   bool
}

var _ engine.UI = (*screen)(nil)

func (s *screen) SetStatus(st engine.Status, text string) {
	s.status = st
	s.statusText = text
}

func (s *screen) ShowMessage(text string) { s.message = text }

// Alert queues a notice; the model shows queued alerts one at a time.
func (s *screen) Alert(text string) { s.alerts = append(s.alerts, text) }

func (s *screen) SetSearch(text string) { s.search = text }

func (s *screen) Render(rec model.Record) {
	s.rendered = rec != nil
	if rec != nil {
		s.message = ""
	}
}

func (s *screen) popAlert() (string, bool) {
	if len(s.alerts) == 0 {
		return "", false
	}
	a := s.alerts[0]
	s.alerts = s.alerts[1:]
	return a, true
}
