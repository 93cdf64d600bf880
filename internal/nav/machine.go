package nav

import "bibedit-cli/internal/model"

// Handler enters a mode.
type Handler func(Target)

// Machine tracks the current mode and the last token it has seen.
type Machine struct {
	// Handlers is the mode entry dispatch table.
	Handlers map[model.Mode]Handler
	// Busy is called before a handler runs.
	Busy func()
	// Loaded returns the record currently held by the editor, if any.
	Loaded func() (int, bool)

	lastRaw string
	seen    bool
	mode    model.Mode
	hasMode bool
}

// Mode returns the current mode; ok is false before the first transition.
func (m *Machine) Mode() (model.Mode, bool) { return m.mode, m.hasMode }

// Check processes a polled token. It returns true when a handler ran.
func (m *Machine) Check(raw string) bool {
	if m.seen && raw == m.lastRaw {
		return false
	}
	m.lastRaw, m.seen = raw, true

	target, ok := Derive(raw)
	if !ok {
		return false
	}
	prev, hadMode := m.mode, m.hasMode
	m.mode, m.hasMode = target.Mode, true

	if hadMode && target.Mode == prev {
		if target.Mode != model.ModeEdit {
			return false
		}
		if loaded, ok := m.loaded(); ok && loaded == target.RecID {
			return false
		}
	}

	h, ok := m.Handlers[target.Mode]
	if !ok {
		return false
	}
	if m.Busy != nil {
		m.Busy()
	}
	h(target)
	return true
}

func (m *Machine) loaded() (int, bool) {
	if m.Loaded == nil {
		return 0, false
	}
	return m.Loaded()
}

// SetMode records a token written by the editor itself, so the next poll that
// observes it does nothing. It returns the token to publish.
func (m *Machine) SetMode(mode model.Mode, recID int) string {
	raw := Serialize(mode, recID)
	m.lastRaw, m.seen = raw, true
	m.mode, m.hasMode = mode, true
	return raw
}

// Reset forgets the last token and mode so the next check always fires.
func (m *Machine) Reset() {
	m.lastRaw, m.seen = "", false
	m.mode, m.hasMode = 0, false
}
